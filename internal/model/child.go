package model

import "time"

type Child struct {
	ID             int64     `json:"id"`
	ParentID       int64     `json:"parent_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	DateOfBirth    string    `json:"date_of_birth"`
	Grade          string    `json:"grade"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
