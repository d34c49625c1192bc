package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
	RoleAdmin  Role = "admin"
)

const (
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

type User struct {
	ID                   int64      `json:"id"`
	Email                string     `json:"email"`
	Username             string     `json:"username"`
	FullName             string     `json:"full_name"`
	PasswordHash         string     `json:"-"`
	Role                 Role       `json:"role"`
	PhoneNumber          string     `json:"phone_number"`
	DateOfBirth          string     `json:"date_of_birth"`
	Gender               string     `json:"gender"`
	Occupation           string     `json:"occupation"`
	Address              Address    `json:"address"`
	ProfilePicture       string     `json:"profile_picture"`
	SubscriptionStatus   string     `json:"subscription_status"`
	SubscriptionPlan     string     `json:"subscription_plan"`
	SubscriptionExpiry   *time.Time `json:"subscription_expiry"`
	StripeCustomerID     string     `json:"-"`
	StripeSubscriptionID string     `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// SubscriptionActiveAt reports whether the user has a paid subscription that
// has not lapsed at now.
func (u *User) SubscriptionActiveAt(now time.Time) bool {
	if u.SubscriptionStatus != SubscriptionActive {
		return false
	}
	return u.SubscriptionExpiry == nil || u.SubscriptionExpiry.After(now)
}

// ProfileUpdate carries a partial profile edit; nil fields are left unchanged.
type ProfileUpdate struct {
	FullName    *string  `json:"full_name"`
	Username    *string  `json:"username"`
	PhoneNumber *string  `json:"phone_number"`
	DateOfBirth *string  `json:"date_of_birth"`
	Gender      *string  `json:"gender"`
	Occupation  *string  `json:"occupation"`
	Address     *Address `json:"address"`
}

type Subscription struct {
	Status     string     `json:"status"`
	Plan       string     `json:"plan"`
	Expiry     *time.Time `json:"expiry"`
	CustomerID string     `json:"-"`
	StripeID   string     `json:"-"`
}

func (u *User) Subscription() Subscription {
	return Subscription{
		Status:     u.SubscriptionStatus,
		Plan:       u.SubscriptionPlan,
		Expiry:     u.SubscriptionExpiry,
		CustomerID: u.StripeCustomerID,
		StripeID:   u.StripeSubscriptionID,
	}
}
