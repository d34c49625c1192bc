package model

import "time"

// Reward is one entry in a child's points ledger. Negative points are debits.
type Reward struct {
	ID          int64     `json:"id"`
	ChildID     int64     `json:"child_id"`
	TaskID      *int64    `json:"task_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	Redeemed    bool      `json:"redeemed"`
	CreatedAt   time.Time `json:"created_at"`
}

type PredefinedReward struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	PointsRequired int       `json:"points_required"`
	CreatedAt      time.Time `json:"created_at"`
}

type PointBalance struct {
	ChildID       int64  `json:"child_id"`
	ChildName     string `json:"child_name"`
	TotalEarned   int    `json:"total_earned"`
	TotalSpent    int    `json:"total_spent"`
	RedeemedCount int    `json:"redeemed_count"`
	Balance       int    `json:"balance"`
}
