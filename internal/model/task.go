package model

import "time"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

type TaskStatus string

const (
	StatusToDo       TaskStatus = "to-do"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	return s == StatusToDo || s == StatusInProgress || s == StatusDone
}

type Task struct {
	ID                 int64         `json:"id"`
	UserID             int64         `json:"user_id"`
	ChildID            int64         `json:"child_id"`
	Content            string        `json:"content"`
	Priority           Priority      `json:"priority"`
	Status             TaskStatus    `json:"status"`
	Recurrence         string        `json:"recurrence"`
	DueDate            *time.Time    `json:"due_date"`
	CompletedAt        *time.Time    `json:"completed_at"`
	LateDays           int           `json:"late_days"`
	RewardPoints       int           `json:"reward_points"`
	PredefinedRewardID *int64        `json:"predefined_reward_id"`
	Comments           []TaskComment `json:"comments"`
	Attachments        []string      `json:"attachments"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type TaskComment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskFilter narrows task listings. Zero values mean "any".
type TaskFilter struct {
	UserID  int64
	ChildID int64
	Status  TaskStatus
	// ExcludeStatus drops tasks in this status; used for "pending" views.
	ExcludeStatus TaskStatus
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}
