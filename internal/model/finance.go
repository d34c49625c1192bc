package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ShoppingItem struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Priority      string          `json:"priority"`
	Notes         string          `json:"notes"`
	Cost          decimal.Decimal `json:"cost"`
	Purchased     bool            `json:"purchased"`
	TransactionID *int64          `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type FinanceSummary struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
}

type Analytics struct {
	Users               int `json:"users"`
	Children            int `json:"children"`
	Tasks               int `json:"tasks"`
	CompletedTasks      int `json:"completed_tasks"`
	ActiveSubscriptions int `json:"active_subscriptions"`
}
