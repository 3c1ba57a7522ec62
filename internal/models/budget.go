package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget tracks current-month spending against a limit. Scope is at least one
// of AccountID/CategoryID/PayeeID; a transaction matching any set field (OR
// semantics) counts toward the budget. CurrentSpent is a materialized cache:
// it must always equal the sum of |value| over current-month expense
// transactions matching the scope.
type Budget struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	WorkspaceID   uint            `gorm:"index;not null" json:"workspace_id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	CurrentSpent  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"current_spent"`
	AccountID     *uint           `gorm:"index" json:"account_id"`
	CategoryID    *uint           `gorm:"index" json:"category_id"`
	PayeeID       *uint           `gorm:"index" json:"payee_id"`
	LastResetDate time.Time       `gorm:"not null" json:"last_reset_date"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BudgetNotification records a crossed spending threshold. At most one row
// per (budget, threshold) within a calendar month; dedup is keyed on
// CreatedAt being at or after the month start.
type BudgetNotification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BudgetID  uint      `gorm:"index;not null" json:"budget_id"`
	Threshold int       `gorm:"not null" json:"threshold"` // 50 / 80 / 100
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
