package models

import "time"

type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category determines the sign of a transaction's balance effect. A nil
// WorkspaceID marks a shared default visible to every workspace.
type Category struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	WorkspaceID *uint        `gorm:"index" json:"workspace_id"`
	Name        string       `gorm:"size:100;not null" json:"name"`
	Type        CategoryType `gorm:"size:20;not null" json:"type"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
