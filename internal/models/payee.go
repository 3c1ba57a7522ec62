package models

import "time"

// Payee has no balance semantics; it only serves as a budget matching
// dimension. Nil WorkspaceID marks a shared default.
type Payee struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID *uint     `gorm:"index" json:"workspace_id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
