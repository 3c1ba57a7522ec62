package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account carries two monetary columns: InitBalance is the immutable opening
// baseline, Balance is the materialized cache maintained by the balance ledger.
// Invariant: balance == init_balance + sum of signed transaction deltas.
type Account struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	WorkspaceID uint            `gorm:"index;not null" json:"workspace_id"`
	Workspace   Workspace       `json:"-"`
	Name        string          `gorm:"size:100;not null" json:"name"`
	InitBalance decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"init_balance"`
	Balance     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"balance"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
