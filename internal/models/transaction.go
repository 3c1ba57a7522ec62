package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction rows store a non-negative magnitude; the sign of the balance
// effect comes from the category type (no category counts as expense).
// Rows are mutated exclusively through the lifecycle coordinator so the
// account balance and budget spend caches stay in sync.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	WorkspaceID uint            `gorm:"index;not null" json:"workspace_id"`
	AccountID   uint            `gorm:"index;not null" json:"account_id"`
	Account     Account         `json:"-"`
	CategoryID  *uint           `gorm:"index" json:"category_id"`
	Category    *Category       `json:"category,omitempty"`
	PayeeID     *uint           `gorm:"index" json:"payee_id"`
	Payee       *Payee          `json:"payee,omitempty"`
	Value       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"value"`
	Date        time.Time       `gorm:"index;not null" json:"date"`
	Note        string          `gorm:"size:255" json:"note"`
	CreatedBy   uint            `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsExpense reports whether the transaction counts as spending. Requires the
// Category relation to be loaded when CategoryID is set.
func (t *Transaction) IsExpense() bool {
	return t.Category == nil || t.Category.Type == CategoryTypeExpense
}

// SignedDelta is the +/- contribution of the transaction to its account
// balance: +value for income, -value otherwise.
func (t *Transaction) SignedDelta() decimal.Decimal {
	if t.IsExpense() {
		return t.Value.Neg()
	}
	return t.Value
}
