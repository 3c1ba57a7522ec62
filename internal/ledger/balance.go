package ledger

import (
	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceLedger maintains the cached balance column on accounts. Every code
// path that inserts, updates or deletes a transaction must go through it so
// the cache never drifts from the transaction set.
type BalanceLedger struct {
	scope *database.Scope
}

func NewBalanceLedger(scope *database.Scope) *BalanceLedger {
	return &BalanceLedger{scope: scope}
}

// GetBalance reads the cached balance. O(1), this is the hot path behind
// every balance display.
func (l *BalanceLedger) GetBalance(accountID uint) (decimal.Decimal, error) {
	var account models.Account
	if err := l.scope.DB().Select("balance").First(&account, "id = ?", accountID).Error; err != nil {
		return decimal.Zero, apperr.Translate(err, "account")
	}
	return account.Balance, nil
}

// IncrementBalance applies delta as a row-level increment, not a
// read-modify-write, so concurrent increments on the same account serialize
// on the database's row lock. Returns the new balance.
func (l *BalanceLedger) IncrementBalance(accountID uint, delta decimal.Decimal) (decimal.Decimal, error) {
	res := l.scope.DB().Model(&models.Account{}).
		Where("id = ?", accountID).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return decimal.Zero, apperr.Translate(res.Error, "account")
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, apperr.NotFound("account")
	}
	return l.GetBalance(accountID)
}

// RecalculateBalance recomputes init_balance + sum of signed deltas from the
// full transaction set, writes it back and returns it. This is the ground
// truth the incrementally maintained balance must always agree with; used
// for init balance edits and reconciliation.
func (l *BalanceLedger) RecalculateBalance(accountID uint) (decimal.Decimal, error) {
	db := l.scope.DB()

	var account models.Account
	if err := db.First(&account, "id = ?", accountID).Error; err != nil {
		return decimal.Zero, apperr.Translate(err, "account")
	}

	var txns []models.Transaction
	if err := db.Preload("Category").
		Where("account_id = ?", accountID).
		Find(&txns).Error; err != nil {
		return decimal.Zero, apperr.Translate(err, "transaction")
	}

	balance := account.InitBalance
	for i := range txns {
		balance = balance.Add(txns[i].SignedDelta())
	}

	if err := db.Model(&models.Account{}).
		Where("id = ?", accountID).
		UpdateColumn("balance", balance).Error; err != nil {
		return decimal.Zero, apperr.Translate(err, "account")
	}
	return balance, nil
}
