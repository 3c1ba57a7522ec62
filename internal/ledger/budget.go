package ledger

import (
	"time"

	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BudgetOp string

const (
	BudgetOpCreate BudgetOp = "create"
	BudgetOpUpdate BudgetOp = "update"
	BudgetOpDelete BudgetOp = "delete"
)

// Thresholds are checked in descending order; only the highest one currently
// met is eligible for a notification.
var notificationThresholds = []int{100, 80, 50}

// BudgetTracker maintains the current-month spend cache on budgets and
// raises threshold notifications. Budget lookups are fatal to the enclosing
// operation; notification creation is best-effort and only logged, so a
// notification hiccup can never roll back a committed ledger write.
type BudgetTracker struct {
	scope *database.Scope
	log   zerolog.Logger
	now   func() time.Time
}

func NewBudgetTracker(scope *database.Scope, log zerolog.Logger) *BudgetTracker {
	return &BudgetTracker{scope: scope, log: log, now: time.Now}
}

// spendingDelta is |value| when the transaction is an expense dated in the
// current calendar month, else zero.
func (t *BudgetTracker) spendingDelta(txn *models.Transaction) decimal.Decimal {
	if txn == nil || !txn.IsExpense() {
		return decimal.Zero
	}
	if !sameMonth(txn.Date, t.now()) {
		return decimal.Zero
	}
	return txn.Value.Abs()
}

// UpdateForTransaction corrects every budget affected by a transaction
// mutation. On update, budgets matching the old scope get the old delta
// reversed and budgets matching the new scope get the new delta applied;
// budgets matching both get the net. A zero net change is a no-op so the
// common non-expense path takes no budget locks at all.
func (t *BudgetTracker) UpdateForTransaction(op BudgetOp, txn *models.Transaction, oldTxn *models.Transaction) error {
	changes := map[uint]decimal.Decimal{}
	budgets := map[uint]*models.Budget{}

	add := func(match *models.Transaction, delta decimal.Decimal) error {
		if delta.IsZero() {
			return nil
		}
		matched, err := t.matchingBudgets(match)
		if err != nil {
			return err
		}
		for i := range matched {
			b := &matched[i]
			budgets[b.ID] = b
			changes[b.ID] = changes[b.ID].Add(delta)
		}
		return nil
	}

	var err error
	switch op {
	case BudgetOpCreate:
		err = add(txn, t.spendingDelta(txn))
	case BudgetOpDelete:
		err = add(txn, t.spendingDelta(txn).Neg())
	case BudgetOpUpdate:
		if err = add(oldTxn, t.spendingDelta(oldTxn).Neg()); err == nil {
			err = add(txn, t.spendingDelta(txn))
		}
	default:
		return apperr.Validation("unknown budget operation " + string(op))
	}
	if err != nil {
		return err
	}

	monthStart := startOfMonth(t.now())
	for id, change := range changes {
		if change.IsZero() {
			continue
		}
		if err := t.applyChange(budgets[id], change, monthStart); err != nil {
			return err
		}
	}
	return nil
}

func (t *BudgetTracker) applyChange(budget *models.Budget, change decimal.Decimal, monthStart time.Time) error {
	base := budget.CurrentSpent
	if budget.LastResetDate.Before(monthStart) {
		// Cached spend belongs to a previous period; the month rolled over
		// since this budget was last touched.
		base = decimal.Zero
	}
	newSpent := base.Add(change)
	if newSpent.IsNegative() {
		newSpent = decimal.Zero
	}

	err := t.scope.DB().Model(&models.Budget{}).
		Where("id = ?", budget.ID).
		UpdateColumns(map[string]any{
			"current_spent":   newSpent,
			"last_reset_date": monthStart,
		}).Error
	if err != nil {
		return apperr.Translate(err, "budget")
	}

	t.evaluateThresholds(budget, newSpent, monthStart)
	return nil
}

// evaluateThresholds creates at most one notification: for the highest
// threshold met, and only if none exists for that (budget, threshold) pair
// since the month start.
func (t *BudgetTracker) evaluateThresholds(budget *models.Budget, spent decimal.Decimal, monthStart time.Time) {
	if !budget.Amount.IsPositive() {
		return
	}
	for _, threshold := range notificationThresholds {
		limit := budget.Amount.Mul(decimal.NewFromInt(int64(threshold)))
		if spent.Mul(decimal.NewFromInt(100)).Cmp(limit) < 0 {
			continue
		}

		var count int64
		err := t.scope.DB().Model(&models.BudgetNotification{}).
			Where("budget_id = ? AND threshold = ? AND created_at >= ?", budget.ID, threshold, monthStart).
			Count(&count).Error
		if err == nil && count == 0 {
			err = t.scope.DB().Create(&models.BudgetNotification{
				BudgetID:  budget.ID,
				Threshold: threshold,
			}).Error
		}
		if err != nil {
			// Best effort: a lost notification must not roll back the ledger.
			t.log.Warn().Err(err).Uint("budget_id", budget.ID).Int("threshold", threshold).
				Msg("failed to record budget notification")
		}
		return
	}
}

// RecalculateBudget recomputes the current-month spend from scratch and
// writes it back. Used for reconciliation and whenever the budget's scope or
// amount changes externally.
func (t *BudgetTracker) RecalculateBudget(budgetID uint) (decimal.Decimal, error) {
	db := t.scope.DB()

	var budget models.Budget
	if err := db.First(&budget, "id = ?", budgetID).Error; err != nil {
		return decimal.Zero, apperr.Translate(err, "budget")
	}

	monthStart := startOfMonth(t.now())
	nextMonth := monthStart.AddDate(0, 1, 0)

	query := db.Preload("Category").
		Where("workspace_id = ?", budget.WorkspaceID).
		Where("date >= ? AND date < ?", monthStart, nextMonth).
		Where(t.scopeCondition(&budget))

	var txns []models.Transaction
	if err := query.Find(&txns).Error; err != nil {
		return decimal.Zero, apperr.Translate(err, "transaction")
	}

	spent := decimal.Zero
	for i := range txns {
		if txns[i].IsExpense() {
			spent = spent.Add(txns[i].Value.Abs())
		}
	}

	err := db.Model(&models.Budget{}).
		Where("id = ?", budget.ID).
		UpdateColumns(map[string]any{
			"current_spent":   spent,
			"last_reset_date": monthStart,
		}).Error
	if err != nil {
		return decimal.Zero, apperr.Translate(err, "budget")
	}
	return spent, nil
}

// matchingBudgets finds budgets whose scope intersects the transaction's
// account/category/payee. OR semantics across the set scope fields.
func (t *BudgetTracker) matchingBudgets(txn *models.Transaction) ([]models.Budget, error) {
	db := t.scope.DB()

	cond := db.Where("account_id = ?", txn.AccountID)
	if txn.CategoryID != nil {
		cond = cond.Or("category_id = ?", *txn.CategoryID)
	}
	if txn.PayeeID != nil {
		cond = cond.Or("payee_id = ?", *txn.PayeeID)
	}

	var budgets []models.Budget
	err := db.Where("workspace_id = ?", txn.WorkspaceID).Where(cond).Find(&budgets).Error
	if err != nil {
		return nil, apperr.Translate(err, "budget")
	}
	return budgets, nil
}

// scopeCondition expresses the budget's OR scope as a transaction filter.
func (t *BudgetTracker) scopeCondition(budget *models.Budget) *gorm.DB {
	db := t.scope.DB()
	var cond *gorm.DB
	if budget.AccountID != nil {
		cond = db.Where("account_id = ?", *budget.AccountID)
	}
	if budget.CategoryID != nil {
		if cond == nil {
			cond = db.Where("category_id = ?", *budget.CategoryID)
		} else {
			cond = cond.Or("category_id = ?", *budget.CategoryID)
		}
	}
	if budget.PayeeID != nil {
		if cond == nil {
			cond = db.Where("payee_id = ?", *budget.PayeeID)
		} else {
			cond = cond.Or("payee_id = ?", *budget.PayeeID)
		}
	}
	if cond == nil {
		// Scope-less budgets are rejected at creation; match nothing if one
		// slips through.
		cond = db.Where("1 = 0")
	}
	return cond
}

func startOfMonth(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, ts.Location())
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
