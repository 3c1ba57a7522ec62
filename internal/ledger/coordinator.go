package ledger

import (
	"time"

	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/events"
	"fintrack-backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Coordinator owns the transaction lifecycle: it validates references,
// computes signed deltas, writes the transaction row and keeps the balance
// ledger and budget tracker in step, all inside the scope it was handed.
// A failure at any step rolls back every prior write in the same unit of
// work.
type Coordinator struct {
	scope    *database.Scope
	balances *BalanceLedger
	budgets  *BudgetTracker
	log      zerolog.Logger
}

func NewCoordinator(scope *database.Scope, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		scope:    scope,
		balances: NewBalanceLedger(scope),
		budgets:  NewBudgetTracker(scope, log),
		log:      log,
	}
}

func (c *Coordinator) Balances() *BalanceLedger { return c.balances }
func (c *Coordinator) Budgets() *BudgetTracker  { return c.budgets }

type CreateTransactionInput struct {
	Value      decimal.Decimal `json:"value"`
	Date       time.Time       `json:"date"`
	AccountID  uint            `json:"account_id"`
	CategoryID *uint           `json:"category_id"`
	PayeeID    *uint           `json:"payee_id"`
	Note       string          `json:"note"`
}

// UpdateTransactionInput is a field-level diff: nil means unchanged, the
// Clear flags detach an optional relation.
type UpdateTransactionInput struct {
	Value         *decimal.Decimal `json:"value"`
	Date          *time.Time       `json:"date"`
	AccountID     *uint            `json:"account_id"`
	CategoryID    *uint            `json:"category_id"`
	ClearCategory bool             `json:"clear_category"`
	PayeeID       *uint            `json:"payee_id"`
	ClearPayee    bool             `json:"clear_payee"`
	Note          *string          `json:"note"`
}

// TransactionSnapshot pairs before/after state for eventing.
type TransactionSnapshot struct {
	Before *models.Transaction `json:"before,omitempty"`
	After  *models.Transaction `json:"after,omitempty"`
	// Every distinct account touched; downstream cache invalidation keys
	// off these.
	AccountIDs []uint `json:"account_ids"`
	ActorID    uint   `json:"actor_id"`
}

// Create validates references, inserts the row, applies the signed delta to
// the account balance and corrects matching budgets.
func (c *Coordinator) Create(input CreateTransactionInput, actorID, workspaceID uint) (*models.Transaction, error) {
	if input.Value.IsNegative() {
		return nil, apperr.ValidationField("value", "value must not be negative")
	}
	if input.Date.IsZero() {
		return nil, apperr.ValidationField("date", "date is required")
	}

	if _, err := c.requireAccount(input.AccountID, workspaceID); err != nil {
		return nil, err
	}
	category, err := c.resolveCategory(input.CategoryID, workspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := c.resolvePayee(input.PayeeID, workspaceID); err != nil {
		return nil, err
	}

	txn := models.Transaction{
		WorkspaceID: workspaceID,
		AccountID:   input.AccountID,
		CategoryID:  input.CategoryID,
		PayeeID:     input.PayeeID,
		Value:       input.Value,
		Date:        input.Date,
		Note:        input.Note,
		CreatedBy:   actorID,
	}
	if err := c.scope.DB().Create(&txn).Error; err != nil {
		return nil, apperr.Translate(err, "transaction")
	}

	txn.Category = category
	if _, err := c.balances.IncrementBalance(txn.AccountID, txn.SignedDelta()); err != nil {
		return nil, err
	}

	// Re-read with relations: the category resolved above was looked up
	// before the row existed.
	created, err := c.loadTransaction(txn.ID, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := c.budgets.UpdateForTransaction(BudgetOpCreate, created, nil); err != nil {
		return nil, err
	}

	c.scope.Emit(events.New(events.TransactionCreated, workspaceID, TransactionSnapshot{
		After:      created,
		AccountIDs: []uint{created.AccountID},
		ActorID:    actorID,
	}))
	return created, nil
}

// Update persists a field-level diff and corrects balances and budgets for
// whatever actually changed. Moving a transaction between accounts reverses
// the old delta on the old account and applies the new delta on the new one,
// so both invariants hold independently.
func (c *Coordinator) Update(id uint, input UpdateTransactionInput, actorID, workspaceID uint) (*models.Transaction, error) {
	existing, err := c.loadTransaction(id, workspaceID)
	if err != nil {
		return nil, err
	}
	before := *existing
	oldDelta := existing.SignedDelta()

	newValue := existing.Value
	if input.Value != nil {
		if input.Value.IsNegative() {
			return nil, apperr.ValidationField("value", "value must not be negative")
		}
		newValue = *input.Value
	}

	newAccountID := existing.AccountID
	if input.AccountID != nil {
		if _, err := c.requireAccount(*input.AccountID, workspaceID); err != nil {
			return nil, err
		}
		newAccountID = *input.AccountID
	}

	newCategoryID := existing.CategoryID
	newCategory := existing.Category
	switch {
	case input.ClearCategory:
		newCategoryID = nil
		newCategory = nil
	case input.CategoryID != nil:
		newCategory, err = c.resolveCategory(input.CategoryID, workspaceID)
		if err != nil {
			return nil, err
		}
		newCategoryID = input.CategoryID
	}

	newPayeeID := existing.PayeeID
	switch {
	case input.ClearPayee:
		newPayeeID = nil
	case input.PayeeID != nil:
		if _, err := c.resolvePayee(input.PayeeID, workspaceID); err != nil {
			return nil, err
		}
		newPayeeID = input.PayeeID
	}

	// Only changed fields touch the row.
	updates := map[string]any{}
	if !newValue.Equal(existing.Value) {
		updates["value"] = newValue
	}
	if input.Date != nil && !input.Date.Equal(existing.Date) {
		updates["date"] = *input.Date
	}
	if newAccountID != existing.AccountID {
		updates["account_id"] = newAccountID
	}
	if !uintPtrEqual(newCategoryID, existing.CategoryID) {
		updates["category_id"] = newCategoryID
	}
	if !uintPtrEqual(newPayeeID, existing.PayeeID) {
		updates["payee_id"] = newPayeeID
	}
	if input.Note != nil && *input.Note != existing.Note {
		updates["note"] = *input.Note
	}
	if len(updates) > 0 {
		err := c.scope.DB().Model(&models.Transaction{}).
			Where("id = ?", id).
			Updates(updates).Error
		if err != nil {
			return nil, apperr.Translate(err, "transaction")
		}
	}

	newDelta := signedDelta(newValue, newCategory)
	if newAccountID == existing.AccountID {
		// One increment covers value changes, category sign flips and both.
		totalDelta := oldDelta.Neg().Add(newDelta)
		if !totalDelta.IsZero() {
			if _, err := c.balances.IncrementBalance(newAccountID, totalDelta); err != nil {
				return nil, err
			}
		}
	} else {
		if _, err := c.balances.IncrementBalance(existing.AccountID, oldDelta.Neg()); err != nil {
			return nil, err
		}
		if _, err := c.balances.IncrementBalance(newAccountID, newDelta); err != nil {
			return nil, err
		}
	}

	updated, err := c.loadTransaction(id, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := c.budgets.UpdateForTransaction(BudgetOpUpdate, updated, &before); err != nil {
		return nil, err
	}

	c.scope.Emit(events.New(events.TransactionUpdated, workspaceID, TransactionSnapshot{
		Before:     &before,
		After:      updated,
		AccountIDs: touchedAccounts(before.AccountID, updated.AccountID),
		ActorID:    actorID,
	}))
	return updated, nil
}

// Delete reverses the transaction's balance effect and budget contribution,
// then removes the row.
func (c *Coordinator) Delete(id uint, actorID, workspaceID uint) error {
	existing, err := c.loadTransaction(id, workspaceID)
	if err != nil {
		return err
	}

	if _, err := c.balances.IncrementBalance(existing.AccountID, existing.SignedDelta().Neg()); err != nil {
		return err
	}
	if err := c.budgets.UpdateForTransaction(BudgetOpDelete, existing, nil); err != nil {
		return err
	}
	if err := c.scope.DB().Delete(&models.Transaction{}, "id = ?", id).Error; err != nil {
		return apperr.Translate(err, "transaction")
	}

	c.scope.Emit(events.New(events.TransactionDeleted, workspaceID, TransactionSnapshot{
		Before:     existing,
		AccountIDs: []uint{existing.AccountID},
		ActorID:    actorID,
	}))
	return nil
}

func (c *Coordinator) loadTransaction(id, workspaceID uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := c.scope.DB().Preload("Category").Preload("Payee").
		First(&txn, "id = ? AND workspace_id = ?", id, workspaceID).Error
	if err != nil {
		return nil, apperr.Translate(err, "transaction")
	}
	return &txn, nil
}

func (c *Coordinator) requireAccount(accountID, workspaceID uint) (*models.Account, error) {
	var account models.Account
	err := c.scope.DB().First(&account, "id = ? AND workspace_id = ?", accountID, workspaceID).Error
	if err != nil {
		return nil, apperr.Translate(err, "account")
	}
	return &account, nil
}

// resolveCategory accepts workspace-scoped categories and shared defaults.
func (c *Coordinator) resolveCategory(categoryID *uint, workspaceID uint) (*models.Category, error) {
	if categoryID == nil {
		return nil, nil
	}
	var category models.Category
	err := c.scope.DB().
		First(&category, "id = ? AND (workspace_id IS NULL OR workspace_id = ?)", *categoryID, workspaceID).Error
	if err != nil {
		return nil, apperr.Translate(err, "category")
	}
	if category.Type != models.CategoryTypeIncome && category.Type != models.CategoryTypeExpense {
		return nil, apperr.ValidationField("category", "unknown category type "+string(category.Type))
	}
	return &category, nil
}

func (c *Coordinator) resolvePayee(payeeID *uint, workspaceID uint) (*models.Payee, error) {
	if payeeID == nil {
		return nil, nil
	}
	var payee models.Payee
	err := c.scope.DB().
		First(&payee, "id = ? AND (workspace_id IS NULL OR workspace_id = ?)", *payeeID, workspaceID).Error
	if err != nil {
		return nil, apperr.Translate(err, "payee")
	}
	return &payee, nil
}

func signedDelta(value decimal.Decimal, category *models.Category) decimal.Decimal {
	if category != nil && category.Type == models.CategoryTypeIncome {
		return value
	}
	return value.Neg()
}

func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func touchedAccounts(old, new uint) []uint {
	if old == new {
		return []uint{new}
	}
	return []uint{old, new}
}
