package budget

import (
	"time"

	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/auth"
	"fintrack-backend/internal/conflict"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/ledger"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateBudgetRequest struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	AccountID  *uint           `json:"account_id"`
	CategoryID *uint           `json:"category_id"`
	PayeeID    *uint           `json:"payee_id"`
}

type UpdateBudgetRequest struct {
	Name            *string          `json:"name"`
	Amount          *decimal.Decimal `json:"amount"`
	AccountID       *uint            `json:"account_id"`
	CategoryID      *uint            `json:"category_id"`
	PayeeID         *uint            `json:"payee_id"`
	ExpectedVersion *int             `json:"expected_version"`
}

// POST /api/workspaces/:workspaceID/budgets
// The spend cache starts from a full recalculation so a budget created
// mid-month immediately reflects existing transactions.
func CreateBudgetHandler(uow *database.UnitOfWork, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		var body CreateBudgetRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}
		if !body.Amount.IsPositive() {
			return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
		}
		if body.AccountID == nil && body.CategoryID == nil && body.PayeeID == nil {
			return fiber.NewError(fiber.StatusBadRequest, "at least one of account_id, category_id, payee_id is required")
		}

		now := time.Now()
		budget := models.Budget{
			WorkspaceID:   workspaceID,
			Name:          body.Name,
			Amount:        body.Amount,
			AccountID:     body.AccountID,
			CategoryID:    body.CategoryID,
			PayeeID:       body.PayeeID,
			LastResetDate: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
		}
		err := uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			if err := scope.DB().Create(&budget).Error; err != nil {
				return apperr.Translate(err, "budget")
			}
			spent, err := ledger.NewBudgetTracker(scope, log).RecalculateBudget(budget.ID)
			if err != nil {
				return err
			}
			budget.CurrentSpent = spent
			return nil
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(budget)
	}
}

// GET /api/workspaces/:workspaceID/budgets
func ListBudgetsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		var budgets []models.Budget
		if err := db.Where("workspace_id = ?", workspaceID).Order("name ASC").Find(&budgets).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list budgets")
		}
		return c.JSON(budgets)
	}
}

// PUT /api/workspaces/:workspaceID/budgets/:id
// Version-checked. Scope or amount changes invalidate the spend cache, so
// the update ends with a recalculation.
func UpdateBudgetHandler(uow *database.UnitOfWork, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, _ := c.ParamsInt("id")

		var body UpdateBudgetRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Amount != nil && !body.Amount.IsPositive() {
			return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
		}

		var budget models.Budget
		err = uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			if err := scope.DB().First(&budget, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
				return apperr.Translate(err, "budget")
			}

			versions := conflict.NewLedger(scope)
			if err := versions.Check(conflict.EntityBudget, budget.ID, body.ExpectedVersion, budget, body, userID, workspaceID); err != nil {
				return err
			}

			before := budget
			needsRecalc := false
			if body.Name != nil {
				budget.Name = *body.Name
			}
			if body.Amount != nil {
				budget.Amount = *body.Amount
				needsRecalc = true
			}
			if body.AccountID != nil {
				budget.AccountID = body.AccountID
				needsRecalc = true
			}
			if body.CategoryID != nil {
				budget.CategoryID = body.CategoryID
				needsRecalc = true
			}
			if body.PayeeID != nil {
				budget.PayeeID = body.PayeeID
				needsRecalc = true
			}
			if budget.AccountID == nil && budget.CategoryID == nil && budget.PayeeID == nil {
				return apperr.Validation("budget must keep at least one scope field")
			}

			if err := scope.DB().Save(&budget).Error; err != nil {
				return apperr.Translate(err, "budget")
			}
			if err := versions.RecordVersion(conflict.EntityBudget, budget.ID, before, userID); err != nil {
				return err
			}

			if needsRecalc {
				spent, err := ledger.NewBudgetTracker(scope, log).RecalculateBudget(budget.ID)
				if err != nil {
					return err
				}
				budget.CurrentSpent = spent
			}
			return nil
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(budget)
	}
}

// POST /api/workspaces/:workspaceID/budgets/:id/recalculate
func RecalculateBudgetHandler(uow *database.UnitOfWork, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		id, _ := c.ParamsInt("id")

		var spent decimal.Decimal
		err := uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			var budget models.Budget
			if err := scope.DB().First(&budget, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
				return apperr.Translate(err, "budget")
			}
			var err error
			spent, err = ledger.NewBudgetTracker(scope, log).RecalculateBudget(budget.ID)
			return err
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(fiber.Map{"budget_id": id, "current_spent": spent})
	}
}

// GET /api/workspaces/:workspaceID/budgets/:id/notifications
func ListNotificationsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		id, _ := c.ParamsInt("id")

		var budget models.Budget
		if err := db.First(&budget, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "budget not found")
		}

		var notifications []models.BudgetNotification
		err := db.Where("budget_id = ?", budget.ID).
			Order("created_at DESC").
			Find(&notifications).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list notifications")
		}
		return c.JSON(notifications)
	}
}
