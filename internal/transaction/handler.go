package transaction

import (
	"time"

	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/auth"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/ledger"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// POST /api/workspaces/:workspaceID/transactions
// The whole create (row + balance + budgets) commits or rolls back as one
// unit of work; transient serialization failures retry transparently.
func CreateTransactionHandler(uow *database.UnitOfWork, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body ledger.CreateTransactionInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var txn *models.Transaction
		err = uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			var err error
			txn, err = ledger.NewCoordinator(scope, log).Create(body, userID, workspaceID)
			return err
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(txn)
	}
}

// PUT /api/workspaces/:workspaceID/transactions/:id
func UpdateTransactionHandler(uow *database.UnitOfWork, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, _ := c.ParamsInt("id")

		var body ledger.UpdateTransactionInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var txn *models.Transaction
		err = uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			var err error
			txn, err = ledger.NewCoordinator(scope, log).Update(uint(id), body, userID, workspaceID)
			return err
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(txn)
	}
}

// DELETE /api/workspaces/:workspaceID/transactions/:id
func DeleteTransactionHandler(uow *database.UnitOfWork, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, _ := c.ParamsInt("id")

		err = uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			return ledger.NewCoordinator(scope, log).Delete(uint(id), userID, workspaceID)
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/workspaces/:workspaceID/transactions?account_id=&month=YYYY-MM
func ListTransactionsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		query := db.Preload("Category").Preload("Payee").
			Where("workspace_id = ?", workspaceID)

		if q := c.Query("account_id"); q != "" {
			query = query.Where("account_id = ?", q)
		}
		if month := c.Query("month"); month != "" {
			start, err := time.Parse("2006-01", month)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "month must be YYYY-MM")
			}
			query = query.Where("date >= ? AND date < ?", start, start.AddDate(0, 1, 0))
		}

		var txns []models.Transaction
		if err := query.Order("date DESC, id DESC").Find(&txns).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list transactions")
		}
		return c.JSON(txns)
	}
}
