package account

import (
	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/auth"
	"fintrack-backend/internal/conflict"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/ledger"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateAccountRequest struct {
	Name        string          `json:"name"`
	InitBalance decimal.Decimal `json:"init_balance"`
}

type UpdateAccountRequest struct {
	Name            *string          `json:"name"`
	InitBalance     *decimal.Decimal `json:"init_balance"`
	ExpectedVersion *int             `json:"expected_version"`
}

// POST /api/workspaces/:workspaceID/accounts
func CreateAccountHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		var body CreateAccountRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}

		account := models.Account{
			WorkspaceID: workspaceID,
			Name:        body.Name,
			InitBalance: body.InitBalance,
			Balance:     body.InitBalance,
		}
		if err := db.Create(&account).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to create account")
		}
		return c.Status(fiber.StatusCreated).JSON(account)
	}
}

// GET /api/workspaces/:workspaceID/accounts
func ListAccountsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		var accounts []models.Account
		if err := db.Where("workspace_id = ?", workspaceID).Order("name ASC").Find(&accounts).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list accounts")
		}
		return c.JSON(accounts)
	}
}

// GET /api/workspaces/:workspaceID/accounts/:id
func GetAccountHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		id, _ := c.ParamsInt("id")

		var account models.Account
		err := db.First(&account, "id = ? AND workspace_id = ?", id, workspaceID).Error
		if err != nil {
			return apperr.ToFiber(c, apperr.Translate(err, "account"))
		}
		return c.JSON(account)
	}
}

// PUT /api/workspaces/:workspaceID/accounts/:id
// Version-checked edit. Changing init_balance triggers a full balance
// recomputation since the cached balance is derived from it.
func UpdateAccountHandler(uow *database.UnitOfWork) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, _ := c.ParamsInt("id")

		var body UpdateAccountRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var account models.Account
		err = uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			if err := scope.DB().First(&account, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
				return apperr.Translate(err, "account")
			}

			versions := conflict.NewLedger(scope)
			if err := versions.Check(conflict.EntityAccount, account.ID, body.ExpectedVersion, account, body, userID, workspaceID); err != nil {
				return err
			}

			before := account
			initChanged := false
			if body.Name != nil {
				account.Name = *body.Name
			}
			if body.InitBalance != nil && !body.InitBalance.Equal(account.InitBalance) {
				account.InitBalance = *body.InitBalance
				initChanged = true
			}
			if err := scope.DB().Save(&account).Error; err != nil {
				return apperr.Translate(err, "account")
			}
			if err := versions.RecordVersion(conflict.EntityAccount, account.ID, before, userID); err != nil {
				return err
			}

			if initChanged {
				balance, err := ledger.NewBalanceLedger(scope).RecalculateBalance(account.ID)
				if err != nil {
					return err
				}
				account.Balance = balance
			}
			return nil
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(account)
	}
}

// POST /api/workspaces/:workspaceID/accounts/:id/recalculate
// On-demand reconciliation against the ground-truth sum.
func RecalculateAccountHandler(uow *database.UnitOfWork) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		id, _ := c.ParamsInt("id")

		var balance decimal.Decimal
		err := uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			var account models.Account
			if err := scope.DB().First(&account, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
				return apperr.Translate(err, "account")
			}
			var err error
			balance, err = ledger.NewBalanceLedger(scope).RecalculateBalance(account.ID)
			return err
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(fiber.Map{"account_id": id, "balance": balance})
	}
}
