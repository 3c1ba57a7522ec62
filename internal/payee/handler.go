package payee

import (
	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/auth"
	"fintrack-backend/internal/conflict"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreatePayeeRequest struct {
	Name string `json:"name"`
}

type UpdatePayeeRequest struct {
	Name            *string `json:"name"`
	ExpectedVersion *int    `json:"expected_version"`
}

// POST /api/workspaces/:workspaceID/payees
func CreatePayeeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		var body CreatePayeeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}

		payee := models.Payee{WorkspaceID: &workspaceID, Name: body.Name}
		if err := db.Create(&payee).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to create payee")
		}
		return c.Status(fiber.StatusCreated).JSON(payee)
	}
}

// GET /api/workspaces/:workspaceID/payees
func ListPayeesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		var payees []models.Payee
		err := db.Where("workspace_id = ? OR workspace_id IS NULL", workspaceID).
			Order("name ASC").
			Find(&payees).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list payees")
		}
		return c.JSON(payees)
	}
}

// PUT /api/workspaces/:workspaceID/payees/:id
func UpdatePayeeHandler(uow *database.UnitOfWork) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, _ := c.ParamsInt("id")

		var body UpdatePayeeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var payee models.Payee
		err = uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			if err := scope.DB().First(&payee, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
				return apperr.Translate(err, "payee")
			}

			versions := conflict.NewLedger(scope)
			if err := versions.Check(conflict.EntityPayee, payee.ID, body.ExpectedVersion, payee, body, userID, workspaceID); err != nil {
				return err
			}

			before := payee
			if body.Name != nil {
				payee.Name = *body.Name
			}
			if err := scope.DB().Save(&payee).Error; err != nil {
				return apperr.Translate(err, "payee")
			}
			return versions.RecordVersion(conflict.EntityPayee, payee.ID, before, userID)
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(payee)
	}
}

// DELETE /api/workspaces/:workspaceID/payees/:id
func DeletePayeeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		id, _ := c.ParamsInt("id")

		var payee models.Payee
		if err := db.First(&payee, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "payee not found")
		}

		var count int64
		db.Model(&models.Transaction{}).Where("payee_id = ?", id).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "payee is referenced by transactions")
		}

		if err := db.Delete(&payee).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to delete payee")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
