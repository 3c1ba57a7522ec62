package category

import (
	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/auth"
	"fintrack-backend/internal/conflict"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateCategoryRequest struct {
	Name string              `json:"name"`
	Type models.CategoryType `json:"type"`
}

type UpdateCategoryRequest struct {
	Name            *string              `json:"name"`
	Type            *models.CategoryType `json:"type"`
	ExpectedVersion *int                 `json:"expected_version"`
}

// POST /api/workspaces/:workspaceID/categories
func CreateCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		var body CreateCategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}
		if body.Type != models.CategoryTypeIncome && body.Type != models.CategoryTypeExpense {
			return fiber.NewError(fiber.StatusBadRequest, "type must be 'income' or 'expense'")
		}

		category := models.Category{
			WorkspaceID: &workspaceID,
			Name:        body.Name,
			Type:        body.Type,
		}
		if err := db.Create(&category).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to create category")
		}
		return c.Status(fiber.StatusCreated).JSON(category)
	}
}

// GET /api/workspaces/:workspaceID/categories
// Includes the shared defaults (nil workspace).
func ListCategoriesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		var categories []models.Category
		err := db.Where("workspace_id = ? OR workspace_id IS NULL", workspaceID).
			Order("name ASC").
			Find(&categories).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list categories")
		}
		return c.JSON(categories)
	}
}

// PUT /api/workspaces/:workspaceID/categories/:id
// Version-checked; shared defaults cannot be edited from a workspace.
func UpdateCategoryHandler(uow *database.UnitOfWork) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, _ := c.ParamsInt("id")

		var body UpdateCategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Type != nil && *body.Type != models.CategoryTypeIncome && *body.Type != models.CategoryTypeExpense {
			return fiber.NewError(fiber.StatusBadRequest, "type must be 'income' or 'expense'")
		}

		var category models.Category
		err = uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			if err := scope.DB().First(&category, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
				return apperr.Translate(err, "category")
			}

			versions := conflict.NewLedger(scope)
			if err := versions.Check(conflict.EntityCategory, category.ID, body.ExpectedVersion, category, body, userID, workspaceID); err != nil {
				return err
			}

			// Flipping income/expense would silently change the signed delta
			// of every transaction already in the category, leaving cached
			// account balances and budget spend stale. Recategorize the
			// transactions first.
			if body.Type != nil && *body.Type != category.Type {
				var count int64
				if err := scope.DB().Model(&models.Transaction{}).
					Where("category_id = ?", category.ID).
					Count(&count).Error; err != nil {
					return apperr.Translate(err, "transaction")
				}
				if count > 0 {
					return apperr.ValidationField("type", "cannot change type of a category referenced by transactions")
				}
			}

			before := category
			if body.Name != nil {
				category.Name = *body.Name
			}
			if body.Type != nil {
				category.Type = *body.Type
			}
			if err := scope.DB().Save(&category).Error; err != nil {
				return apperr.Translate(err, "category")
			}
			return versions.RecordVersion(conflict.EntityCategory, category.ID, before, userID)
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(category)
	}
}

// DELETE /api/workspaces/:workspaceID/categories/:id
func DeleteCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		id, _ := c.ParamsInt("id")

		var category models.Category
		if err := db.First(&category, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}

		var count int64
		db.Model(&models.Transaction{}).Where("category_id = ?", id).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "category is referenced by transactions")
		}

		if err := db.Delete(&category).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to delete category")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
