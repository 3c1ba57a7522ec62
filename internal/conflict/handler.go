package conflict

import (
	"encoding/json"

	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/auth"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ResolveConflictRequest struct {
	ResolvedVersion int             `json:"resolved_version"`
	MergedData      json.RawMessage `json:"merged_data"`
}

// GET /api/workspaces/:workspaceID/conflicts
func ListConflictsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		conflicts, err := NewLedger(database.NewScope(db, nil)).OpenConflicts(workspaceID)
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(conflicts)
	}
}

// POST /api/workspaces/:workspaceID/conflicts/:id/resolve
// Records the human decision; re-applying the chosen data to the live entity
// is a separate edit the client submits afterwards.
func ResolveConflictHandler(uow *database.UnitOfWork) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, _ := c.ParamsInt("id")

		var body ResolveConflictRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var resolved *models.EntityConflict
		err = uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			var row models.EntityConflict
			if err := scope.DB().First(&row, "id = ? AND workspace_id = ?", id, workspaceID).Error; err != nil {
				return apperr.Translate(err, "conflict")
			}
			var err error
			resolved, err = NewLedger(scope).Resolve(row.ID, body.ResolvedVersion, userID, body.MergedData)
			return err
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(resolved)
	}
}

// GET /api/workspaces/:workspaceID/versions/:entityType/:id?limit=
func EntityVersionsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)
		entityType := c.Params("entityType")
		switch entityType {
		case EntityAccount, EntityCategory, EntityPayee, EntityBudget:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "unknown entity type")
		}
		id, _ := c.ParamsInt("id")
		limit := c.QueryInt("limit")

		// Entity IDs are global; snapshots are served only for entities the
		// caller's workspace owns.
		if err := requireEntityInWorkspace(db, entityType, uint(id), workspaceID); err != nil {
			return apperr.ToFiber(c, err)
		}

		versions, err := NewLedger(database.NewScope(db, nil)).EntityVersions(entityType, uint(id), limit)
		if err != nil {
			return apperr.ToFiber(c, err)
		}
		return c.JSON(versions)
	}
}

// requireEntityInWorkspace resolves the versioned entity inside the given
// workspace. Shared default categories and payees (nil workspace) are not
// editable from a workspace, so they never carry snapshots; a workspace-only
// match is correct for every entity type.
func requireEntityInWorkspace(db *gorm.DB, entityType string, entityID, workspaceID uint) error {
	var model any
	switch entityType {
	case EntityAccount:
		model = &models.Account{}
	case EntityCategory:
		model = &models.Category{}
	case EntityPayee:
		model = &models.Payee{}
	case EntityBudget:
		model = &models.Budget{}
	default:
		return apperr.NotFound(entityType)
	}

	var count int64
	err := db.Model(model).
		Where("id = ? AND workspace_id = ?", entityID, workspaceID).
		Count(&count).Error
	if err != nil {
		return apperr.Translate(err, entityType)
	}
	if count == 0 {
		return apperr.NotFound(entityType)
	}
	return nil
}
