package workspace

import (
	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/auth"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateWorkspaceRequest struct {
	Name           string          `json:"name"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// POST /api/workspaces
// Creates the workspace, its owner membership and a default Cash account
// seeded with the opening balance, atomically.
func CreateWorkspaceHandler(uow *database.UnitOfWork) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body CreateWorkspaceRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}

		var ws models.Workspace
		var account models.Account
		err = uow.Run(c.UserContext(), database.TxOptions{}, func(scope *database.Scope) error {
			ws = models.Workspace{Name: body.Name, CreatedBy: userID}
			if err := scope.DB().Create(&ws).Error; err != nil {
				return apperr.Translate(err, "workspace")
			}
			member := models.WorkspaceMember{
				WorkspaceID: ws.ID,
				UserID:      userID,
				Role:        models.WorkspaceRoleOwner,
			}
			if err := scope.DB().Create(&member).Error; err != nil {
				return apperr.Translate(err, "workspace member")
			}
			account = models.Account{
				WorkspaceID: ws.ID,
				Name:        "Cash",
				InitBalance: body.OpeningBalance,
				Balance:     body.OpeningBalance,
			}
			if err := scope.DB().Create(&account).Error; err != nil {
				return apperr.Translate(err, "account")
			}
			return nil
		})
		if err != nil {
			return apperr.ToFiber(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"workspace":       ws,
			"default_account": account,
		})
	}
}

// GET /api/workspaces
func ListWorkspacesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var workspaces []models.Workspace
		err = db.
			Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
			Where("workspace_members.user_id = ?", userID).
			Find(&workspaces).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list workspaces")
		}
		return c.JSON(workspaces)
	}
}

// POST /api/workspaces/:workspaceID/members
func AddMemberHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := auth.WorkspaceID(c)

		var body struct {
			UserID uint                 `json:"user_id"`
			Role   models.WorkspaceRole `json:"role"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Role == "" {
			body.Role = models.WorkspaceRoleMember
		}
		if body.Role != models.WorkspaceRoleOwner && body.Role != models.WorkspaceRoleMember {
			return fiber.NewError(fiber.StatusBadRequest, "role must be 'owner' or 'member'")
		}

		member := models.WorkspaceMember{
			WorkspaceID: workspaceID,
			UserID:      body.UserID,
			Role:        body.Role,
		}
		if err := db.Create(&member).Error; err != nil {
			return fiber.NewError(fiber.StatusConflict, "user is already a member")
		}
		return c.Status(fiber.StatusCreated).JSON(member)
	}
}
