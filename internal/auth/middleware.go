package auth

import (
	"fmt"
	"strings"

	"fintrack-backend/internal/config"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const CtxUserIDKey = "user_id"

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		claims, ok := token.Claims.(*JWTCustomClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "malformed token claims")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		return c.Next()
	}
}

// UserID reads the authenticated user from the request context.
func UserID(c *fiber.Ctx) (uint, error) {
	userID, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	return userID, nil
}

// RequireMembership parses :workspaceID and verifies the caller belongs to
// that workspace. Handlers trust this for authorization; the engine still
// re-validates referential ownership on every mutation.
func RequireMembership(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}
		workspaceID, err := c.ParamsInt("workspaceID")
		if err != nil || workspaceID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid workspace id")
		}

		var member models.WorkspaceMember
		err = db.First(&member, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error
		if err != nil {
			return fiber.NewError(fiber.StatusForbidden, "not a member of this workspace")
		}

		c.Locals("workspace_id", uint(workspaceID))
		return c.Next()
	}
}

// WorkspaceID reads the membership-checked workspace from the context.
func WorkspaceID(c *fiber.Ctx) uint {
	workspaceID, _ := c.Locals("workspace_id").(uint)
	return workspaceID
}
