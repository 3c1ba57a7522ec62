package auth

import (
	"strings"

	"fintrack-backend/internal/config"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func RegisterHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		if body.Email == "" || body.Password == "" || body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name, email and password are required")
		}
		if len(body.Password) < 8 {
			return fiber.NewError(fiber.StatusBadRequest, "password must be at least 8 characters")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
		}
		if err := db.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusConflict, "email already registered")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		})
	}
}

func LoginHandler(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := db.Where("email = ?", body.Email).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong email or password")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "wrong email or password")
		}

		token, err := GenerateToken(cfg.JWTSecret, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to issue token")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
			},
		})
	}
}

func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}

		var memberships []models.WorkspaceMember
		db.Where("user_id = ?", userID).Find(&memberships)

		return c.JSON(fiber.Map{
			"user_id":    user.ID,
			"name":       user.Name,
			"email":      user.Email,
			"workspaces": memberships,
		})
	}
}
