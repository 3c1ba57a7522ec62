package category

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack-backend/internal/auth"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	uow := database.NewUnitOfWork(db, nil, zerolog.Nop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, uint(1))
		c.Locals("workspace_id", uint(1))
		return c.Next()
	})
	app.Put("/categories/:id", UpdateCategoryHandler(uow))
	return app, db
}

func putJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPut, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestUpdateCategory_TypeChangeBlockedWhenReferenced(t *testing.T) {
	app, db := testApp(t)

	wsID := uint(1)
	category := models.Category{WorkspaceID: &wsID, Name: "Groceries", Type: models.CategoryTypeExpense}
	require.NoError(t, db.Create(&category).Error)
	account := models.Account{WorkspaceID: wsID, Name: "Checking"}
	require.NoError(t, db.Create(&account).Error)
	txn := models.Transaction{
		WorkspaceID: wsID,
		AccountID:   account.ID,
		CategoryID:  &category.ID,
		Value:       decimal.NewFromInt(10),
		Date:        time.Now(),
	}
	require.NoError(t, db.Create(&txn).Error)

	// Flipping expense to income would invalidate the signed delta of the
	// existing transaction; the edit is rejected.
	resp := putJSON(t, app, fmt.Sprintf("/categories/%d", category.ID),
		fiber.Map{"type": "income"})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var reloaded models.Category
	require.NoError(t, db.First(&reloaded, "id = ?", category.ID).Error)
	require.Equal(t, models.CategoryTypeExpense, reloaded.Type)

	// Renaming is unaffected by the referenced check.
	resp = putJSON(t, app, fmt.Sprintf("/categories/%d", category.ID),
		fiber.Map{"name": "Food"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, db.First(&reloaded, "id = ?", category.ID).Error)
	require.Equal(t, "Food", reloaded.Name)
	require.Equal(t, models.CategoryTypeExpense, reloaded.Type)
}

func TestUpdateCategory_TypeChangeAllowedWhenUnreferenced(t *testing.T) {
	app, db := testApp(t)

	wsID := uint(1)
	category := models.Category{WorkspaceID: &wsID, Name: "Misc", Type: models.CategoryTypeExpense}
	require.NoError(t, db.Create(&category).Error)

	resp := putJSON(t, app, fmt.Sprintf("/categories/%d", category.ID),
		fiber.Map{"type": "income"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reloaded models.Category
	require.NoError(t, db.First(&reloaded, "id = ?", category.ID).Error)
	require.Equal(t, models.CategoryTypeIncome, reloaded.Type)
}
