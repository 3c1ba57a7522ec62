package ledger

import (
	"fmt"
	"testing"
	"time"

	"fintrack-backend/internal/database"
	"fintrack-backend/internal/models"

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

func testScope(t *testing.T) *database.Scope {
	t.Helper()
	return database.NewScope(openTestDB(t), nil)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

func seedWorkspace(t *testing.T, scope *database.Scope) *models.Workspace {
	t.Helper()
	ws := &models.Workspace{Name: "Family", CreatedBy: 1}
	require.NoError(t, scope.DB().Create(ws).Error)
	return ws
}

func seedAccount(t *testing.T, scope *database.Scope, workspaceID uint, initBalance string) *models.Account {
	t.Helper()
	account := &models.Account{
		WorkspaceID: workspaceID,
		Name:        "Checking",
		InitBalance: dec(initBalance),
		Balance:     dec(initBalance),
	}
	require.NoError(t, scope.DB().Create(account).Error)
	return account
}

func seedCategory(t *testing.T, scope *database.Scope, workspaceID uint, ctype models.CategoryType) *models.Category {
	t.Helper()
	category := &models.Category{
		WorkspaceID: &workspaceID,
		Name:        string(ctype) + "-" + uuid.NewString()[:8],
		Type:        ctype,
	}
	require.NoError(t, scope.DB().Create(category).Error)
	return category
}

func seedPayee(t *testing.T, scope *database.Scope, workspaceID uint) *models.Payee {
	t.Helper()
	payee := &models.Payee{WorkspaceID: &workspaceID, Name: "Grocer " + uuid.NewString()[:8]}
	require.NoError(t, scope.DB().Create(payee).Error)
	return payee
}

func seedBudget(t *testing.T, scope *database.Scope, workspaceID uint, amount string, mutate func(*models.Budget)) *models.Budget {
	t.Helper()
	now := time.Now()
	budget := &models.Budget{
		WorkspaceID:   workspaceID,
		Name:          "Budget " + uuid.NewString()[:8],
		Amount:        dec(amount),
		LastResetDate: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
	}
	if mutate != nil {
		mutate(budget)
	}
	require.NoError(t, scope.DB().Create(budget).Error)
	return budget
}

func reloadBudget(t *testing.T, scope *database.Scope, id uint) *models.Budget {
	t.Helper()
	var budget models.Budget
	require.NoError(t, scope.DB().First(&budget, "id = ?", id).Error)
	return &budget
}

func testCoordinator(scope *database.Scope) *Coordinator {
	return NewCoordinator(scope, zerolog.Nop())
}

func nowInCurrentMonth() time.Time {
	return time.Now()
}

func dateLastMonth() time.Time {
	return startOfMonth(time.Now()).AddDate(0, 0, -10)
}
