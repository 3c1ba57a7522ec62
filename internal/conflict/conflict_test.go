package conflict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/events"
	"fintrack-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testLedger(t *testing.T) (*Ledger, *database.Scope) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	scope := database.NewScope(db, nil)
	return NewLedger(scope), scope
}

type accountDoc struct {
	Name string `json:"name"`
}

func TestCurrentVersion_FreshEntity(t *testing.T) {
	ledger, _ := testLedger(t)

	version, err := ledger.CurrentVersion(EntityAccount, 7)
	require.NoError(t, err)
	require.Equal(t, 1, version)
}

func TestRecordVersion_Increments(t *testing.T) {
	ledger, _ := testLedger(t)

	require.NoError(t, ledger.RecordVersion(EntityAccount, 7, accountDoc{Name: "Checking"}, 1))
	version, err := ledger.CurrentVersion(EntityAccount, 7)
	require.NoError(t, err)
	require.Equal(t, 2, version)

	require.NoError(t, ledger.RecordVersion(EntityAccount, 7, accountDoc{Name: "Checking v2"}, 1))
	version, err = ledger.CurrentVersion(EntityAccount, 7)
	require.NoError(t, err)
	require.Equal(t, 3, version)

	// Versions are scoped per entity.
	version, err = ledger.CurrentVersion(EntityAccount, 8)
	require.NoError(t, err)
	require.Equal(t, 1, version)
	version, err = ledger.CurrentVersion(EntityCategory, 7)
	require.NoError(t, err)
	require.Equal(t, 1, version)
}

func TestCheck_NilExpectedSkips(t *testing.T) {
	ledger, _ := testLedger(t)

	require.NoError(t, ledger.Check(EntityAccount, 7, nil, nil, nil, 1, 1))
}

func TestCheck_MatchingVersionPasses(t *testing.T) {
	ledger, _ := testLedger(t)

	require.NoError(t, ledger.RecordVersion(EntityAccount, 7, accountDoc{Name: "v1"}, 1))

	expected := 2
	require.NoError(t, ledger.Check(EntityAccount, 7, &expected,
		accountDoc{Name: "v2"}, accountDoc{Name: "edit"}, 1, 1))
}

func TestCheck_MismatchRecordsConflict(t *testing.T) {
	ledger, scope := testLedger(t)

	// Two prior edits: the entity now sits at version 3.
	require.NoError(t, ledger.RecordVersion(EntityAccount, 7, accountDoc{Name: "v1"}, 1))
	require.NoError(t, ledger.RecordVersion(EntityAccount, 7, accountDoc{Name: "v2"}, 2))

	expected := 2
	err := ledger.Check(EntityAccount, 7, &expected,
		accountDoc{Name: "v3-live"}, accountDoc{Name: "stale-edit"}, 5, 9)
	require.Error(t, err)

	var conflictErr *apperr.ConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Equal(t, 3, conflictErr.CurrentVersion)
	require.Equal(t, 2, conflictErr.IncomingVersion)
	require.True(t, apperr.Is(err, apperr.KindConflict))

	var rows []models.EntityConflict
	require.NoError(t, scope.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, EntityAccount, rows[0].EntityType)
	require.Equal(t, uint(7), rows[0].EntityID)
	require.Equal(t, uint(9), rows[0].WorkspaceID)
	require.Equal(t, uint(5), rows[0].DetectedBy)
	require.Nil(t, rows[0].ResolvedAt)
	require.JSONEq(t, `{"name":"v3-live"}`, rows[0].CurrentData)
	require.JSONEq(t, `{"name":"stale-edit"}`, rows[0].IncomingData)
}

func TestEntityVersions_NewestFirst(t *testing.T) {
	ledger, _ := testLedger(t)

	for i := 1; i <= 3; i++ {
		require.NoError(t, ledger.RecordVersion(EntityBudget, 4, accountDoc{Name: fmt.Sprintf("v%d", i)}, 1))
	}

	versions, err := ledger.EntityVersions(EntityBudget, 4, 0)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	require.Equal(t, 3, versions[0].Version)
	require.Equal(t, 1, versions[2].Version)

	limited, err := ledger.EntityVersions(EntityBudget, 4, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, 3, limited[0].Version)
}

func TestResolve(t *testing.T) {
	ledger, scope := testLedger(t)

	require.NoError(t, ledger.RecordVersion(EntityPayee, 3, accountDoc{Name: "v1"}, 1))
	expected := 1
	err := ledger.Check(EntityPayee, 3, &expected,
		accountDoc{Name: "live"}, accountDoc{Name: "stale"}, 1, 1)
	require.Error(t, err)

	open, err := ledger.OpenConflicts(1)
	require.NoError(t, err)
	require.Len(t, open, 1)

	merged := json.RawMessage(`{"name":"merged"}`)
	resolved, err := ledger.Resolve(open[0].ID, 3, 42, merged)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	require.Equal(t, uint(42), *resolved.ResolvedBy)
	require.Equal(t, 3, *resolved.ResolvedVersion)
	require.JSONEq(t, `{"name":"merged"}`, resolved.CurrentData)

	// Resolution clears it from the open list.
	open, err = ledger.OpenConflicts(1)
	require.NoError(t, err)
	require.Empty(t, open)

	// A second resolution is rejected.
	_, err = ledger.Resolve(resolved.ID, 4, 42, nil)
	require.True(t, apperr.Is(err, apperr.KindValidation))

	var row models.EntityConflict
	require.NoError(t, scope.DB().First(&row, "id = ?", resolved.ID).Error)
	require.Equal(t, 3, *row.ResolvedVersion)
}

func TestCheck_ConflictSurvivesRolledBackUnitOfWork(t *testing.T) {
	ledger, scope := testLedger(t)
	db := scope.DB()

	bus := events.NewBus()
	var seen []events.Event
	bus.Subscribe(func(evt events.Event) { seen = append(seen, evt) })
	uow := database.NewUnitOfWork(db, bus, zerolog.Nop())

	account := models.Account{WorkspaceID: 9, Name: "Checking"}
	require.NoError(t, db.Create(&account).Error)
	require.NoError(t, ledger.RecordVersion(EntityAccount, account.ID, accountDoc{Name: "v1"}, 1))
	require.NoError(t, ledger.RecordVersion(EntityAccount, account.ID, accountDoc{Name: "v2"}, 1))

	// The entity sits at version 3; the client submits a stale edit inside a
	// unit of work, the way every update handler does.
	expected := 2
	err := uow.Run(context.Background(), database.TxOptions{}, func(txScope *database.Scope) error {
		var current models.Account
		if err := txScope.DB().First(&current, "id = ?", account.ID).Error; err != nil {
			return err
		}
		if err := NewLedger(txScope).Check(EntityAccount, account.ID, &expected, current, accountDoc{Name: "stale"}, 5, 9); err != nil {
			return err
		}
		return txScope.DB().Model(&current).Update("name", "stale").Error
	})
	require.True(t, apperr.Is(err, apperr.KindConflict))

	// The rejected edit never landed.
	var reloaded models.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	require.Equal(t, "Checking", reloaded.Name)

	// The conflict row and its event outlived the rollback.
	var rows []models.EntityConflict
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, uint(9), rows[0].WorkspaceID)
	require.Equal(t, 3, rows[0].CurrentVersion)
	require.Equal(t, 2, rows[0].IncomingVersion)

	require.Len(t, seen, 1)
	require.Equal(t, events.ConflictDetected, seen[0].Name)
}

func TestResolve_NotFound(t *testing.T) {
	ledger, _ := testLedger(t)

	_, err := ledger.Resolve(999, 1, 1, nil)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}
