// Package conflict implements optimistic-concurrency version tracking:
// monotonic per-entity versions, append-only pre-edit snapshots, conflict
// rows on version mismatch and their resolution. Transactions themselves are
// not versioned; accounts, categories, payees and budgets are.
package conflict

import (
	"encoding/json"
	"time"

	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/events"
	"fintrack-backend/internal/models"
)

const (
	EntityAccount  = "account"
	EntityCategory = "category"
	EntityPayee    = "payee"
	EntityBudget   = "budget"
)

const defaultVersionLimit = 50

type Ledger struct {
	scope *database.Scope
}

func NewLedger(scope *database.Scope) *Ledger {
	return &Ledger{scope: scope}
}

// CurrentVersion derives the entity's live version from the snapshot log:
// snapshots store the version an edit replaced, so the current version is
// one past the newest snapshot, and 1 for a never-edited entity.
func (l *Ledger) CurrentVersion(entityType string, entityID uint) (int, error) {
	var latest models.EntityVersion
	err := l.scope.DB().
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("version DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return 0, apperr.Translate(err, "entity version")
	}
	if latest.ID == 0 {
		return 1, nil
	}
	return latest.Version + 1, nil
}

// Check validates a client-supplied expected version before an edit. A nil
// expected version skips the check entirely. On mismatch it records an
// EntityConflict carrying both payloads, raises entity.conflictDetected and
// fails the operation with a Conflict error; the edit must not be applied.
//
// The conflict row and the event go through the scope's durable connection:
// the Conflict error is about to roll back the enclosing unit of work, and
// the detection evidence has to outlive that rollback.
func (l *Ledger) Check(entityType string, entityID uint, expected *int, current any, incoming any, actorID, workspaceID uint) error {
	if expected == nil {
		return nil
	}
	currentVersion, err := l.CurrentVersion(entityType, entityID)
	if err != nil {
		return err
	}
	if *expected == currentVersion {
		return nil
	}

	currentData := marshalSnapshot(current)
	incomingData := marshalSnapshot(incoming)

	row := models.EntityConflict{
		EntityType:      entityType,
		EntityID:        entityID,
		WorkspaceID:     workspaceID,
		CurrentVersion:  currentVersion,
		IncomingVersion: *expected,
		CurrentData:     string(currentData),
		IncomingData:    string(incomingData),
		DetectedBy:      actorID,
		DetectedAt:      time.Now().UTC(),
	}
	if err := l.scope.Durable().Create(&row).Error; err != nil {
		return apperr.Translate(err, "entity conflict")
	}

	// The snapshot the client last saw, when we still have it, lets the UI
	// render a three-way diff.
	var base *models.EntityVersion
	var seen models.EntityVersion
	err = l.scope.DB().
		Where("entity_type = ? AND entity_id = ? AND version = ?", entityType, entityID, *expected).
		Limit(1).
		Find(&seen).Error
	if err == nil && seen.ID != 0 {
		base = &seen
	}

	l.scope.EmitNow(events.New(events.ConflictDetected, workspaceID, map[string]any{
		"conflict": row,
		"base":     base,
	}))

	return &apperr.ConflictError{
		ConflictID:      row.ID,
		EntityType:      entityType,
		EntityID:        entityID,
		CurrentVersion:  currentVersion,
		IncomingVersion: *expected,
		CurrentData:     currentData,
		IncomingData:    incomingData,
	}
}

// RecordVersion appends the pre-edit snapshot under the version the edit
// replaced. Call it in the same unit of work as the edit, with the state the
// entity had before the write.
func (l *Ledger) RecordVersion(entityType string, entityID uint, priorData any, editedBy uint) error {
	version, err := l.CurrentVersion(entityType, entityID)
	if err != nil {
		return err
	}
	row := models.EntityVersion{
		EntityType: entityType,
		EntityID:   entityID,
		Version:    version,
		Data:       string(marshalSnapshot(priorData)),
		EditedBy:   editedBy,
	}
	if err := l.scope.DB().Create(&row).Error; err != nil {
		// The (type, id, version) unique index turns a racing double-write
		// into an integrity error the unit of work can retry.
		return apperr.Translate(err, "entity version")
	}
	return nil
}

// Resolve marks a conflict resolved and optionally overwrites the stored
// current data with caller-merged data. It records the human decision only:
// re-applying the chosen data to the live entity is the caller's second
// write.
func (l *Ledger) Resolve(conflictID uint, resolvedVersion int, resolvedBy uint, mergedData json.RawMessage) (*models.EntityConflict, error) {
	var row models.EntityConflict
	if err := l.scope.DB().First(&row, "id = ?", conflictID).Error; err != nil {
		return nil, apperr.Translate(err, "conflict")
	}
	if row.ResolvedAt != nil {
		return nil, apperr.Validation("conflict already resolved")
	}

	now := time.Now().UTC()
	row.ResolvedAt = &now
	row.ResolvedBy = &resolvedBy
	row.ResolvedVersion = &resolvedVersion
	if len(mergedData) > 0 {
		row.CurrentData = string(mergedData)
	}
	if err := l.scope.DB().Save(&row).Error; err != nil {
		return nil, apperr.Translate(err, "conflict")
	}
	return &row, nil
}

// EntityVersions returns snapshots newest-first for display and audit.
func (l *Ledger) EntityVersions(entityType string, entityID uint, limit int) ([]models.EntityVersion, error) {
	if limit <= 0 {
		limit = defaultVersionLimit
	}
	var versions []models.EntityVersion
	err := l.scope.DB().
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("version DESC").
		Limit(limit).
		Find(&versions).Error
	if err != nil {
		return nil, apperr.Translate(err, "entity version")
	}
	return versions, nil
}

// OpenConflicts lists unresolved conflicts for a workspace, newest first.
func (l *Ledger) OpenConflicts(workspaceID uint) ([]models.EntityConflict, error) {
	var conflicts []models.EntityConflict
	err := l.scope.DB().
		Where("workspace_id = ? AND resolved_at IS NULL", workspaceID).
		Order("detected_at DESC").
		Find(&conflicts).Error
	if err != nil {
		return nil, apperr.Translate(err, "conflict")
	}
	return conflicts, nil
}

func marshalSnapshot(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
