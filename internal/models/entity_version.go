package models

import "time"

// EntityVersion is an append-only snapshot of an entity's state before an
// edit. Version holds the version number the edit replaced, so the current
// version of an entity is max(version)+1 (1 for a never-edited entity).
type EntityVersion struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EntityType string    `gorm:"size:50;uniqueIndex:idx_entity_version" json:"entity_type"`
	EntityID   uint      `gorm:"uniqueIndex:idx_entity_version" json:"entity_id"`
	Version    int       `gorm:"uniqueIndex:idx_entity_version" json:"version"`
	Data       string    `gorm:"type:jsonb" json:"data"`
	EditedBy   uint      `json:"edited_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// EntityConflict records an optimistic-concurrency collision: the client's
// expected version diverged from the stored one. Both payloads are kept so
// the client can render a diff. Mutated exactly once, on resolution.
type EntityConflict struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	EntityType      string     `gorm:"size:50;index:idx_entity_conflict" json:"entity_type"`
	EntityID        uint       `gorm:"index:idx_entity_conflict" json:"entity_id"`
	WorkspaceID     uint       `gorm:"index" json:"workspace_id"`
	CurrentVersion  int        `gorm:"not null" json:"current_version"`
	IncomingVersion int        `gorm:"not null" json:"incoming_version"`
	CurrentData     string     `gorm:"type:jsonb" json:"current_data"`
	IncomingData    string     `gorm:"type:jsonb" json:"incoming_data"`
	DetectedBy      uint       `json:"detected_by"`
	DetectedAt      time.Time  `gorm:"index" json:"detected_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolvedBy      *uint      `json:"resolved_by"`
	ResolvedVersion *int       `json:"resolved_version"`
}
