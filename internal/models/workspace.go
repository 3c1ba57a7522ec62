package models

import "time"

type Workspace struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedBy uint      `gorm:"index;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Members []WorkspaceMember `json:"members,omitempty"`
}

type WorkspaceRole string

const (
	WorkspaceRoleOwner  WorkspaceRole = "owner"
	WorkspaceRoleMember WorkspaceRole = "member"
)

type WorkspaceMember struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	WorkspaceID uint          `gorm:"uniqueIndex:idx_workspace_user;not null" json:"workspace_id"`
	UserID      uint          `gorm:"uniqueIndex:idx_workspace_user;not null" json:"user_id"`
	Role        WorkspaceRole `gorm:"size:20;not null" json:"role"`
	CreatedAt   time.Time     `json:"created_at"`
}
