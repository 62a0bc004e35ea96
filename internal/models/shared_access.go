package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
)

type AccessType string

const (
	AccessTypePrivate AccessType = "private"
	AccessTypeLink    AccessType = "link"
)

// SharedAccess grants DefaultRole to anyone who can address the item, scoped
// by AccessType and an optional expiry. Expired grants are inert. Exactly one
// of FolderID/FileID is set (enforced by a check constraint on migrate).
type SharedAccess struct {
	BaseModel
	FolderID    *uuid.UUID `json:"folderID,omitempty" gorm:"type:uuid;index"`
	FileID      *uuid.UUID `json:"fileID,omitempty" gorm:"type:uuid;index"`
	CreatedByID uuid.UUID  `json:"createdByID" gorm:"type:uuid;not null;index"`
	AccessType  AccessType `json:"accessType" gorm:"type:varchar(20);not null;default:'private';index"`
	DefaultRole Role       `json:"defaultRole" gorm:"type:varchar(20);not null;default:'viewer'"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`

	Folder    *Folder `json:"folder,omitempty" gorm:"foreignKey:FolderID;references:ID"`
	File      *File   `json:"file,omitempty" gorm:"foreignKey:FileID;references:ID"`
	CreatedBy User    `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID;references:ID"`
}

func (SharedAccess) TableName() string {
	return "shared_accesses"
}

// Active reports whether the grant is usable by link holders at time now.
func (s *SharedAccess) Active(now time.Time) bool {
	if s.AccessType == AccessTypePrivate {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// RoleLevel orders roles for "most permissive wins" comparisons.
func RoleLevel(role Role) (int, bool) {
	switch role {
	case RoleViewer:
		return 1, true
	case RoleEditor:
		return 2, true
	default:
		return 0, false
	}
}

// Satisfies reports whether a held role covers a required one. EDITOR covers
// everything; VIEWER covers only VIEWER.
func Satisfies(held, required Role) bool {
	heldLevel, ok := RoleLevel(held)
	if !ok {
		return false
	}
	requiredLevel, ok := RoleLevel(required)
	if !ok {
		return false
	}
	return heldLevel >= requiredLevel
}
