package models

import "github.com/google/uuid"

// Permission is a direct per-user role grant on a specific folder or file,
// independent of share links. Exactly one of FolderID/FileID is set.
type Permission struct {
	BaseModel
	UserID   uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_perm_user_folder;uniqueIndex:idx_perm_user_file"`
	FolderID *uuid.UUID `json:"folderID,omitempty" gorm:"type:uuid;index;uniqueIndex:idx_perm_user_folder"`
	FileID   *uuid.UUID `json:"fileID,omitempty" gorm:"type:uuid;index;uniqueIndex:idx_perm_user_file"`
	Role     Role       `json:"role" gorm:"type:varchar(20);not null;default:'viewer'"`

	User   User    `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
	Folder *Folder `json:"folder,omitempty" gorm:"foreignKey:FolderID;references:ID"`
	File   *File   `json:"file,omitempty" gorm:"foreignKey:FileID;references:ID"`
}

func (Permission) TableName() string {
	return "permissions"
}
