package models

import "github.com/google/uuid"

type Folder struct {
	BaseModel
	Name           string     `json:"name" gorm:"type:varchar(255);not null"`
	OwnerID        uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`
	ParentFolderID *uuid.UUID `json:"parentFolderID,omitempty" gorm:"type:uuid;index"`

	Owner      User           `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Parent     *Folder        `json:"parent,omitempty" gorm:"foreignKey:ParentFolderID"`
	Subfolders []Folder       `json:"subfolders,omitempty" gorm:"foreignKey:ParentFolderID"`
	Files      []File         `json:"files,omitempty" gorm:"foreignKey:ParentFolderID"`
	Shares     []SharedAccess `json:"-" gorm:"foreignKey:FolderID"`
	Grants     []Permission   `json:"-" gorm:"foreignKey:FolderID"`
}

func (Folder) TableName() string {
	return "folders"
}
