package models

import "github.com/google/uuid"

type File struct {
	BaseModel
	Name           string     `json:"name" gorm:"type:varchar(255);not null"`
	OwnerID        uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`
	ParentFolderID *uuid.UUID `json:"parentFolderID,omitempty" gorm:"type:uuid;index"`
	Size           int64      `json:"size" gorm:"not null;default:0"`
	MimeType       string     `json:"mimeType" gorm:"type:varchar(255);not null"`
	BlobRef        string     `json:"-" gorm:"type:text;not null"`
	URL            string     `json:"url" gorm:"type:text;not null"`

	Owner  User           `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Parent *Folder        `json:"parent,omitempty" gorm:"foreignKey:ParentFolderID"`
	Shares []SharedAccess `json:"-" gorm:"foreignKey:FileID"`
	Grants []Permission   `json:"-" gorm:"foreignKey:FileID"`
}

func (File) TableName() string {
	return "files"
}
