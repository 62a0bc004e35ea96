package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/homedrive/backend/internal/models"
	"gorm.io/gorm"
)

// Breadcrumb is one entry of a folder's ancestor path. A nil ID is the
// synthetic root location, not a folder record.
type Breadcrumb struct {
	ID       *uuid.UUID `json:"id"`
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parentID"`
}

// RootBreadcrumb is the distinguished top-level location every path starts
// at, kept separate from "folder without a parent" so the two never blur.
func RootBreadcrumb() Breadcrumb {
	return Breadcrumb{ID: nil, Name: "root", ParentID: nil}
}

type PathService struct {
	DB *gorm.DB
}

func NewPathService(db *gorm.DB) *PathService {
	return &PathService{DB: db}
}

// ResolvePath returns the breadcrumb path of a folder: the synthetic root,
// then each ancestor top-down, ending with the folder itself. The folder must
// belong to ownerID; otherwise it is reported as missing.
func (p *PathService) ResolvePath(ctx context.Context, folderID uuid.UUID, ownerID uuid.UUID) ([]Breadcrumb, error) {
	visited := make([]Breadcrumb, 0, 8)
	currentID := folderID

	for depth := 0; ; depth++ {
		if depth >= maxTreeDepth {
			return nil, newError(ErrStore, "folder tree deeper than supported")
		}

		var folder models.Folder
		if err := p.DB.WithContext(ctx).First(&folder, "id = ?", currentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, newError(ErrNotFound, "folder not found")
			}
			return nil, wrapError(ErrStore, "failed loading folder", err)
		}
		if folder.OwnerID != ownerID {
			return nil, newError(ErrNotFound, "folder not found")
		}

		id := folder.ID
		visited = append(visited, Breadcrumb{ID: &id, Name: folder.Name, ParentID: folder.ParentFolderID})
		if folder.ParentFolderID == nil {
			break
		}
		currentID = *folder.ParentFolderID
	}

	path := make([]Breadcrumb, 0, len(visited)+1)
	path = append(path, RootBreadcrumb())
	for i := len(visited) - 1; i >= 0; i-- {
		path = append(path, visited[i])
	}
	return path, nil
}

// ListSubfolders returns the immediate subfolders of a location, used by the
// move-target picker. A nil folderID lists the owner's root folders.
func (p *PathService) ListSubfolders(ctx context.Context, folderID *uuid.UUID, ownerID uuid.UUID) ([]models.Folder, error) {
	query := p.DB.WithContext(ctx).Where("owner_id = ?", ownerID)
	if folderID == nil {
		query = query.Where("parent_folder_id IS NULL")
	} else {
		query = query.Where("parent_folder_id = ?", *folderID)
	}

	var folders []models.Folder
	if err := query.Order("name ASC").Find(&folders).Error; err != nil {
		return nil, wrapError(ErrStore, "failed listing subfolders", err)
	}
	return folders, nil
}
