package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/homedrive/backend/internal/models"
	"gorm.io/gorm"
)

// NamingService resolves name collisions within an (owner, parent) scope.
// Its answers are optimistic suggestions only: the store's unique indexes
// remain the authority, and writers retry on a duplicate-key error.
type NamingService struct {
	DB *gorm.DB
}

func NewNamingService(db *gorm.DB) *NamingService {
	return &NamingService{DB: db}
}

// ResolveUniqueName returns desiredName if it is free in the scope, otherwise
// the first free candidate of the form stem(1)ext, stem(2)ext, ... Folders and
// files occupy independent namespaces, so only items of kind are consulted.
func (n *NamingService) ResolveUniqueName(ctx context.Context, desiredName string, ownerID uuid.UUID, parentFolderID *uuid.UUID, kind models.ItemKind) (string, error) {
	taken, err := n.scopeNames(ctx, ownerID, parentFolderID, kind)
	if err != nil {
		return "", wrapError(ErrStore, "failed loading names in scope", err)
	}

	if !taken[desiredName] {
		return desiredName, nil
	}

	stem, ext := SplitName(desiredName)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s(%d)%s", stem, i, ext)
		if !taken[candidate] {
			return candidate, nil
		}
	}
}

// NameTaken is the collision check behind rename and move. excludeID removes
// the item's own record from the scope, so renaming an item to its current
// name is a no-op rather than a self-collision.
func (n *NamingService) NameTaken(ctx context.Context, name string, ownerID uuid.UUID, parentFolderID *uuid.UUID, kind models.ItemKind, excludeID *uuid.UUID) (bool, error) {
	query := n.scopeQuery(ctx, ownerID, parentFolderID, kind).Where("name = ?", name)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, wrapError(ErrStore, "failed checking name collision", err)
	}
	return count > 0, nil
}

func (n *NamingService) scopeNames(ctx context.Context, ownerID uuid.UUID, parentFolderID *uuid.UUID, kind models.ItemKind) (map[string]bool, error) {
	var names []string
	if err := n.scopeQuery(ctx, ownerID, parentFolderID, kind).Pluck("name", &names).Error; err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(names))
	for _, name := range names {
		taken[name] = true
	}
	return taken, nil
}

func (n *NamingService) scopeQuery(ctx context.Context, ownerID uuid.UUID, parentFolderID *uuid.UUID, kind models.ItemKind) *gorm.DB {
	query := n.DB.WithContext(ctx)
	if kind == models.ItemKindFolder {
		query = query.Model(&models.Folder{})
	} else {
		query = query.Model(&models.File{})
	}

	query = query.Where("owner_id = ?", ownerID)
	if parentFolderID == nil {
		return query.Where("parent_folder_id IS NULL")
	}
	return query.Where("parent_folder_id = ?", *parentFolderID)
}

// SplitName splits a name into stem and extension; the extension runs from
// the last dot onward ("archive.tar.gz" -> "archive.tar", ".gz"). A leading
// dot with no other dots is part of the stem (".bashrc" has no extension).
func SplitName(name string) (stem, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}
