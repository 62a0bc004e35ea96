package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/homedrive/backend/internal/models"
	"gorm.io/gorm"
)

// maxTreeDepth caps every ancestor walk. Folder chains are acyclic by
// construction; the cap keeps a corrupted parent pointer from looping.
const maxTreeDepth = 128

type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

// HasPermission decides whether userID may act on the item with requiredRole.
// Resolution order, first decisive match wins:
//
//  1. the owner holds EDITOR implicitly;
//  2. a direct per-user grant on the item or the nearest ancestor carrying
//     one decides (EDITOR satisfies everything, VIEWER only VIEWER);
//  3. with no direct grant anywhere on the chain, the unexpired non-private
//     share grants on the top of the chain are consulted, most permissive
//     first;
//  4. otherwise deny.
//
// The ancestor chain is fetched once; the walk never recurses.
func (a *AccessService) HasPermission(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, kind models.ItemKind, requiredRole models.Role) (bool, error) {
	if _, ok := models.RoleLevel(requiredRole); !ok {
		return false, nil
	}

	item, err := a.loadItem(ctx, itemID, kind)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, wrapError(ErrStore, "failed loading item", err)
	}

	if item.OwnerUserID() == userID {
		return true, nil
	}

	chain, err := a.ancestorChain(ctx, item.ParentID())
	if err != nil {
		return false, err
	}

	// Direct grants, item first then each ancestor outward: a deeper grant
	// overrides anything above it.
	grants, err := a.directGrants(ctx, userID, item, chain)
	if err != nil {
		return false, err
	}
	if grant, ok := grants[item.ItemID()]; ok {
		return models.Satisfies(grant, requiredRole), nil
	}
	for _, folderID := range chain {
		if grant, ok := grants[folderID]; ok {
			return models.Satisfies(grant, requiredRole), nil
		}
	}

	// No direct grant anywhere: link grants attached to the top of the chain
	// (the item itself when it has no parent).
	topID := item.ItemID()
	topKind := kind
	if len(chain) > 0 {
		topID = chain[len(chain)-1]
		topKind = models.ItemKindFolder
	}
	role, ok, err := a.bestLinkRole(ctx, topID, topKind)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return models.Satisfies(role, requiredRole), nil
}

func (a *AccessService) loadItem(ctx context.Context, itemID uuid.UUID, kind models.ItemKind) (models.Item, error) {
	if kind == models.ItemKindFolder {
		var folder models.Folder
		if err := a.DB.WithContext(ctx).First(&folder, "id = ?", itemID).Error; err != nil {
			return nil, err
		}
		return &folder, nil
	}
	var file models.File
	if err := a.DB.WithContext(ctx).First(&file, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// ancestorChain returns folder ids starting from startID up to the root,
// fetched in a single recursive query and ordered nearest-first.
func (a *AccessService) ancestorChain(ctx context.Context, startID *uuid.UUID) ([]uuid.UUID, error) {
	if startID == nil {
		return nil, nil
	}

	var rows []struct {
		ID uuid.UUID
	}
	err := a.DB.WithContext(ctx).Raw(`
		WITH RECURSIVE ancestors(id, parent_folder_id, depth) AS (
			SELECT id, parent_folder_id, 0 FROM folders WHERE id = ? AND deleted_at IS NULL
			UNION ALL
			SELECT f.id, f.parent_folder_id, a.depth + 1
			FROM folders f
			INNER JOIN ancestors a ON f.id = a.parent_folder_id
			WHERE f.deleted_at IS NULL AND a.depth < ?
		)
		SELECT id FROM ancestors ORDER BY depth
	`, *startID, maxTreeDepth).Scan(&rows).Error
	if err != nil {
		return nil, wrapError(ErrStore, "failed loading ancestor chain", err)
	}

	chain := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		chain[i] = row.ID
	}
	return chain, nil
}

// directGrants loads the user's per-item grants for the item and its whole
// ancestor chain in one query, keyed by target id.
func (a *AccessService) directGrants(ctx context.Context, userID uuid.UUID, item models.Item, chain []uuid.UUID) (map[uuid.UUID]models.Role, error) {
	query := a.DB.WithContext(ctx).Where("user_id = ?", userID)

	folderIDs := chain
	if item.ItemKind() == models.ItemKindFolder {
		folderIDs = append([]uuid.UUID{item.ItemID()}, chain...)
	}

	switch {
	case item.ItemKind() == models.ItemKindFile && len(folderIDs) > 0:
		query = query.Where("file_id = ? OR folder_id IN ?", item.ItemID(), folderIDs)
	case item.ItemKind() == models.ItemKindFile:
		query = query.Where("file_id = ?", item.ItemID())
	default:
		query = query.Where("folder_id IN ?", folderIDs)
	}

	var permissions []models.Permission
	if err := query.Find(&permissions).Error; err != nil {
		return nil, wrapError(ErrStore, "failed loading direct grants", err)
	}

	grants := make(map[uuid.UUID]models.Role, len(permissions))
	for _, perm := range permissions {
		switch {
		case perm.FileID != nil:
			grants[*perm.FileID] = perm.Role
		case perm.FolderID != nil:
			grants[*perm.FolderID] = perm.Role
		}
	}
	return grants, nil
}

// bestLinkRole returns the most permissive role among the item's unexpired
// non-private share grants.
func (a *AccessService) bestLinkRole(ctx context.Context, itemID uuid.UUID, kind models.ItemKind) (models.Role, bool, error) {
	query := a.DB.WithContext(ctx)
	if kind == models.ItemKindFolder {
		query = query.Where("folder_id = ?", itemID)
	} else {
		query = query.Where("file_id = ?", itemID)
	}

	var shares []models.SharedAccess
	if err := query.Find(&shares).Error; err != nil {
		return "", false, wrapError(ErrStore, "failed loading share grants", err)
	}

	now := time.Now()
	best := models.Role("")
	bestLevel := 0
	for _, share := range shares {
		if !share.Active(now) {
			continue
		}
		if level, ok := models.RoleLevel(share.DefaultRole); ok && level > bestLevel {
			best = share.DefaultRole
			bestLevel = level
		}
	}
	return best, bestLevel > 0, nil
}
