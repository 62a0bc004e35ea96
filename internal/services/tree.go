package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/homedrive/backend/internal/models"
	"github.com/homedrive/backend/pkg/logger"
	"gorm.io/gorm"
)

// createRetries bounds how often a create re-resolves its name suggestion
// after the store rejected a duplicate. Each retry re-reads the scope, so a
// loss in the check-then-act race only costs one extra round trip.
const createRetries = 5

// TreeService performs the multi-record namespace operations: folder
// creation, rename, move and recursive delete. Permission and existence
// checks fail fast with no partial mutation; the destructive walks compensate
// and collect errors instead of stopping halfway.
type TreeService struct {
	DB     *gorm.DB
	Blobs  BlobStore
	Access *AccessService
	Naming *NamingService
}

func NewTreeService(db *gorm.DB, blobs BlobStore, access *AccessService, naming *NamingService) *TreeService {
	return &TreeService{DB: db, Blobs: blobs, Access: access, Naming: naming}
}

// CreateFolder creates a folder under parentFolderID (nil = root). Creating
// inside someone else's folder requires EDITOR on it, and the new folder then
// belongs to the parent's owner so the whole chain stays single-owner.
func (t *TreeService) CreateFolder(ctx context.Context, name string, requesterID uuid.UUID, parentFolderID *uuid.UUID) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(ErrValidation, "folder name must not be empty")
	}

	ownerID := requesterID
	if parentFolderID != nil {
		parent, err := t.loadFolder(ctx, *parentFolderID)
		if err != nil {
			return nil, err
		}
		if err := t.requireRole(ctx, requesterID, parent.ID, models.ItemKindFolder, models.RoleEditor, parent.ParentFolderID); err != nil {
			return nil, err
		}
		ownerID = parent.OwnerID
	}

	var created *models.Folder
	err := t.createWithNameRetry(ctx, name, ownerID, parentFolderID, models.ItemKindFolder, func(finalName string) error {
		folder := models.Folder{
			Name:           finalName,
			OwnerID:        ownerID,
			ParentFolderID: parentFolderID,
		}
		if err := t.DB.WithContext(ctx).Create(&folder).Error; err != nil {
			return err
		}
		created = &folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Rename updates an item's name only, in place. Renaming to the current name
// succeeds as a no-op. Returns the item's parent folder for the caller to
// re-render.
func (t *TreeService) Rename(ctx context.Context, itemID uuid.UUID, kind models.ItemKind, newName string, requesterID uuid.UUID) (*uuid.UUID, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, newError(ErrValidation, "name must not be empty")
	}

	item, err := t.loadItem(ctx, itemID, kind)
	if err != nil {
		return nil, err
	}
	anchor := item.ParentID()

	if err := t.requireRole(ctx, requesterID, itemID, kind, models.RoleEditor, anchor); err != nil {
		return nil, err
	}

	if newName == item.ItemName() {
		return anchor, nil
	}

	excludeID := itemID
	taken, err := t.Naming.NameTaken(ctx, newName, item.OwnerUserID(), anchor, kind, &excludeID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, newError(ErrNameConflict, "an item with that name already exists here").at(anchor)
	}

	if err := t.updateModel(ctx, itemID, kind, map[string]interface{}{"name": newName}); err != nil {
		if isUniqueViolation(err) {
			return nil, wrapError(ErrNameConflict, "an item with that name already exists here", err).at(anchor)
		}
		return nil, wrapError(ErrStore, "failed renaming item", err).at(anchor)
	}
	return anchor, nil
}

// Move reassigns an item's parent folder and touches nothing else; children
// follow implicitly because they point at the moved folder's unchanged id.
// Every failure is anchored to the item's original location.
func (t *TreeService) Move(ctx context.Context, itemID uuid.UUID, kind models.ItemKind, targetFolderID *uuid.UUID, requesterID uuid.UUID) (*uuid.UUID, error) {
	item, err := t.loadItem(ctx, itemID, kind)
	if err != nil {
		return nil, err
	}
	anchor := item.ParentID()

	if item.OwnerUserID() != requesterID {
		return nil, t.denyOrHide(ctx, requesterID, itemID, kind, anchor)
	}

	if targetFolderID != nil {
		target, err := t.loadFolder(ctx, *targetFolderID)
		if err != nil {
			if KindOf(err) == ErrNotFound {
				return nil, newError(ErrNotFound, "target folder not found").at(anchor)
			}
			return nil, err
		}
		if target.OwnerID != requesterID {
			return nil, newError(ErrNotFound, "target folder not found").at(anchor)
		}

		if kind == models.ItemKindFolder {
			if target.ID == itemID {
				return nil, newError(ErrCycle, "cannot move a folder into itself").at(anchor)
			}
			inside, err := t.isDescendant(ctx, itemID, target.ID)
			if err != nil {
				return nil, err
			}
			if inside {
				return nil, newError(ErrCycle, "cannot move a folder into its own subtree").at(anchor)
			}
		}
	}

	excludeID := itemID
	taken, err := t.Naming.NameTaken(ctx, item.ItemName(), item.OwnerUserID(), targetFolderID, kind, &excludeID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, newError(ErrNameConflict, "an item with that name already exists at the target").at(anchor)
	}

	if err := t.updateModel(ctx, itemID, kind, map[string]interface{}{"parent_folder_id": targetFolderID}); err != nil {
		if isUniqueViolation(err) {
			return nil, wrapError(ErrNameConflict, "an item with that name already exists at the target", err).at(anchor)
		}
		return nil, wrapError(ErrStore, "failed moving item", err).at(anchor)
	}
	return targetFolderID, nil
}

// DeleteFile removes one file: blob first (best effort), then metadata and
// grants. A failed blob delete is logged and never blocks the metadata
// delete; a stray blob beats a record pointing at vanished content. Returns
// the file's former parent folder.
func (t *TreeService) DeleteFile(ctx context.Context, fileID uuid.UUID, requesterID uuid.UUID) (*uuid.UUID, error) {
	var file models.File
	if err := t.DB.WithContext(ctx).First(&file, "id = ?", fileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, newError(ErrNotFound, "file not found")
		}
		return nil, wrapError(ErrStore, "failed loading file", err)
	}
	anchor := file.ParentFolderID

	if err := t.requireRole(ctx, requesterID, fileID, models.ItemKindFile, models.RoleEditor, anchor); err != nil {
		return nil, err
	}

	t.deleteBlob(ctx, file.BlobRef)

	err := t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", file.ID).Delete(&models.SharedAccess{}).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id = ?", file.ID).Delete(&models.Permission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.File{}, "id = ?", file.ID).Error
	})
	if err != nil {
		return nil, wrapError(ErrStore, "failed deleting file", err).at(anchor)
	}
	return anchor, nil
}

// DeleteFolder deletes a folder and its entire subtree, children before
// parents. Each folder level is one transaction (bulk child-file delete,
// grant cleanup, the folder itself); sibling failures are collected rather
// than fatal so the walk removes as much as it can, and re-running it after
// a crash finishes the remainder. Returns the folder's former parent.
func (t *TreeService) DeleteFolder(ctx context.Context, folderID uuid.UUID, requesterID uuid.UUID) (*uuid.UUID, error) {
	folder, err := t.loadFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	anchor := folder.ParentFolderID

	if err := t.requireRole(ctx, requesterID, folderID, models.ItemKindFolder, models.RoleEditor, anchor); err != nil {
		return nil, err
	}

	order, err := t.subtreeFolders(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if err := t.deleteFolderLevel(ctx, order[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, wrapError(ErrStore, "subtree may be partially deleted", errors.Join(errs...)).at(anchor)
	}
	return anchor, nil
}

// subtreeFolders collects the folder ids of a subtree in top-down order via
// an explicit stack; callers process the slice in reverse for children-first
// deletion.
func (t *TreeService) subtreeFolders(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, error) {
	type frame struct {
		id    uuid.UUID
		depth int
	}

	order := make([]uuid.UUID, 0, 8)
	stack := []frame{{id: rootID}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.depth >= maxTreeDepth {
			return nil, newError(ErrStore, "folder tree deeper than supported")
		}
		order = append(order, top.id)

		var children []models.Folder
		if err := t.DB.WithContext(ctx).Select("id").Where("parent_folder_id = ?", top.id).Find(&children).Error; err != nil {
			return nil, wrapError(ErrStore, "failed loading subfolders", err)
		}
		for _, child := range children {
			stack = append(stack, frame{id: child.ID, depth: top.depth + 1})
		}
	}
	return order, nil
}

func (t *TreeService) deleteFolderLevel(ctx context.Context, folderID uuid.UUID) error {
	var files []models.File
	if err := t.DB.WithContext(ctx).Select("id", "blob_ref").Where("parent_folder_id = ?", folderID).Find(&files).Error; err != nil {
		return err
	}

	fileIDs := make([]uuid.UUID, 0, len(files))
	for _, file := range files {
		t.deleteBlob(ctx, file.BlobRef)
		fileIDs = append(fileIDs, file.ID)
	}

	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fileIDs) > 0 {
			if err := tx.Where("file_id IN ?", fileIDs).Delete(&models.SharedAccess{}).Error; err != nil {
				return err
			}
			if err := tx.Where("file_id IN ?", fileIDs).Delete(&models.Permission{}).Error; err != nil {
				return err
			}
			if err := tx.Where("parent_folder_id = ?", folderID).Delete(&models.File{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("folder_id = ?", folderID).Delete(&models.SharedAccess{}).Error; err != nil {
			return err
		}
		if err := tx.Where("folder_id = ?", folderID).Delete(&models.Permission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Folder{}, "id = ?", folderID).Error
	})
}

func (t *TreeService) deleteBlob(ctx context.Context, blobRef string) {
	if blobRef == "" {
		return
	}
	if err := t.Blobs.Delete(ctx, blobRef); err != nil {
		logger.Error("blob_delete_failed", err, map[string]interface{}{
			"blob_ref": blobRef,
		})
	}
}

// isDescendant walks from candidateID upward looking for ancestorID.
func (t *TreeService) isDescendant(ctx context.Context, ancestorID, candidateID uuid.UUID) (bool, error) {
	current := candidateID
	for depth := 0; depth < maxTreeDepth; depth++ {
		if current == ancestorID {
			return true, nil
		}

		var folder models.Folder
		err := t.DB.WithContext(ctx).Select("id", "parent_folder_id").First(&folder, "id = ?", current).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return false, nil
			}
			return false, wrapError(ErrStore, "failed walking ancestors", err)
		}
		if folder.ParentFolderID == nil {
			return false, nil
		}
		current = *folder.ParentFolderID
	}
	return false, newError(ErrStore, "folder tree deeper than supported")
}

// requireRole fails with AccessDenied when the requester can see the item but
// lacks the role, and with NotFound when they cannot see it at all.
func (t *TreeService) requireRole(ctx context.Context, userID, itemID uuid.UUID, kind models.ItemKind, required models.Role, anchor *uuid.UUID) error {
	ok, err := t.Access.HasPermission(ctx, userID, itemID, kind, required)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if required == models.RoleViewer {
		return newError(ErrNotFound, "item not found").at(anchor)
	}
	return t.denyOrHide(ctx, userID, itemID, kind, anchor)
}

func (t *TreeService) denyOrHide(ctx context.Context, userID, itemID uuid.UUID, kind models.ItemKind, anchor *uuid.UUID) error {
	visible, err := t.Access.HasPermission(ctx, userID, itemID, kind, models.RoleViewer)
	if err != nil {
		return err
	}
	if visible {
		return newError(ErrAccessDenied, "access denied").at(anchor)
	}
	return newError(ErrNotFound, "item not found").at(anchor)
}

func (t *TreeService) loadFolder(ctx context.Context, folderID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	if err := t.DB.WithContext(ctx).First(&folder, "id = ?", folderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, newError(ErrNotFound, "folder not found")
		}
		return nil, wrapError(ErrStore, "failed loading folder", err)
	}
	return &folder, nil
}

func (t *TreeService) loadItem(ctx context.Context, itemID uuid.UUID, kind models.ItemKind) (models.Item, error) {
	if kind == models.ItemKindFolder {
		return t.loadFolder(ctx, itemID)
	}
	var file models.File
	if err := t.DB.WithContext(ctx).First(&file, "id = ?", itemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, newError(ErrNotFound, "file not found")
		}
		return nil, wrapError(ErrStore, "failed loading file", err)
	}
	return &file, nil
}

func (t *TreeService) updateModel(ctx context.Context, itemID uuid.UUID, kind models.ItemKind, updates map[string]interface{}) error {
	query := t.DB.WithContext(ctx)
	if kind == models.ItemKindFolder {
		query = query.Model(&models.Folder{})
	} else {
		query = query.Model(&models.File{})
	}
	return query.Where("id = ?", itemID).Updates(updates).Error
}

// createWithNameRetry resolves a name suggestion and runs create, re-resolving
// and retrying when the store's unique index rejects a concurrent duplicate.
func (t *TreeService) createWithNameRetry(ctx context.Context, desiredName string, ownerID uuid.UUID, parentFolderID *uuid.UUID, kind models.ItemKind, create func(finalName string) error) error {
	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		finalName, err := t.Naming.ResolveUniqueName(ctx, desiredName, ownerID, parentFolderID, kind)
		if err != nil {
			return err
		}

		err = create(finalName)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return wrapError(ErrStore, "failed creating item", err).at(parentFolderID)
		}
		lastErr = err
	}
	return wrapError(ErrNameConflict, "could not settle on a unique name", lastErr).at(parentFolderID)
}
