package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/homedrive/backend/internal/middleware"
	"github.com/homedrive/backend/internal/models"
	"github.com/homedrive/backend/internal/services"
	"github.com/homedrive/backend/pkg/logger"
	"github.com/homedrive/backend/pkg/utils"
	"gorm.io/gorm"
)

type FoldersHandler struct {
	DB     *gorm.DB
	Tree   *services.TreeService
	Paths  *services.PathService
	Access *services.AccessService
}

func NewFoldersHandler(db *gorm.DB, tree *services.TreeService, path *services.PathService, access *services.AccessService) *FoldersHandler {
	return &FoldersHandler{DB: db, Tree: tree, Paths: path, Access: access}
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentID"`
}

func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	parentID, ok := parseOptionalUUID(req.ParentID)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentID")
	}

	folder, err := h.Tree.CreateFolder(c.Context(), req.Name, currentUser.ID, parentID)
	if err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_created", map[string]interface{}{
		"folder_id":   folder.ID.String(),
		"folder_name": folder.Name,
		"parent_id":   parentID,
	})

	return utils.Success(c, fiber.StatusCreated, folder)
}

// ListRoot returns the requester's root-level folders and files.
func (h *FoldersHandler) ListRoot(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var folders []models.Folder
	if err := h.DB.Where("owner_id = ? AND parent_folder_id IS NULL", currentUser.ID).Order("name ASC").Find(&folders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing folders")
	}

	var files []models.File
	if err := h.DB.Where("owner_id = ? AND parent_folder_id IS NULL", currentUser.ID).Order("name ASC").Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"folders": folders, "files": files})
}

// Children lists a folder's direct subfolders and files. Requires VIEWER;
// an invisible folder reads as missing.
func (h *FoldersHandler) Children(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	visible, err := h.Access.HasPermission(c.Context(), currentUser.ID, folderID, models.ItemKindFolder, models.RoleViewer)
	if err != nil {
		return serviceError(c, err)
	}
	if !visible {
		return utils.Error(c, fiber.StatusNotFound, "folder not found")
	}

	var folders []models.Folder
	if err := h.DB.Where("parent_folder_id = ?", folderID).Order("name ASC").Find(&folders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing subfolders")
	}

	var files []models.File
	if err := h.DB.Where("parent_folder_id = ?", folderID).Order("name ASC").Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"folders": folders, "files": files})
}

// Path returns the breadcrumb chain from the synthetic root down to the
// folder.
func (h *FoldersHandler) Path(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	path, err := h.Paths.ResolvePath(c.Context(), folderID, currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, path)
}

// MoveTargets lists the immediate subfolders of a location being browsed as
// a move destination. No folderID means the root is being browsed.
func (h *FoldersHandler) MoveTargets(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	raw := c.Query("folderID")
	var folderID *uuid.UUID
	if raw != "" {
		parsed, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid folderID")
		}
		folderID = &parsed
	}

	folders, err := h.Paths.ListSubfolders(c.Context(), folderID, currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, folders)
}

type updateItemRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parentID"`
}

// Update renames and/or moves a folder. Rename runs first so a combined
// request that collides fails before anything is reparented.
func (h *FoldersHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var req updateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil && req.ParentID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	location, err := applyItemUpdate(c, h.Tree, folderID, models.ItemKindFolder, req, currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}

	var updated models.Folder
	if err := h.DB.First(&updated, "id = ?", folderID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated folder")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"folder": updated, "folderID": location})
}

func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	anchor, err := h.Tree.DeleteFolder(c.Context(), folderID, currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_deleted", map[string]interface{}{
		"folder_id": folderID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"folderID": anchor})
}

// applyItemUpdate runs the rename and/or move legs shared by the folder and
// file update endpoints, returning the item's final location. The legs are
// not atomic: when the move leg of a combined request fails, the error
// message says so, because the rename before it has already persisted.
func applyItemUpdate(c *fiber.Ctx, tree *services.TreeService, itemID uuid.UUID, kind models.ItemKind, req updateItemRequest, requesterID uuid.UUID) (*uuid.UUID, error) {
	var location *uuid.UUID
	renamed := false

	if req.Name != nil {
		parent, err := tree.Rename(c.Context(), itemID, kind, *req.Name, requesterID)
		if err != nil {
			return nil, err
		}
		location = parent
		renamed = true
	}

	if req.ParentID != nil {
		targetID, ok := parseOptionalUUID(req.ParentID)
		if !ok {
			return nil, &services.Error{Kind: services.ErrValidation, Message: "invalid parentID"}
		}
		newLocation, err := tree.Move(c.Context(), itemID, kind, targetID, requesterID)
		if err != nil {
			if renamed {
				var svcErr *services.Error
				if errors.As(err, &svcErr) {
					return nil, &services.Error{
						Kind:    svcErr.Kind,
						Message: svcErr.Message + "; the new name was kept",
						Anchor:  svcErr.Anchor,
						Err:     svcErr.Err,
					}
				}
			}
			return nil, err
		}
		location = newLocation
	}

	return location, nil
}
