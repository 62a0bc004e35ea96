package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/homedrive/backend/internal/middleware"
	"github.com/homedrive/backend/internal/models"
	"github.com/homedrive/backend/pkg/logger"
	"github.com/homedrive/backend/pkg/utils"
	"gorm.io/gorm"
)

// SharesHandler manages the two delegation mechanisms: link grants
// (SharedAccess) and direct per-user grants (Permission). Both are owner-only
// to create or revoke.
type SharesHandler struct {
	DB *gorm.DB
}

func NewSharesHandler(db *gorm.DB) *SharesHandler {
	return &SharesHandler{DB: db}
}

type createShareRequest struct {
	ItemID      string     `json:"itemID"`
	ItemKind    string     `json:"itemKind"`
	AccessType  string     `json:"accessType"`
	DefaultRole string     `json:"defaultRole"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

func (h *SharesHandler) CreateShare(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createShareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	kind, ok := parseItemKind(req.ItemKind)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "itemKind must be folder or file")
	}
	itemID, err := parseUUID(req.ItemID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid itemID")
	}
	if !isValidRole(req.DefaultRole) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid defaultRole")
	}
	accessType := models.AccessType(strings.ToLower(strings.TrimSpace(req.AccessType)))
	if accessType != models.AccessTypePrivate && accessType != models.AccessTypeLink {
		return utils.Error(c, fiber.StatusBadRequest, "invalid accessType")
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		return utils.Error(c, fiber.StatusBadRequest, "expiresAt must be in the future")
	}

	if ok, err := h.ownsItem(itemID, kind, currentUser.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading item")
	} else if !ok {
		return utils.Error(c, fiber.StatusNotFound, "item not found")
	}

	share := models.SharedAccess{
		CreatedByID: currentUser.ID,
		AccessType:  accessType,
		DefaultRole: models.Role(strings.ToLower(strings.TrimSpace(req.DefaultRole))),
		ExpiresAt:   req.ExpiresAt,
	}
	if kind == models.ItemKindFolder {
		share.FolderID = &itemID
	} else {
		share.FileID = &itemID
	}

	if err := h.DB.Create(&share).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating share")
	}

	logger.InfoWithUser(currentUser.ID.String(), "share_created", map[string]interface{}{
		"share_id":    share.ID.String(),
		"item_id":     itemID.String(),
		"item_kind":   string(kind),
		"access_type": string(share.AccessType),
		"role":        string(share.DefaultRole),
	})

	return utils.Success(c, fiber.StatusCreated, share)
}

func (h *SharesHandler) ListShares(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	kind, ok := parseItemKind(c.Query("itemKind"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "itemKind must be folder or file")
	}
	itemID, err := parseUUID(c.Query("itemID"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid itemID")
	}

	if ok, err := h.ownsItem(itemID, kind, currentUser.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading item")
	} else if !ok {
		return utils.Error(c, fiber.StatusNotFound, "item not found")
	}

	query := h.DB.Order("created_at DESC")
	if kind == models.ItemKindFolder {
		query = query.Where("folder_id = ?", itemID)
	} else {
		query = query.Where("file_id = ?", itemID)
	}

	var shares []models.SharedAccess
	if err := query.Find(&shares).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing shares")
	}
	return utils.Success(c, fiber.StatusOK, shares)
}

func (h *SharesHandler) DeleteShare(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	shareID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid share id")
	}

	var share models.SharedAccess
	if err := h.DB.First(&share, "id = ?", shareID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "share not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading share")
	}

	itemID, kind := shareTarget(&share)
	if ok, err := h.ownsItem(itemID, kind, currentUser.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading item")
	} else if !ok {
		return utils.Error(c, fiber.StatusNotFound, "item not found")
	}

	if err := h.DB.Delete(&models.SharedAccess{}, "id = ?", shareID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting share")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "share revoked"})
}

type grantPermissionRequest struct {
	ItemID   string `json:"itemID"`
	ItemKind string `json:"itemKind"`
	UserID   string `json:"userID"`
	Role     string `json:"role"`
}

// GrantPermission creates or updates a direct per-user role grant.
func (h *SharesHandler) GrantPermission(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req grantPermissionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	kind, ok := parseItemKind(req.ItemKind)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "itemKind must be folder or file")
	}
	itemID, err := parseUUID(req.ItemID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid itemID")
	}
	granteeID, err := parseUUID(req.UserID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid userID")
	}
	if !isValidRole(req.Role) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid role")
	}
	if granteeID == currentUser.ID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot grant a permission to yourself")
	}

	var grantee models.User
	if err := h.DB.First(&grantee, "id = ?", granteeID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "target user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading target user")
	}

	if ok, err := h.ownsItem(itemID, kind, currentUser.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading item")
	} else if !ok {
		return utils.Error(c, fiber.StatusNotFound, "item not found")
	}

	role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))

	var existing models.Permission
	query := h.DB.Where("user_id = ?", granteeID)
	if kind == models.ItemKindFolder {
		query = query.Where("folder_id = ?", itemID)
	} else {
		query = query.Where("file_id = ?", itemID)
	}
	err = query.First(&existing).Error
	switch err {
	case nil:
		if err := h.DB.Model(&existing).Update("role", role).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed updating permission")
		}
		existing.Role = role
		return utils.Success(c, fiber.StatusOK, existing)
	case gorm.ErrRecordNotFound:
		perm := models.Permission{UserID: granteeID, Role: role}
		if kind == models.ItemKindFolder {
			perm.FolderID = &itemID
		} else {
			perm.FileID = &itemID
		}
		if err := h.DB.Create(&perm).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed creating permission")
		}
		return utils.Success(c, fiber.StatusCreated, perm)
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading permission")
	}
}

func (h *SharesHandler) RevokePermission(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	permID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid permission id")
	}

	var perm models.Permission
	if err := h.DB.First(&perm, "id = ?", permID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "permission not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading permission")
	}

	itemID, kind := permissionTarget(&perm)
	if ok, err := h.ownsItem(itemID, kind, currentUser.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading item")
	} else if !ok {
		return utils.Error(c, fiber.StatusNotFound, "item not found")
	}

	if err := h.DB.Delete(&models.Permission{}, "id = ?", permID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting permission")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "permission revoked"})
}

// ownsItem reports whether userID owns the item. A missing item reads the
// same as one owned by someone else; existence is not revealed to non-owners.
func (h *SharesHandler) ownsItem(itemID uuid.UUID, kind models.ItemKind, userID uuid.UUID) (bool, error) {
	var ownerID uuid.UUID
	if kind == models.ItemKindFolder {
		var folder models.Folder
		if err := h.DB.First(&folder, "id = ?", itemID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return false, nil
			}
			return false, err
		}
		ownerID = folder.OwnerID
	} else {
		var file models.File
		if err := h.DB.First(&file, "id = ?", itemID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return false, nil
			}
			return false, err
		}
		ownerID = file.OwnerID
	}
	return ownerID == userID, nil
}

func parseItemKind(value string) (models.ItemKind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "folder":
		return models.ItemKindFolder, true
	case "file":
		return models.ItemKindFile, true
	default:
		return "", false
	}
}

func shareTarget(share *models.SharedAccess) (uuid.UUID, models.ItemKind) {
	if share.FolderID != nil {
		return *share.FolderID, models.ItemKindFolder
	}
	return *share.FileID, models.ItemKindFile
}

func permissionTarget(perm *models.Permission) (uuid.UUID, models.ItemKind) {
	if perm.FolderID != nil {
		return *perm.FolderID, models.ItemKindFolder
	}
	return *perm.FileID, models.ItemKindFile
}
