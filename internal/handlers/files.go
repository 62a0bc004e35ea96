package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/homedrive/backend/internal/middleware"
	"github.com/homedrive/backend/internal/models"
	"github.com/homedrive/backend/internal/services"
	"github.com/homedrive/backend/internal/storage"
	"github.com/homedrive/backend/pkg/logger"
	"github.com/homedrive/backend/pkg/utils"
	"gorm.io/gorm"
)

type FilesHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
	Uploads *services.UploadService
	Tree    *services.TreeService
	Access  *services.AccessService
}

func NewFilesHandler(db *gorm.DB, storageClient *storage.MinIOClient, uploads *services.UploadService, tree *services.TreeService, access *services.AccessService) *FilesHandler {
	return &FilesHandler{DB: db, Storage: storageClient, Uploads: uploads, Tree: tree, Access: access}
}

type uploadResultResponse struct {
	Name  string       `json:"name"`
	File  *models.File `json:"file,omitempty"`
	Error string       `json:"error,omitempty"`
}

// Upload accepts one or more files under the "files" form field. Files are
// processed independently: some entries of the response may carry a record
// while others carry an error.
func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "multipart form is required")
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		fileHeaders = form.File["file"]
	}
	if len(fileHeaders) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "at least one file is required")
	}

	parentRaw := c.FormValue("parentID")
	parentID, ok := parseOptionalUUID(&parentRaw)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentID")
	}

	results := make([]uploadResultResponse, 0, len(fileHeaders))
	succeeded := 0
	backendFailure := false
	for _, header := range fileHeaders {
		stream, err := header.Open()
		if err != nil {
			results = append(results, uploadResultResponse{Name: header.Filename, Error: "failed opening uploaded file"})
			continue
		}

		file, err := h.Uploads.UploadFile(c.Context(), services.UploadInput{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Size:     header.Size,
			Reader:   stream,
		}, currentUser.ID, parentID)
		stream.Close()

		if err != nil {
			logger.ErrorWithUser(currentUser.ID.String(), "file_upload_failed", err, map[string]interface{}{
				"file_name": header.Filename,
			})
			switch services.KindOf(err) {
			case services.ErrBlobStore, services.ErrStore:
				backendFailure = true
			}
			results = append(results, uploadResultResponse{Name: header.Filename, Error: err.Error()})
			continue
		}

		succeeded++
		logger.InfoWithUser(currentUser.ID.String(), "file_uploaded", map[string]interface{}{
			"file_id":   file.ID.String(),
			"file_name": file.Name,
			"file_size": file.Size,
			"mime_type": file.MimeType,
		})
		results = append(results, uploadResultResponse{Name: header.Filename, File: file})
	}

	if succeeded == 0 {
		// Only a backend fault is the gateway's problem; a batch of bad
		// requests is the client's.
		status := fiber.StatusBadRequest
		if backendFailure {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   "all uploads failed",
			"data":    results,
		})
	}
	return utils.Success(c, fiber.StatusCreated, results)
}

func (h *FilesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	visible, err := h.Access.HasPermission(c.Context(), currentUser.ID, fileID, models.ItemKindFile, models.RoleViewer)
	if err != nil {
		return serviceError(c, err)
	}
	if !visible {
		return utils.Error(c, fiber.StatusNotFound, "file not found")
	}

	var file models.File
	if err := h.DB.Preload("Owner").First(&file, "id = ?", fileID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	visible, err := h.Access.HasPermission(c.Context(), currentUser.ID, fileID, models.ItemKindFile, models.RoleViewer)
	if err != nil {
		return serviceError(c, err)
	}
	if !visible {
		return utils.Error(c, fiber.StatusNotFound, "file not found")
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	obj, err := h.Storage.Download(c.Context(), file.BlobRef)
	if err != nil {
		return utils.Error(c, fiber.StatusBadGateway, "failed downloading file")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return utils.Error(c, fiber.StatusBadGateway, "failed reading object metadata")
	}

	contentType := stat.ContentType
	if contentType == "" {
		contentType = file.MimeType
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	return c.SendStream(obj, int(stat.Size))
}

// DownloadURL hands out a short-lived presigned URL instead of streaming
// through the API.
func (h *FilesHandler) DownloadURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	visible, err := h.Access.HasPermission(c.Context(), currentUser.ID, fileID, models.ItemKindFile, models.RoleViewer)
	if err != nil {
		return serviceError(c, err)
	}
	if !visible {
		return utils.Error(c, fiber.StatusNotFound, "file not found")
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	url, err := h.Storage.PresignedGetURL(c.Context(), file.BlobRef, 15*time.Minute)
	if err != nil {
		return utils.Error(c, fiber.StatusBadGateway, "failed generating download url")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

// Update renames and/or moves a file.
func (h *FilesHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var req updateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil && req.ParentID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	location, err := applyItemUpdate(c, h.Tree, fileID, models.ItemKindFile, req, currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}

	var updated models.File
	if err := h.DB.First(&updated, "id = ?", fileID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated file")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"file": updated, "folderID": location})
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	anchor, err := h.Tree.DeleteFile(c.Context(), fileID, currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_deleted", map[string]interface{}{
		"file_id": fileID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"folderID": anchor})
}
