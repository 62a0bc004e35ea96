package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/homedrive/backend/internal/models"
	"github.com/homedrive/backend/pkg/logger"
	"gorm.io/gorm"
)

// UploadInput is one file's payload and client-supplied metadata.
type UploadInput struct {
	Name     string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// UploadResult pairs each input of a batch with its outcome. Batches have
// partial-success semantics: one file's failure rolls back only that file's
// blob, siblings already committed stay committed.
type UploadResult struct {
	Name string
	File *models.File
	Err  error
}

// UploadService sequences the blob-store write and the metadata write so a
// partial failure leaves neither an orphaned blob nor an orphaned record.
// There is no two-phase commit across the two stores; the compensating blob
// delete after a failed metadata create is the whole rollback story.
type UploadService struct {
	DB     *gorm.DB
	Blobs  BlobStore
	Access *AccessService
	Naming *NamingService
}

func NewUploadService(db *gorm.DB, blobs BlobStore, access *AccessService, naming *NamingService) *UploadService {
	return &UploadService{DB: db, Blobs: blobs, Access: access, Naming: naming}
}

// UploadFile stores one file under parentFolderID (nil = requester's root).
// Uploading into a folder requires EDITOR on it and the file then belongs to
// the folder's owner, keeping parent and child under one owner.
//
// Order of operations: blob put, name resolution, metadata create. A
// duplicate-name rejection from the store re-resolves and retries the create;
// any terminal create failure deletes the just-written blob before the error
// is surfaced. A timeout from the blob put is an unknown outcome and is
// surfaced as-is, never retried here.
func (u *UploadService) UploadFile(ctx context.Context, in UploadInput, requesterID uuid.UUID, parentFolderID *uuid.UUID) (*models.File, error) {
	name := filepath.Base(strings.TrimSpace(in.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, newError(ErrValidation, "file name must not be empty").at(parentFolderID)
	}

	ownerID := requesterID
	if parentFolderID != nil {
		var parent models.Folder
		if err := u.DB.WithContext(ctx).First(&parent, "id = ?", *parentFolderID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, newError(ErrNotFound, "parent folder not found")
			}
			return nil, wrapError(ErrStore, "failed loading parent folder", err)
		}

		allowed, err := u.Access.HasPermission(ctx, requesterID, parent.ID, models.ItemKindFolder, models.RoleEditor)
		if err != nil {
			return nil, err
		}
		if !allowed {
			visible, err := u.Access.HasPermission(ctx, requesterID, parent.ID, models.ItemKindFolder, models.RoleViewer)
			if err != nil {
				return nil, err
			}
			if visible {
				return nil, newError(ErrAccessDenied, "no permission to upload into this folder").at(parentFolderID)
			}
			return nil, newError(ErrNotFound, "parent folder not found")
		}
		ownerID = parent.OwnerID
	}

	contentType := in.MimeType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	blobRef := fmt.Sprintf("%s/%s/%s", ownerID.String(), uuid.New().String(), name)
	if err := u.Blobs.Upload(ctx, blobRef, in.Reader, in.Size, contentType); err != nil {
		return nil, wrapError(ErrBlobStore, "failed writing file content", err).at(parentFolderID)
	}

	file, err := u.createRecord(ctx, name, contentType, in.Size, blobRef, ownerID, parentFolderID)
	if err != nil {
		// The blob is orphaned now; delete it before surfacing the error. A
		// failed rollback is logged loudly but must not mask the cause.
		if rollbackErr := u.Blobs.Delete(ctx, blobRef); rollbackErr != nil {
			logger.Error("upload_rollback_failed", rollbackErr, map[string]interface{}{
				"blob_ref":  blobRef,
				"file_name": name,
			})
		}
		return nil, err
	}
	return file, nil
}

// UploadBatch processes each file independently and reports per-file
// outcomes; some may succeed while others fail.
func (u *UploadService) UploadBatch(ctx context.Context, inputs []UploadInput, requesterID uuid.UUID, parentFolderID *uuid.UUID) []UploadResult {
	results := make([]UploadResult, 0, len(inputs))
	for _, in := range inputs {
		file, err := u.UploadFile(ctx, in, requesterID, parentFolderID)
		results = append(results, UploadResult{Name: in.Name, File: file, Err: err})
	}
	return results
}

func (u *UploadService) createRecord(ctx context.Context, name, contentType string, size int64, blobRef string, ownerID uuid.UUID, parentFolderID *uuid.UUID) (*models.File, error) {
	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		finalName, err := u.Naming.ResolveUniqueName(ctx, name, ownerID, parentFolderID, models.ItemKindFile)
		if err != nil {
			return nil, err
		}

		file := models.File{
			Name:           finalName,
			OwnerID:        ownerID,
			ParentFolderID: parentFolderID,
			Size:           size,
			MimeType:       contentType,
			BlobRef:        blobRef,
			URL:            u.Blobs.ObjectURL(blobRef),
		}
		err = u.DB.WithContext(ctx).Create(&file).Error
		if err == nil {
			return &file, nil
		}
		if !isUniqueViolation(err) {
			return nil, wrapError(ErrStore, "failed creating file record", err).at(parentFolderID)
		}
		lastErr = err
	}
	return nil, wrapError(ErrNameConflict, "could not settle on a unique name", lastErr).at(parentFolderID)
}
