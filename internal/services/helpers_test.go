package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/homedrive/backend/internal/database"
	"github.com/homedrive/backend/internal/models"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating schema: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         models.UserRoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user %s: %v", email, err)
	}
	return user
}

func createTestFolder(t *testing.T, db *gorm.DB, name string, ownerID uuid.UUID, parentID *uuid.UUID) *models.Folder {
	t.Helper()
	folder := &models.Folder{
		Name:           name,
		OwnerID:        ownerID,
		ParentFolderID: parentID,
	}
	if err := db.Create(folder).Error; err != nil {
		t.Fatalf("failed creating folder %s: %v", name, err)
	}
	return folder
}

func createTestFile(t *testing.T, db *gorm.DB, name string, ownerID uuid.UUID, parentID *uuid.UUID) *models.File {
	t.Helper()
	file := &models.File{
		Name:           name,
		OwnerID:        ownerID,
		ParentFolderID: parentID,
		Size:           42,
		MimeType:       "text/plain",
		BlobRef:        fmt.Sprintf("%s/%s/%s", ownerID, uuid.New(), name),
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("failed creating file %s: %v", name, err)
	}
	return file
}

var (
	errUploadRefused = errors.New("blob store refused the write")
	errDeleteRefused = errors.New("blob store refused the delete")
)

// fakeBlobStore records every call so tests can assert on the exact sequence
// of blob writes and deletes.
type fakeBlobStore struct {
	mu         sync.Mutex
	objects    map[string]bool
	deleted    []string
	failUpload error
	failDelete error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string]bool{}}
}

func (f *fakeBlobStore) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload != nil {
		return f.failUpload
	}
	if reader != nil {
		if _, err := io.Copy(io.Discard, reader); err != nil {
			return err
		}
	}
	f.objects[objectName] = true
	return nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, objectName)
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.objects, objectName)
	return nil
}

func (f *fakeBlobStore) ObjectURL(objectName string) string {
	return "http://blobs.test/" + objectName
}

func (f *fakeBlobStore) has(objectName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[objectName]
}

func (f *fakeBlobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}
