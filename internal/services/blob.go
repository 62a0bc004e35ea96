package services

import (
	"context"
	"io"
)

// BlobStore is the remote byte store behind file records. It is network-bound
// and fallible; its errors are connectivity errors, never business errors.
// *storage.MinIOClient satisfies it.
type BlobStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectName string) error
	ObjectURL(objectName string) string
}
