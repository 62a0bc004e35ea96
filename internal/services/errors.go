package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ErrorKind string

const (
	// ErrNotFound covers both a missing item and one the requester may not
	// see, so existence is not leaked to unauthorized users.
	ErrNotFound     ErrorKind = "not_found"
	ErrAccessDenied ErrorKind = "access_denied"
	ErrNameConflict ErrorKind = "name_conflict"
	ErrValidation   ErrorKind = "validation"
	ErrCycle        ErrorKind = "cycle"
	ErrBlobStore    ErrorKind = "blob_store"
	ErrStore        ErrorKind = "store"
)

// Error is the structured failure every service operation returns: a kind for
// the caller to map, a message safe to render, and, where relevant, the
// parent folder the client should return the view to.
type Error struct {
	Kind    ErrorKind
	Message string
	Anchor  *uuid.UUID
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) at(anchor *uuid.UUID) *Error {
	e.Anchor = anchor
	return e
}

// KindOf extracts the error kind, defaulting unknown errors to ErrStore.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ErrStore
}

// AnchorOf returns the anchor folder attached to a failure, if any.
func AnchorOf(err error) *uuid.UUID {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Anchor
	}
	return nil
}

// isUniqueViolation reports whether err is the store rejecting a duplicate
// name. gorm translates driver errors when TranslateError is on; the message
// checks cover drivers that do not.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
