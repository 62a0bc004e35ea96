package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/homedrive/backend/internal/services"
	"github.com/homedrive/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// parseOptionalUUID turns an absent or blank value into nil (the root
// location) and anything else into a parsed id.
func parseOptionalUUID(value *string) (*uuid.UUID, bool) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, true
	}
	parsed, err := parseUUID(*value)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

// serviceError maps a service failure onto the response envelope, carrying
// the anchor folder when the failure has one.
func serviceError(c *fiber.Ctx, err error) error {
	var status int
	switch services.KindOf(err) {
	case services.ErrNotFound:
		status = fiber.StatusNotFound
	case services.ErrAccessDenied:
		status = fiber.StatusForbidden
	case services.ErrNameConflict:
		status = fiber.StatusConflict
	case services.ErrValidation, services.ErrCycle:
		status = fiber.StatusBadRequest
	case services.ErrBlobStore:
		status = fiber.StatusBadGateway
	default:
		status = fiber.StatusInternalServerError
	}

	message := "internal error"
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	if anchor := services.AnchorOf(err); anchor != nil {
		anchorStr := anchor.String()
		return utils.ErrorAt(c, status, message, &anchorStr)
	}
	return utils.Error(c, status, message)
}

func isValidRole(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "viewer", "editor":
		return true
	default:
		return false
	}
}
