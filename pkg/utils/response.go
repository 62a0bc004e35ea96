package utils

import "github.com/gofiber/fiber/v2"

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// ErrorAt is Error plus the folder the client should return the view to,
// for failures that have a meaningful anchor location.
func ErrorAt(c *fiber.Ctx, status int, message string, anchorFolderID *string) error {
	return c.Status(status).JSON(fiber.Map{
		"success":  false,
		"error":    message,
		"folderID": anchorFolderID,
	})
}
