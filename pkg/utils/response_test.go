package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func setupResponseTestApp() *fiber.App {
	app := fiber.New()

	app.Get("/success", func(c *fiber.Ctx) error {
		return Success(c, fiber.StatusCreated, fiber.Map{"id": "123"})
	})

	app.Get("/error", func(c *fiber.Ctx) error {
		return Error(c, fiber.StatusBadRequest, "invalid input")
	})

	app.Get("/anchored", func(c *fiber.Ctx) error {
		anchor := "f6f5a1f2-0000-0000-0000-000000000001"
		return ErrorAt(c, fiber.StatusConflict, "name already taken", &anchor)
	})

	app.Get("/anchored-root", func(c *fiber.Ctx) error {
		return ErrorAt(c, fiber.StatusNotFound, "folder not found", nil)
	})

	return app
}

func performResponseTestRequest(t *testing.T, app *fiber.App, path string) map[string]any {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request to %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding %s response body: %v", path, err)
	}

	body["_statusCode"] = float64(resp.StatusCode)
	return body
}

func TestResponseHelpers(t *testing.T) {
	app := setupResponseTestApp()

	t.Run("Success returns expected envelope", func(t *testing.T) {
		body := performResponseTestRequest(t, app, "/success")

		if status := body["_statusCode"].(float64); int(status) != fiber.StatusCreated {
			t.Fatalf("expected status %d, got %d", fiber.StatusCreated, int(status))
		}

		success, ok := body["success"].(bool)
		if !ok || !success {
			t.Fatalf("expected success=true, got %v", body["success"])
		}

		data, ok := body["data"].(map[string]any)
		if !ok {
			t.Fatalf("expected data object, got %T", body["data"])
		}
		if data["id"] != "123" {
			t.Fatalf("expected data.id to be %q, got %v", "123", data["id"])
		}
	})

	t.Run("Error returns expected envelope", func(t *testing.T) {
		body := performResponseTestRequest(t, app, "/error")

		if status := body["_statusCode"].(float64); int(status) != fiber.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", fiber.StatusBadRequest, int(status))
		}

		success, ok := body["success"].(bool)
		if !ok || success {
			t.Fatalf("expected success=false, got %v", body["success"])
		}
		if body["error"] != "invalid input" {
			t.Fatalf("expected error message %q, got %v", "invalid input", body["error"])
		}
	})

	t.Run("ErrorAt carries the anchor folder id", func(t *testing.T) {
		body := performResponseTestRequest(t, app, "/anchored")

		if status := body["_statusCode"].(float64); int(status) != fiber.StatusConflict {
			t.Fatalf("expected status %d, got %d", fiber.StatusConflict, int(status))
		}
		if body["folderID"] != "f6f5a1f2-0000-0000-0000-000000000001" {
			t.Fatalf("expected folderID in envelope, got %v", body["folderID"])
		}
	})

	t.Run("ErrorAt with no anchor reports null", func(t *testing.T) {
		body := performResponseTestRequest(t, app, "/anchored-root")

		if body["folderID"] != nil {
			t.Fatalf("expected null folderID, got %v", body["folderID"])
		}
	})
}
