package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestPathService_ResolvePath(t *testing.T) {
	db := setupTestDB(t)
	service := NewPathService(db)

	owner := createTestUser(t, db, "owner@test.com")
	other := createTestUser(t, db, "other@test.com")

	a := createTestFolder(t, db, "a", owner.ID, nil)
	b := createTestFolder(t, db, "b", owner.ID, &a.ID)
	c := createTestFolder(t, db, "c", owner.ID, &b.ID)

	t.Run("path starts at the synthetic root and ends at the folder", func(t *testing.T) {
		path, err := service.ResolvePath(context.TODO(), c.ID, owner.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(path) != 4 {
			t.Fatalf("expected 4 breadcrumbs, got %d", len(path))
		}

		if path[0].ID != nil || path[0].Name != "root" || path[0].ParentID != nil {
			t.Errorf("first breadcrumb should be the synthetic root, got %+v", path[0])
		}

		wantNames := []string{"root", "a", "b", "c"}
		for i, crumb := range path {
			if crumb.Name != wantNames[i] {
				t.Errorf("breadcrumb %d: expected %s, got %s", i, wantNames[i], crumb.Name)
			}
		}

		// Each entry's parent must be the previous entry's id.
		for i := 1; i < len(path); i++ {
			prev := path[i-1].ID
			got := path[i].ParentID
			switch {
			case prev == nil && got != nil:
				t.Errorf("breadcrumb %d should have a nil parent", i)
			case prev != nil && (got == nil || *got != *prev):
				t.Errorf("breadcrumb %d parent mismatch", i)
			}
		}
	})

	t.Run("top-level folder yields root plus itself", func(t *testing.T) {
		path, err := service.ResolvePath(context.TODO(), a.ID, owner.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(path) != 2 {
			t.Fatalf("expected 2 breadcrumbs, got %d", len(path))
		}
		if path[1].ID == nil || *path[1].ID != a.ID {
			t.Error("last breadcrumb should be the folder itself")
		}
	})

	t.Run("someone else's folder reads as missing", func(t *testing.T) {
		_, err := service.ResolvePath(context.TODO(), c.ID, other.ID)
		if KindOf(err) != ErrNotFound {
			t.Errorf("expected not_found, got %v", err)
		}
	})

	t.Run("unknown folder reads as missing", func(t *testing.T) {
		_, err := service.ResolvePath(context.TODO(), uuid.New(), owner.ID)
		if KindOf(err) != ErrNotFound {
			t.Errorf("expected not_found, got %v", err)
		}
	})
}

func TestPathService_ListSubfolders(t *testing.T) {
	db := setupTestDB(t)
	service := NewPathService(db)

	owner := createTestUser(t, db, "owner@test.com")
	other := createTestUser(t, db, "other@test.com")

	parent := createTestFolder(t, db, "parent", owner.ID, nil)
	createTestFolder(t, db, "zebra", owner.ID, &parent.ID)
	createTestFolder(t, db, "apple", owner.ID, &parent.ID)
	createTestFolder(t, db, "rogue", other.ID, nil)

	t.Run("lists immediate subfolders sorted by name", func(t *testing.T) {
		folders, err := service.ListSubfolders(context.TODO(), &parent.ID, owner.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(folders) != 2 {
			t.Fatalf("expected 2 subfolders, got %d", len(folders))
		}
		if folders[0].Name != "apple" || folders[1].Name != "zebra" {
			t.Errorf("expected apple then zebra, got %s then %s", folders[0].Name, folders[1].Name)
		}
	})

	t.Run("nil folder lists only the owner's root folders", func(t *testing.T) {
		folders, err := service.ListSubfolders(context.TODO(), nil, owner.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(folders) != 1 || folders[0].Name != "parent" {
			t.Errorf("expected only the owner's parent folder, got %d entries", len(folders))
		}
	})
}
