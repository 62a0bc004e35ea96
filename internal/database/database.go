package database

import (
	"fmt"

	"github.com/homedrive/backend/internal/config"
	"github.com/homedrive/backend/internal/models"
	"github.com/homedrive/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdminUser(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs AutoMigrate plus the constraints gorm tags cannot express.
// The partial unique indexes are the authoritative check for name uniqueness
// within an (owner, parent) scope: a NULL parent is folded to the zero uuid so
// root-level siblings collide like any others, and soft-deleted rows are
// excluded so a deleted name can be reused.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Folder{},
		&models.File{},
		&models.SharedAccess{},
		&models.Permission{},
	); err != nil {
		return err
	}

	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_folders_scope_name
		 ON folders (owner_id, coalesce(parent_folder_id, '00000000-0000-0000-0000-000000000000'), name)
		 WHERE deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_files_scope_name
		 ON files (owner_id, coalesce(parent_folder_id, '00000000-0000-0000-0000-000000000000'), name)
		 WHERE deleted_at IS NULL`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	// Shares and direct grants attach to exactly one of folder/file.
	constraint := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'shared_access_target_check'
  ) THEN
    ALTER TABLE shared_accesses
    ADD CONSTRAINT shared_access_target_check
    CHECK (
      (folder_id IS NOT NULL AND file_id IS NULL)
      OR
      (folder_id IS NULL AND file_id IS NOT NULL)
    );
  END IF;
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'permission_target_check'
  ) THEN
    ALTER TABLE permissions
    ADD CONSTRAINT permission_target_check
    CHECK (
      (folder_id IS NOT NULL AND file_id IS NULL)
      OR
      (folder_id IS NULL AND file_id IS NOT NULL)
    );
  END IF;
END $$;`

	return db.Exec(constraint).Error
}

func seedAdminUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword("admin123")
	if err != nil {
		return err
	}

	admin := models.User{
		Email:        "admin@homedrive.local",
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Admin",
		Role:         models.UserRoleAdmin,
	}

	return db.Create(&admin).Error
}
