package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/audiopool/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrations.sqlite3")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestMigrateAndStatus(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db)
	ctx := context.Background()

	before, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	for _, s := range before {
		if s.Applied {
			t.Errorf("migration %d applied before Migrate", s.Version)
		}
	}

	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	after, _ := m.Status(ctx)
	for _, s := range after {
		if !s.Applied {
			t.Errorf("migration %d not applied", s.Version)
		}
	}
	if !db.Migrator().HasTable(&models.Asset{}) || !db.Migrator().HasTable(&models.AssetTag{}) {
		t.Error("asset tables missing")
	}
}

func TestUniquePathIndex(t *testing.T) {
	db := openDB(t)
	if err := NewMigrator(db).Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	project := models.Project{Dir: "/proj", AssetDir: "/proj/assets"}
	db.Create(&project)

	if err := db.Create(&models.Asset{ID: "a", ProjectID: project.ID, Path: "/a.wav", Name: "a.wav"}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Asset{ID: "b", ProjectID: project.ID, Path: "/A.WAV", Name: "A.WAV"}).Error; err == nil {
		t.Error("same path with different case should violate the unique index")
	}
}

func TestRollback(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db)
	ctx := context.Background()

	if err := m.Rollback(ctx); err == nil {
		t.Error("Rollback on an empty database should fail")
	}

	if err := m.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	statuses, _ := m.Status(ctx)
	if !statuses[0].Applied || statuses[1].Applied {
		t.Errorf("statuses after rollback = %+v", statuses)
	}

	if err := m.Rollback(ctx); err != nil {
		t.Fatalf("second Rollback failed: %v", err)
	}
	if db.Migrator().HasTable(&models.Asset{}) {
		t.Error("asset table should be dropped")
	}
}
