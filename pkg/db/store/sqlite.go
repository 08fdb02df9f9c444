package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/audiopool/pkg/db/migrations"
	"github.com/mwantia/audiopool/pkg/db/models"
	"github.com/mwantia/audiopool/pkg/errdefs"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements MetadataStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed metadata store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required: %w", errdefs.ErrInvalidArgument)
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w: %w", errdefs.ErrIOFailure, err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

func (s *SQLiteStore) Path() string {
	return s.path
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// SQLite only supports 1 writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate applies every pending schema migration
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Project operations

func (s *SQLiteStore) GetProject(ctx context.Context, dir string) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).Where("dir = ?", dir).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project '%s': %w", dir, errdefs.ErrNotFound)
		}
		return nil, err
	}
	return &project, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).Order("dir").Find(&projects).Error
	return projects, err
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAssets(tx, id); err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, id).Error
	})
}

// Asset operations

func (s *SQLiteStore) ListAssets(ctx context.Context, projectID uint) ([]models.Asset, error) {
	var assets []models.Asset
	err := s.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Where("project_id = ?", projectID).
		Order("path").
		Find(&assets).Error
	return assets, err
}

func (s *SQLiteStore) SaveAssets(ctx context.Context, project *models.Project, assets []models.Asset) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project.SavedAt = time.Now().UTC()
		if err := tx.Omit("Assets").Save(project).Error; err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}

		if err := deleteAssets(tx, project.ID); err != nil {
			return err
		}
		if len(assets) == 0 {
			return nil
		}

		for i := range assets {
			assets[i].ProjectID = project.ID
			for j := range assets[i].Tags {
				assets[i].Tags[j].ID = 0
				assets[i].Tags[j].AssetID = assets[i].ID
			}
		}
		if err := tx.Create(&assets).Error; err != nil {
			return fmt.Errorf("failed to save assets: %w", err)
		}
		return nil
	})
}

// deleteAssets removes the assets of a project together with their tags.
// SQLite does not enforce the cascade unless foreign keys are switched on.
func deleteAssets(tx *gorm.DB, projectID uint) error {
	assetIDs := tx.Model(&models.Asset{}).Select("id").Where("project_id = ?", projectID)
	if err := tx.Where("asset_id IN (?)", assetIDs).Delete(&models.AssetTag{}).Error; err != nil {
		return fmt.Errorf("failed to delete asset tags: %w", err)
	}
	if err := tx.Where("project_id = ?", projectID).Delete(&models.Asset{}).Error; err != nil {
		return fmt.Errorf("failed to delete assets: %w", err)
	}
	return nil
}
