package store

import (
	"context"

	"github.com/mwantia/audiopool/pkg/db/models"
)

// MetadataStore persists projects and their pooled assets.
type MetadataStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Project operations
	GetProject(ctx context.Context, dir string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	DeleteProject(ctx context.Context, id uint) error

	// Asset operations
	ListAssets(ctx context.Context, projectID uint) ([]models.Asset, error)
	// SaveAssets replaces the stored asset list of project in one transaction,
	// creating the project first when it has no id yet.
	SaveAssets(ctx context.Context, project *models.Project, assets []models.Asset) error
}
