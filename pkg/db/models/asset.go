package models

import (
	"time"
)

// Asset is the persisted form of a pool entry.
type Asset struct {
	ID        string `gorm:"type:text;primaryKey"`
	ProjectID uint   `gorm:"not null;index:idx_project_path"`
	Path      string `gorm:"type:text;not null;index:idx_project_path"`

	// File metadata
	Name       string `gorm:"type:text;not null"`
	Extension  string `gorm:"type:text"`
	Size       int64  `gorm:"not null"`
	ModifiedAt time.Time
	IsExternal bool
	UsageCount int `gorm:"not null;default:0"`

	// Analysis results, all nil until the asset was analyzed
	BPM        *float64
	Key        *string `gorm:"column:musical_key;type:text"`
	DurationMs *int64
	SampleRate *int
	Channels   *int
	AnalyzedAt *time.Time

	// Timestamps
	AddedAt   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Tags []AssetTag `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
}

// Analyzed reports whether analysis results are stored.
func (a *Asset) Analyzed() bool {
	return a.AnalyzedAt != nil
}

// AssetTag is a single tag attached to an asset.
type AssetTag struct {
	ID      uint   `gorm:"primaryKey"`
	AssetID string `gorm:"type:text;not null;index:idx_asset_tags"`
	Name    string `gorm:"type:text;not null;index:idx_tag_name"`

	CreatedAt time.Time
}
