package models

import (
	"time"
)

// Project is one pooled project folder. A single database can hold several.
type Project struct {
	ID       uint   `gorm:"primaryKey"`
	Dir      string `gorm:"type:text;not null;uniqueIndex"`
	AssetDir string `gorm:"type:text;not null"`

	// Timestamps
	SavedAt   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Assets []Asset `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}
