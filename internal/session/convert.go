package session

import (
	"time"

	"github.com/mwantia/audiopool/pkg/db/models"
	"github.com/mwantia/audiopool/pkg/pool"
)

func toAsset(e pool.Entry) models.Asset {
	asset := models.Asset{
		ID:         e.ID,
		Path:       e.Path,
		Name:       e.Name,
		Extension:  e.Extension,
		Size:       e.Size,
		ModifiedAt: e.ModTime,
		IsExternal: e.IsExternal,
		UsageCount: e.UsageCount,
		AddedAt:    e.AddedAt,
	}

	for _, tag := range e.Tags {
		asset.Tags = append(asset.Tags, models.AssetTag{Name: tag})
	}

	if a := e.Analysis; a != nil {
		bpm, key := a.BPM, a.Key
		duration := a.Duration.Milliseconds()
		sampleRate, channels := a.SampleRate, a.Channels
		analyzedAt := a.AnalyzedAt

		asset.BPM = &bpm
		asset.Key = &key
		asset.DurationMs = &duration
		asset.SampleRate = &sampleRate
		asset.Channels = &channels
		asset.AnalyzedAt = &analyzedAt
	}
	return asset
}

func fromAsset(a models.Asset) pool.Entry {
	entry := pool.Entry{
		ID:         a.ID,
		Path:       a.Path,
		Name:       a.Name,
		Extension:  a.Extension,
		Size:       a.Size,
		ModTime:    a.ModifiedAt,
		IsExternal: a.IsExternal,
		UsageCount: a.UsageCount,
		AddedAt:    a.AddedAt,
	}

	for _, tag := range a.Tags {
		entry.Tags = append(entry.Tags, tag.Name)
	}

	if a.Analyzed() {
		analysis := &pool.Analysis{AnalyzedAt: *a.AnalyzedAt}
		if a.BPM != nil {
			analysis.BPM = *a.BPM
		}
		if a.Key != nil {
			analysis.Key = *a.Key
		}
		if a.DurationMs != nil {
			analysis.Duration = time.Duration(*a.DurationMs) * time.Millisecond
		}
		if a.SampleRate != nil {
			analysis.SampleRate = *a.SampleRate
		}
		if a.Channels != nil {
			analysis.Channels = *a.Channels
		}
		entry.Analysis = analysis
	}
	return entry
}
