// Package session wires a configured asset pool together with its waveform
// cache and the SQLite store that persists the entry list between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	config "github.com/mwantia/audiopool/internal/config/server"
	"github.com/mwantia/audiopool/pkg/audio"
	"github.com/mwantia/audiopool/pkg/db/models"
	"github.com/mwantia/audiopool/pkg/db/store"
	"github.com/mwantia/audiopool/pkg/errdefs"
	"github.com/mwantia/audiopool/pkg/log"
	"github.com/mwantia/audiopool/pkg/pool"
	"github.com/mwantia/audiopool/pkg/waveform"
	"github.com/spf13/afero"
)

type Session struct {
	Pool   *pool.Pool
	Cache  *waveform.Cache
	Loader *waveform.Loader
	Store  store.MetadataStore

	cfg         *config.BaseServerConfig
	log         log.LoggerService
	project     *models.Project
	dirty       atomic.Bool
	unsubscribe func()
}

type Option func(*options)

type options struct {
	fs afero.Fs
}

// WithFs replaces the OS file system used for audio files. The database
// always lives on the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// Open builds the pool described by cfg and restores its saved entries.
func Open(ctx context.Context, cfg *config.BaseServerConfig, logger log.LoggerService, opts ...Option) (*Session, error) {
	o := options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	maxBytes, err := cfg.Cache.MaxSizeBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, err)
	}

	metadata, err := store.NewSQLiteStore(store.SQLiteConfig{Path: cfg.Metadata.SQLite.Path})
	if err != nil {
		return nil, err
	}
	if err := metadata.Connect(ctx); err != nil {
		metadata.Close()
		return nil, fmt.Errorf("failed to connect to '%s': %w: %w", cfg.Metadata.SQLite.Path, errdefs.ErrIOFailure, err)
	}
	if err := metadata.Migrate(ctx); err != nil {
		metadata.Close()
		return nil, fmt.Errorf("failed to migrate '%s': %w", cfg.Metadata.SQLite.Path, err)
	}

	var ffmpeg audio.Decoder
	if cfg.Decoder.FFmpeg != "" {
		ffmpeg = audio.NewFFmpegDecoder(cfg.Decoder.FFmpeg, cfg.Decoder.FFprobe)
	}
	decoder := audio.NewMultiDecoder(audio.NewWavDecoder(o.fs), ffmpeg)

	cache := waveform.NewCache(maxBytes)
	loader := waveform.NewLoader(cache, decoder,
		waveform.WithFs(o.fs),
		waveform.WithSamplesPerPixel(cfg.Waveform.SamplesPerPixel),
		waveform.WithLogger(logger.Named("waveform")))

	p, err := pool.New(pool.Config{ProjectDir: cfg.Project.Dir, AssetDir: cfg.Project.AssetDir},
		pool.WithFs(o.fs),
		pool.WithDecoder(decoder),
		pool.WithAnalyzer(audio.NewSpectralAnalyzer()),
		pool.WithWaveforms(loader),
		pool.WithLogger(logger.Named("pool")))
	if err != nil {
		metadata.Close()
		return nil, err
	}

	s := &Session{
		Pool:   p,
		Cache:  cache,
		Loader: loader,
		Store:  metadata,
		cfg:    cfg,
		log:    logger.Named("session"),
	}

	if err := s.load(ctx); err != nil {
		metadata.Close()
		return nil, err
	}

	s.unsubscribe = p.Subscribe(func(pool.Event) {
		s.dirty.Store(true)
	})
	return s, nil
}

func (s *Session) Config() *config.BaseServerConfig {
	return s.cfg
}

func (s *Session) load(ctx context.Context) error {
	project, err := s.Store.GetProject(ctx, s.Pool.ProjectDir())
	if errors.Is(err, errdefs.ErrNotFound) {
		s.project = &models.Project{Dir: s.Pool.ProjectDir(), AssetDir: s.Pool.AssetDir()}
		s.log.Debug("No saved state for '%s'", s.Pool.ProjectDir())
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	assets, err := s.Store.ListAssets(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}

	entries := make([]pool.Entry, 0, len(assets))
	for _, asset := range assets {
		entries = append(entries, fromAsset(asset))
	}
	if err := s.Pool.Restore(entries); err != nil {
		return err
	}

	project.AssetDir = s.Pool.AssetDir()
	s.project = project
	s.log.Debug("Loaded %d entries for '%s'", len(entries), project.Dir)
	return nil
}

// Dirty reports whether the pool changed since the last save.
func (s *Session) Dirty() bool {
	return s.dirty.Load()
}

// Save writes the current entry list to the store.
func (s *Session) Save(ctx context.Context) error {
	s.dirty.Store(false)

	entries := s.Pool.Entries()
	assets := make([]models.Asset, 0, len(entries))
	for _, entry := range entries {
		assets = append(assets, toAsset(entry))
	}

	if err := s.Store.SaveAssets(ctx, s.project, assets); err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("failed to save %d entries: %w: %w", len(assets), errdefs.ErrIOFailure, err)
	}

	s.log.Debug("Saved %d entries", len(assets))
	return nil
}

// SaveIfDirty saves only when something changed since the last save.
func (s *Session) SaveIfDirty(ctx context.Context) (bool, error) {
	if !s.Dirty() {
		return false, nil
	}
	return true, s.Save(ctx)
}

func (s *Session) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return s.Store.Close()
}
