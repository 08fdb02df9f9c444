// Package pool keeps the registry of audio files a project uses: adding and
// removing them, tags and usage accounting, search, consolidation of external
// files into the project asset folder, and analysis and waveform requests.
package pool

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwantia/audiopool/pkg/audio"
	"github.com/mwantia/audiopool/pkg/errdefs"
	"github.com/mwantia/audiopool/pkg/log"
	"github.com/mwantia/audiopool/pkg/waveform"
	"github.com/spf13/afero"
)

const DefaultAssetDir = "assets"

type Config struct {
	ProjectDir string
	// AssetDir is resolved against ProjectDir unless absolute.
	AssetDir string
}

// WaveformSource produces and caches waveform data by file path.
type WaveformSource interface {
	LoadFromFile(ctx context.Context, path string) (*waveform.Data, error)
	RemoveFromCache(path string) bool
}

type Option func(*Pool)

func WithFs(fs afero.Fs) Option {
	return func(p *Pool) {
		p.fs = fs
	}
}

func WithDecoder(decoder audio.Decoder) Option {
	return func(p *Pool) {
		p.decoder = decoder
	}
}

func WithAnalyzer(analyzer audio.Analyzer) Option {
	return func(p *Pool) {
		p.analyzer = analyzer
	}
}

func WithWaveforms(source WaveformSource) Option {
	return func(p *Pool) {
		p.waveforms = source
	}
}

func WithLogger(logger log.LoggerService) Option {
	return func(p *Pool) {
		if logger != nil {
			p.log = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

type record struct {
	entry Entry
}

type Pool struct {
	mu     sync.RWMutex
	byID   map[string]*record
	byPath map[string]*record

	projectDir string
	assetDir   string

	fs        afero.Fs
	decoder   audio.Decoder
	analyzer  audio.Analyzer
	waveforms WaveformSource
	log       log.LoggerService
	now       func() time.Time

	batch       atomic.Bool
	subscribers subscribers
}

// New creates an empty pool. Collaborators that are not supplied fall back to
// the OS file system, the in-process WAV decoder, the spectral analyzer and an
// unbounded waveform cache.
func New(cfg Config, opts ...Option) (*Pool, error) {
	if strings.TrimSpace(cfg.ProjectDir) == "" {
		return nil, fmt.Errorf("project directory is empty: %w", errdefs.ErrInvalidArgument)
	}

	projectDir, err := filepath.Abs(cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory '%s': %w: %w", cfg.ProjectDir, errdefs.ErrInvalidArgument, err)
	}

	assetDir := cfg.AssetDir
	if assetDir == "" {
		assetDir = DefaultAssetDir
	}
	if !filepath.IsAbs(assetDir) {
		assetDir = filepath.Join(projectDir, assetDir)
	}

	p := &Pool{
		byID:       make(map[string]*record),
		byPath:     make(map[string]*record),
		projectDir: filepath.Clean(projectDir),
		assetDir:   filepath.Clean(assetDir),
		log:        log.Discard(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.fs == nil {
		p.fs = afero.NewOsFs()
	}
	if p.decoder == nil {
		p.decoder = audio.NewMultiDecoder(audio.NewWavDecoder(p.fs), nil)
	}
	if p.analyzer == nil {
		p.analyzer = audio.NewSpectralAnalyzer()
	}
	if p.waveforms == nil {
		p.waveforms = waveform.NewLoader(waveform.NewCache(0), p.decoder,
			waveform.WithFs(p.fs),
			waveform.WithLogger(p.log.Named("waveform")))
	}

	return p, nil
}

func (p *Pool) ProjectDir() string {
	return p.projectDir
}

func (p *Pool) AssetDir() string {
	return p.assetDir
}

// Subscribe registers fn for entry events. Observers run after the change is
// committed, outside of any pool lock, in registration order. A panicking
// observer is logged and skipped.
func (p *Pool) Subscribe(fn func(Event)) (unsubscribe func()) {
	return p.subscribers.add(fn)
}

func (p *Pool) notify(events ...Event) {
	p.subscribers.notify(p.log, events...)
}

func (p *Pool) invalidate(path string) {
	if p.waveforms.RemoveFromCache(path) {
		p.log.Debug("Invalidated cached waveform for '%s'", path)
	}
}

// canonical returns the absolute, cleaned form of path.
func canonical(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is empty: %w", errdefs.ErrInvalidArgument)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve '%s': %w: %w", path, errdefs.ErrInvalidArgument, err)
	}
	return filepath.Clean(abs), nil
}

// pathKey is the index key for a canonical path. Paths are unique regardless
// of letter case.
func pathKey(path string) string {
	return strings.ToLower(path)
}

func (p *Pool) isExternal(path string) bool {
	dir := pathKey(p.assetDir) + string(filepath.Separator)
	return !strings.HasPrefix(pathKey(path), dir)
}

// lookup must be called with mu held.
func (p *Pool) lookup(id string) (*record, error) {
	rec, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("entry '%s': %w", id, errdefs.ErrNotFound)
	}
	return rec, nil
}

// relocate moves rec to path in the path index. It must be called with mu held.
func (p *Pool) relocate(rec *record, path string) {
	delete(p.byPath, pathKey(rec.entry.Path))
	rec.entry.Path = path
	rec.entry.Name = filepath.Base(path)
	rec.entry.Extension = strings.ToLower(filepath.Ext(path))
	rec.entry.IsExternal = p.isExternal(path)
	p.byPath[pathKey(path)] = rec
}
