package waveform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwantia/audiopool/pkg/audio"
	"github.com/mwantia/audiopool/pkg/errdefs"
	"github.com/mwantia/audiopool/pkg/log"
	"github.com/spf13/afero"
)

const DefaultSamplesPerPixel = 256

const (
	StatusDecoding  = "decoding"
	StatusPeaks     = "generating peaks"
	StatusCompleted = "completed"
)

// Share of the progress range spent on decoding; the rest covers peaks.
const decodeShare = 90.0

// Loader produces waveform data for files and keeps it in a Cache.
type Loader struct {
	cache           *Cache
	decoder         audio.Decoder
	fs              afero.Fs
	samplesPerPixel int
	log             log.LoggerService
	observers       observers
}

type LoaderOption func(*Loader)

func WithFs(fs afero.Fs) LoaderOption {
	return func(l *Loader) {
		l.fs = fs
	}
}

func WithSamplesPerPixel(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.samplesPerPixel = n
		}
	}
}

func WithLogger(logger log.LoggerService) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.log = logger
		}
	}
}

func NewLoader(cache *Cache, decoder audio.Decoder, opts ...LoaderOption) *Loader {
	l := &Loader{
		cache:           cache,
		decoder:         decoder,
		fs:              afero.NewOsFs(),
		samplesPerPixel: DefaultSamplesPerPixel,
		log:             log.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) Cache() *Cache {
	return l.cache
}

func (l *Loader) SamplesPerPixel() int {
	return l.samplesPerPixel
}

// Subscribe registers fn for load events. Calling the returned function
// removes it again.
func (l *Loader) Subscribe(fn func(Event)) func() {
	return l.observers.subscribe(fn)
}

func (l *Loader) RemoveFromCache(path string) bool {
	return l.cache.Remove(filepath.Clean(path))
}

// LoadFromFile returns the waveform of path. A resident entry whose size and
// modification time still match the file is returned without decoding.
// Otherwise the file is decoded, reduced to peaks and inserted into the cache.
// A cancelled load leaves the cache as it was, and so does a load whose path
// was removed from the cache while it was decoding; the data is still
// returned to the caller in that case.
//
// Every call ends with exactly one WaveformLoaded event.
func (l *Loader) LoadFromFile(ctx context.Context, path string) (*Data, error) {
	path = filepath.Clean(path)

	ticket := l.cache.Reserve(path)
	defer l.cache.Release(ticket)

	data, err := l.load(ctx, path, ticket)
	if err != nil {
		l.observers.emit(l.log, WaveformLoaded{Path: path, Err: err})
		return nil, err
	}
	l.observers.emit(l.log, WaveformLoaded{Path: path, Data: data, Success: true})
	return data, nil
}

func (l *Loader) load(ctx context.Context, path string, ticket uint64) (*Data, error) {
	identity, err := l.identify(path)
	if err != nil {
		return nil, err
	}

	if data, ok := l.cache.Get(path); ok {
		if data.Identity.Equal(identity) && data.SamplesPerPixel == l.samplesPerPixel {
			return data, nil
		}
		l.log.Debug("Cached waveform for '%s' is stale", path)
	}

	data, err := l.generate(ctx, path, identity)
	if err != nil {
		return nil, err
	}

	if !l.cache.PutReserved(data, ticket) {
		l.log.Debug("Waveform for '%s' was invalidated while loading, not caching it", path)
	}
	return data, nil
}

func (l *Loader) identify(path string) (Identity, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Identity{}, fmt.Errorf("waveform %s: %w", path, errdefs.ErrFileNotFound)
		}
		return Identity{}, fmt.Errorf("waveform %s: %w: %w", path, errdefs.ErrIOFailure, err)
	}
	if info.IsDir() {
		return Identity{}, fmt.Errorf("waveform %s: is a directory: %w", path, errdefs.ErrInvalidArgument)
	}
	return Identity{Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (l *Loader) generate(ctx context.Context, path string, identity Identity) (*Data, error) {
	progress := &loadProgress{loader: l, path: path}
	progress.report(0, StatusDecoding)

	decoded, err := l.decoder.Decode(ctx, path, func(done, total int64) {
		if total > 0 {
			progress.report(decodeShare*float64(done)/float64(total), StatusDecoding)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("waveform %s: %w: %w", path, errdefs.ErrCancelled, err)
	}

	progress.report(decodeShare, StatusPeaks)

	channels := max(decoded.Channels, 1)
	peaks, err := GeneratePeaks(decoded.Samples, l.samplesPerPixel*channels)
	if err != nil {
		return nil, err
	}

	progress.report(100, StatusCompleted)
	l.log.Debug("Generated %d peaks for '%s'", len(peaks), path)

	return &Data{
		Path:            path,
		Identity:        identity,
		SampleRate:      decoded.SampleRate,
		Channels:        decoded.Channels,
		Duration:        decoded.Duration,
		SamplesPerPixel: l.samplesPerPixel,
		Peaks:           peaks,
	}, nil
}

type loadProgress struct {
	loader *Loader
	path   string
	last   float64
	sent   bool
}

// report drops values that would move backwards.
func (p *loadProgress) report(percent float64, status string) {
	percent = min(max(percent, 0), 100)
	if p.sent && percent < p.last {
		return
	}
	p.last, p.sent = percent, true
	p.loader.observers.emit(p.loader.log, LoadProgress{Path: p.path, Percent: percent, Status: status})
}
