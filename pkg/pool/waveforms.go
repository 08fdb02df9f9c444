package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/audiopool/pkg/errdefs"
	"github.com/mwantia/audiopool/pkg/waveform"
	"github.com/sourcegraph/conc/pool"
)

// GenerateWaveform loads the waveform of the entry's file. The entry itself
// is not modified; the data lives in the waveform cache.
func (p *Pool) GenerateWaveform(ctx context.Context, id string) (*waveform.Data, error) {
	entry, err := p.Get(id)
	if err != nil {
		return nil, err
	}
	return p.loadWaveform(ctx, entry)
}

// loadWaveform loads the waveform of entry's file. When the entry was removed
// or pointed at another file while the load ran, the result is dropped from
// the cache again and the load fails with ErrNotFound.
func (p *Pool) loadWaveform(ctx context.Context, entry Entry) (*waveform.Data, error) {
	data, err := p.waveforms.LoadFromFile(ctx, entry.Path)
	if err != nil {
		return nil, err
	}
	if !p.owns(entry.ID, entry.Path) {
		p.invalidate(entry.Path)
		return nil, fmt.Errorf("entry '%s' no longer points at '%s': %w", entry.ID, entry.Path, errdefs.ErrNotFound)
	}
	return data, nil
}

func (p *Pool) owns(id, path string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.byID[id]
	return ok && rec.entry.Path == path
}

// GenerateAllWaveforms loads waveforms for every entry using up to workers
// concurrent loads. Failed loads are counted and do not stop the others.
func (p *Pool) GenerateAllWaveforms(ctx context.Context, workers int, fn ProgressFunc) (BatchResult, error) {
	if workers < 1 {
		return BatchResult{}, fmt.Errorf("workers %d: %w", workers, errdefs.ErrInvalidArgument)
	}

	entries := p.Entries()
	progress := newProgress(fn, len(entries))

	type outcome struct {
		entry Entry
		err   error
	}

	wp := pool.NewWithResults[outcome]().WithMaxGoroutines(workers)
	for _, entry := range entries {
		wp.Go(func() outcome {
			defer progress.step()
			if err := ctx.Err(); err != nil {
				return outcome{entry: entry, err: fmt.Errorf("waveform: %w: %w", errdefs.ErrCancelled, err)}
			}
			_, err := p.loadWaveform(ctx, entry)
			return outcome{entry: entry, err: err}
		})
	}
	outcomes := wp.Wait()
	progress.finish()

	result := BatchResult{Total: len(entries)}
	for _, o := range outcomes {
		if o.err != nil {
			if !errors.Is(o.err, errdefs.ErrCancelled) {
				p.log.Warn("Unable to generate waveform for '%s': %v", o.entry.Path, o.err)
			}
			result.fail(o.entry.ID, o.entry.Path, o.err)
			continue
		}
		result.Succeeded++
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("waveform: %w: %w", errdefs.ErrCancelled, err)
	}
	p.log.Info("Generated waveforms: %s", result)
	return result, nil
}
