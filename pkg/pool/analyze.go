package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/audiopool/pkg/errdefs"
)

// AnalyzeEntry decodes the entry's file and stores tempo, key and stream
// properties on it. When decoding works but no estimate can be made, the
// stream properties are still stored and the error wraps ErrAnalysisFailed.
func (p *Pool) AnalyzeEntry(ctx context.Context, id string) (Entry, error) {
	entry, err := p.Get(id)
	if err != nil {
		return Entry{}, err
	}

	decoded, err := p.decoder.Decode(ctx, entry.Path, nil)
	if err != nil {
		return Entry{}, err
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, fmt.Errorf("analyze '%s': %w: %w", entry.Path, errdefs.ErrCancelled, err)
	}

	analysis := &Analysis{
		Duration:   decoded.Duration,
		SampleRate: decoded.SampleRate,
		Channels:   decoded.Channels,
	}

	estimate, analyzeErr := p.analyzer.Analyze(ctx, decoded)
	if analyzeErr != nil {
		if errors.Is(analyzeErr, errdefs.ErrCancelled) {
			return Entry{}, analyzeErr
		}
		if !errors.Is(analyzeErr, errdefs.ErrAnalysisFailed) {
			analyzeErr = fmt.Errorf("%w: %w", errdefs.ErrAnalysisFailed, analyzeErr)
		}
	} else {
		analysis.BPM = estimate.BPM
		analysis.Key = estimate.Key
	}
	analysis.AnalyzedAt = p.now()

	p.mu.Lock()
	rec, ok := p.byID[id]
	if !ok || rec.entry.Path != entry.Path {
		p.mu.Unlock()
		return Entry{}, fmt.Errorf("entry '%s' changed during analysis: %w", id, errdefs.ErrNotFound)
	}
	rec.entry.Analysis = analysis
	updated := rec.entry.clone()
	p.mu.Unlock()

	p.notify(Event{Kind: EntryUpdated, Entry: updated})

	if analyzeErr != nil {
		return updated, fmt.Errorf("analyze '%s': %w", entry.Path, analyzeErr)
	}
	p.log.Debug("Analyzed '%s': %.1f BPM, key '%s'", entry.Path, analysis.BPM, analysis.Key)
	return updated, nil
}

// AnalyzeAll analyzes every entry. Failures are logged and counted; the batch
// carries on with the next entry.
func (p *Pool) AnalyzeAll(ctx context.Context, fn ProgressFunc) (BatchResult, error) {
	done, err := p.beginBatch("analyze")
	if err != nil {
		return BatchResult{}, err
	}
	defer done()

	entries := p.Entries()
	result := BatchResult{Total: len(entries)}
	progress := newProgress(fn, len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("analyze: %w: %w", errdefs.ErrCancelled, err)
		}

		if _, err := p.AnalyzeEntry(ctx, entry.ID); err != nil {
			if errors.Is(err, errdefs.ErrCancelled) {
				result.fail(entry.ID, entry.Path, err)
				return result, err
			}
			p.log.Warn("Unable to analyze '%s': %v", entry.Path, err)
			result.fail(entry.ID, entry.Path, err)
		} else {
			result.Succeeded++
		}
		progress.step()
	}
	progress.finish()

	p.log.Info("Analyzed %s", result)
	return result, nil
}
