package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mwantia/audiopool/pkg/errdefs"
)

// Consolidate copies every external file into the asset folder and points its
// entry at the copy. A name already taken gets a numeric suffix (kick_1.wav,
// kick_2.wav and so on). Originals are left in place. Files that fail to copy
// stay external and are reported in the result.
//
// Cancellation is honoured between files and while a file is being copied; a
// cancelled batch returns what it completed so far together with ErrCancelled.
// A copy interrupted by cancellation is removed again.
func (p *Pool) Consolidate(ctx context.Context, fn ProgressFunc) (BatchResult, error) {
	done, err := p.beginBatch("consolidate")
	if err != nil {
		return BatchResult{}, err
	}
	defer done()

	external := p.GetExternalFiles()
	result := BatchResult{Total: len(external)}
	progress := newProgress(fn, len(external))

	if len(external) > 0 {
		if err := p.fs.MkdirAll(p.assetDir, 0o755); err != nil {
			err = fmt.Errorf("create asset folder '%s': %w: %w", p.assetDir, errdefs.ErrIOFailure, err)
			for _, entry := range external {
				result.fail(entry.ID, entry.Path, err)
			}
			return result, err
		}
	}

	for _, entry := range external {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("consolidate: %w: %w", errdefs.ErrCancelled, err)
		}

		if err := p.consolidateEntry(ctx, entry); err != nil {
			if errors.Is(err, errdefs.ErrCancelled) {
				result.fail(entry.ID, entry.Path, err)
				return result, err
			}
			p.log.Warn("Unable to consolidate '%s': %v", entry.Path, err)
			result.fail(entry.ID, entry.Path, err)
		} else {
			result.Succeeded++
		}
		progress.step()
	}
	progress.finish()

	p.log.Info("Consolidated %s into '%s'", result, p.assetDir)
	return result, nil
}

func (p *Pool) consolidateEntry(ctx context.Context, entry Entry) error {
	target, err := p.copyIntoAssets(ctx, entry.Path)
	if err != nil {
		return err
	}

	info, err := p.fs.Stat(target)
	if err != nil {
		p.fs.Remove(target)
		return fmt.Errorf("stat '%s': %w: %w", target, errdefs.ErrIOFailure, err)
	}

	p.mu.Lock()
	rec, ok := p.byID[entry.ID]
	if !ok || rec.entry.Path != entry.Path {
		p.mu.Unlock()
		p.fs.Remove(target)
		return fmt.Errorf("entry '%s' changed during consolidation: %w", entry.ID, errdefs.ErrNotFound)
	}
	if _, taken := p.byPath[pathKey(target)]; taken {
		p.mu.Unlock()
		p.fs.Remove(target)
		return fmt.Errorf("'%s' already belongs to another entry: %w", target, errdefs.ErrIOFailure)
	}

	p.relocate(rec, target)
	rec.entry.Size = info.Size()
	rec.entry.ModTime = info.ModTime()
	updated := rec.entry.clone()
	p.mu.Unlock()

	p.invalidate(entry.Path)
	p.log.Debug("Copied '%s' to '%s'", entry.Path, target)
	p.notify(Event{Kind: EntryUpdated, Entry: updated})
	return nil
}

// copyIntoAssets copies src into the asset folder under the first free name
// and returns the new path. Names are claimed with an exclusive create so an
// existing file is never overwritten.
func (p *Pool) copyIntoAssets(ctx context.Context, src string) (string, error) {
	in, err := p.fs.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("'%s': %w", src, errdefs.ErrFileNotFound)
		}
		return "", fmt.Errorf("open '%s': %w: %w", src, errdefs.ErrIOFailure, err)
	}
	defer in.Close()

	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 0; ; n++ {
		name := base
		if n > 0 {
			name = stem + "_" + strconv.Itoa(n) + ext
		}
		target := filepath.Join(p.assetDir, name)

		if p.pathTaken(target) {
			continue
		}

		out, err := p.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return "", fmt.Errorf("create '%s': %w: %w", target, errdefs.ErrIOFailure, err)
		}

		_, err = io.Copy(out, contextReader{ctx: ctx, r: in})
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			p.fs.Remove(target)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("copy '%s': %w: %w", src, errdefs.ErrCancelled, ctxErr)
			}
			return "", fmt.Errorf("copy '%s' to '%s': %w: %w", src, target, errdefs.ErrIOFailure, err)
		}
		return target, nil
	}
}

func (p *Pool) pathTaken(path string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.byPath[pathKey(path)]
	return ok
}

// contextReader fails every Read once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
