package pool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mwantia/audiopool/pkg/errdefs"
)

// AddFile registers the file at path. Adding a path that is already pooled
// returns the existing entry without raising an event.
func (p *Pool) AddFile(path string) (Entry, error) {
	path, err := canonical(path)
	if err != nil {
		return Entry{}, err
	}

	p.mu.RLock()
	rec, ok := p.byPath[pathKey(path)]
	if ok {
		entry := rec.entry.clone()
		p.mu.RUnlock()
		return entry, nil
	}
	p.mu.RUnlock()

	info, err := p.stat(path)
	if err != nil {
		return Entry{}, err
	}

	p.mu.Lock()
	if rec, ok := p.byPath[pathKey(path)]; ok {
		entry := rec.entry.clone()
		p.mu.Unlock()
		return entry, nil
	}

	rec = &record{entry: Entry{
		ID:      uuid.NewString(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		AddedAt: p.now(),
	}}
	p.relocate(rec, path)
	p.byID[rec.entry.ID] = rec
	entry := rec.entry.clone()
	p.mu.Unlock()

	p.log.Debug("Added '%s' as %s", path, entry.ID)
	p.notify(Event{Kind: EntryAdded, Entry: entry})
	return entry, nil
}

// AddFiles adds every path and reports per-file failures instead of stopping.
func (p *Pool) AddFiles(paths []string) (BatchResult, []Entry) {
	result := BatchResult{Total: len(paths)}
	entries := make([]Entry, 0, len(paths))

	for _, path := range paths {
		entry, err := p.AddFile(path)
		if err != nil {
			p.log.Warn("Unable to add '%s': %v", path, err)
			result.fail("", path, err)
			continue
		}
		result.Succeeded++
		entries = append(entries, entry)
	}
	return result, entries
}

// RemoveFile drops an entry and its cached waveform. Entries still in use are
// only removed with force; references held elsewhere are left for the caller
// to clean up.
func (p *Pool) RemoveFile(id string, force bool) (Entry, error) {
	p.mu.Lock()
	rec, err := p.lookup(id)
	if err != nil {
		p.mu.Unlock()
		return Entry{}, err
	}
	if rec.entry.UsageCount > 0 && !force {
		p.mu.Unlock()
		return Entry{}, fmt.Errorf("entry '%s' is used %d time(s): %w", id, rec.entry.UsageCount, errdefs.ErrInUse)
	}

	delete(p.byID, id)
	delete(p.byPath, pathKey(rec.entry.Path))
	entry := rec.entry.clone()
	p.mu.Unlock()

	p.invalidate(entry.Path)
	p.log.Debug("Removed '%s' (%s)", entry.Path, entry.ID)
	p.notify(Event{Kind: EntryRemoved, Entry: entry})
	return entry, nil
}

// RemoveUnusedFiles removes every entry with a usage count of zero and returns
// how many were removed.
func (p *Pool) RemoveUnusedFiles() int {
	removed := 0
	for _, entry := range p.GetUnusedFiles() {
		if _, err := p.RemoveFile(entry.ID, false); err != nil {
			p.log.Debug("Skipped '%s' while pruning: %v", entry.Path, err)
			continue
		}
		removed++
	}
	return removed
}

func (p *Pool) AddTag(id, tag string) (Entry, error) {
	return p.updateTags(id, tag, func(tags []string, i int, tag string) ([]string, bool) {
		if i >= 0 {
			return tags, false
		}
		return append(tags, tag), true
	})
}

func (p *Pool) RemoveTag(id, tag string) (Entry, error) {
	return p.updateTags(id, tag, func(tags []string, i int, _ string) ([]string, bool) {
		if i < 0 {
			return tags, false
		}
		return append(tags[:i:i], tags[i+1:]...), true
	})
}

func (p *Pool) updateTags(id, tag string, change func(tags []string, i int, tag string) ([]string, bool)) (Entry, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Entry{}, fmt.Errorf("tag is empty: %w", errdefs.ErrInvalidArgument)
	}

	p.mu.Lock()
	rec, err := p.lookup(id)
	if err != nil {
		p.mu.Unlock()
		return Entry{}, err
	}

	tags, changed := change(rec.entry.Tags, tagIndex(rec.entry.Tags, tag), tag)
	rec.entry.Tags = tags
	entry := rec.entry.clone()
	p.mu.Unlock()

	if changed {
		p.notify(Event{Kind: EntryUpdated, Entry: entry})
	}
	return entry, nil
}

// IncrementUsage records one more reference to the entry.
func (p *Pool) IncrementUsage(id string) (Entry, error) {
	return p.updateUsage(id, 1)
}

// DecrementUsage releases one reference. It fails with ErrInvalidArgument when
// the count is already zero.
func (p *Pool) DecrementUsage(id string) (Entry, error) {
	return p.updateUsage(id, -1)
}

func (p *Pool) updateUsage(id string, delta int) (Entry, error) {
	p.mu.Lock()
	rec, err := p.lookup(id)
	if err != nil {
		p.mu.Unlock()
		return Entry{}, err
	}
	if rec.entry.UsageCount+delta < 0 {
		p.mu.Unlock()
		return Entry{}, fmt.Errorf("entry '%s' has no usage to release: %w", id, errdefs.ErrInvalidArgument)
	}

	rec.entry.UsageCount += delta
	entry := rec.entry.clone()
	p.mu.Unlock()

	p.notify(Event{Kind: EntryUpdated, Entry: entry})
	return entry, nil
}

// ReplaceFile points an existing entry at another file, keeping its id, tags
// and usage. Analysis results are cleared since they describe the old file.
func (p *Pool) ReplaceFile(id, path string) (Entry, error) {
	path, err := canonical(path)
	if err != nil {
		return Entry{}, err
	}

	info, err := p.stat(path)
	if err != nil {
		return Entry{}, err
	}

	p.mu.Lock()
	rec, err := p.lookup(id)
	if err != nil {
		p.mu.Unlock()
		return Entry{}, err
	}
	if owner, ok := p.byPath[pathKey(path)]; ok && owner != rec {
		p.mu.Unlock()
		return Entry{}, fmt.Errorf("'%s' already belongs to entry '%s': %w", path, owner.entry.ID, errdefs.ErrInvalidArgument)
	}

	oldPath := rec.entry.Path
	p.relocate(rec, path)
	rec.entry.Size = info.Size()
	rec.entry.ModTime = info.ModTime()
	rec.entry.Analysis = nil
	entry := rec.entry.clone()
	p.mu.Unlock()

	p.invalidate(oldPath)
	p.log.Info("Relinked %s from '%s' to '%s'", id, oldPath, path)
	p.notify(Event{Kind: EntryUpdated, Entry: entry})
	return entry, nil
}

func (p *Pool) stat(path string) (os.FileInfo, error) {
	info, err := p.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("'%s': %w", path, errdefs.ErrFileNotFound)
		}
		return nil, fmt.Errorf("stat '%s': %w: %w", path, errdefs.ErrIOFailure, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory: %w", filepath.Base(path), errdefs.ErrInvalidArgument)
	}
	return info, nil
}
