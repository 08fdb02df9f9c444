package pool

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mwantia/audiopool/pkg/errdefs"
)

// Restore replaces the pool's contents with a previously saved entry list.
// The list is validated as a whole before anything changes. When two entries
// share a path the first one wins. Files are not required to exist, so
// missing files show up in GetMissingFiles afterwards.
func (p *Pool) Restore(entries []Entry) error {
	byID := make(map[string]*record, len(entries))
	byPath := make(map[string]*record, len(entries))
	restored := make([]Event, 0, len(entries))

	for _, e := range entries {
		if _, err := uuid.Parse(e.ID); err != nil {
			return fmt.Errorf("restore: invalid id '%s': %w", e.ID, errdefs.ErrInvalidArgument)
		}
		if _, dup := byID[e.ID]; dup {
			return fmt.Errorf("restore: duplicate id '%s': %w", e.ID, errdefs.ErrInvalidArgument)
		}
		if e.UsageCount < 0 {
			return fmt.Errorf("restore: entry '%s' has usage count %d: %w", e.ID, e.UsageCount, errdefs.ErrInvalidArgument)
		}

		path, err := canonical(e.Path)
		if err != nil {
			return fmt.Errorf("restore: entry '%s': %w", e.ID, err)
		}
		if _, dup := byPath[pathKey(path)]; dup {
			p.log.Warn("Skipping entry '%s': '%s' is already restored", e.ID, path)
			continue
		}

		rec := &record{entry: e.clone()}
		rec.entry.Tags = dedupeTags(rec.entry.Tags)
		rec.entry.Path = path
		byID[e.ID] = rec
		byPath[pathKey(path)] = rec
	}

	p.mu.Lock()
	removed := make([]Event, 0, len(p.byID))
	for _, rec := range p.byID {
		removed = append(removed, Event{Kind: EntryRemoved, Entry: rec.entry.clone()})
	}

	p.byID = make(map[string]*record, len(byID))
	p.byPath = make(map[string]*record, len(byPath))
	for id, rec := range byID {
		p.byID[id] = rec
		p.relocate(rec, rec.entry.Path)
		restored = append(restored, Event{Kind: EntryAdded, Entry: rec.entry.clone()})
	}
	p.mu.Unlock()

	for _, ev := range removed {
		p.invalidate(ev.Entry.Path)
	}

	p.log.Debug("Restored %d entries", len(restored))
	p.notify(removed...)
	p.notify(restored...)
	return nil
}

func dedupeTags(tags []string) []string {
	out := tags[:0:0]
	for _, tag := range tags {
		if tag != "" && tagIndex(out, tag) < 0 {
			out = append(out, tag)
		}
	}
	return out
}
