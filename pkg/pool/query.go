package pool

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"slices"
	"strings"

	"github.com/mwantia/audiopool/pkg/errdefs"
)

func (p *Pool) Get(id string) (Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, err := p.lookup(id)
	if err != nil {
		return Entry{}, err
	}
	return rec.entry.clone(), nil
}

func (p *Pool) GetByPath(path string) (Entry, error) {
	path, err := canonical(path)
	if err != nil {
		return Entry{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.byPath[pathKey(path)]
	if !ok {
		return Entry{}, fmt.Errorf("no entry for '%s': %w", path, errdefs.ErrNotFound)
	}
	return rec.entry.clone(), nil
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}

// Entries returns every entry sorted by name.
func (p *Pool) Entries() []Entry {
	return p.collect(func(Entry) bool { return true })
}

// Search matches query case-insensitively against file names and tags. An
// empty query matches everything.
func (p *Pool) Search(query string) []Entry {
	query = strings.ToLower(strings.TrimSpace(query))
	return p.collect(func(e Entry) bool {
		return query == "" || e.matches(query)
	})
}

func (p *Pool) GetUnusedFiles() []Entry {
	return p.collect(func(e Entry) bool { return e.UsageCount == 0 })
}

func (p *Pool) GetExternalFiles() []Entry {
	return p.collect(func(e Entry) bool { return e.IsExternal })
}

// GetMissingFiles returns entries whose file can no longer be found.
func (p *Pool) GetMissingFiles() []Entry {
	var missing []Entry
	for _, entry := range p.Entries() {
		if _, err := p.fs.Stat(entry.Path); errors.Is(err, os.ErrNotExist) {
			missing = append(missing, entry)
		}
	}
	return missing
}

// collect snapshots the entries accepted by keep, ordered by name and then path.
func (p *Pool) collect(keep func(Entry) bool) []Entry {
	p.mu.RLock()
	entries := slices.Collect(filter(p.all(), keep))
	p.mu.RUnlock()

	slices.SortFunc(entries, compareEntries)
	return entries
}

// all yields clones of every entry. It must be consumed with mu held.
func (p *Pool) all() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, rec := range p.byID {
			if !yield(rec.entry.clone()) {
				return
			}
		}
	}
}

func filter(seq iter.Seq[Entry], keep func(Entry) bool) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for e := range seq {
			if keep(e) && !yield(e) {
				return
			}
		}
	}
}

func compareEntries(a, b Entry) int {
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.Path, b.Path)
}
