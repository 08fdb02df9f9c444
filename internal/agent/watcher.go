package agent

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mwantia/audiopool/pkg/log"
	"github.com/mwantia/audiopool/pkg/pool"
)

// Invalidator drops cached data derived from a file.
type Invalidator interface {
	RemoveFromCache(path string) bool
}

// Watcher observes the folders of all pooled files and invalidates the
// cached waveform of a file as soon as it changes on disk.
type Watcher struct {
	fsw         *fsnotify.Watcher
	pool        *pool.Pool
	cache       Invalidator
	log         log.LoggerService
	unsubscribe func()

	mu   sync.Mutex
	dirs map[string]bool
}

func NewWatcher(p *pool.Pool, cache Invalidator, logger log.LoggerService) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:   fsw,
		pool:  p,
		cache: cache,
		log:   logger,
		dirs:  make(map[string]bool),
	}

	for _, entry := range p.Entries() {
		w.watch(entry.Path)
	}
	w.unsubscribe = p.Subscribe(func(ev pool.Event) {
		if ev.Kind != pool.EntryRemoved {
			w.watch(ev.Entry.Path)
		}
	})

	return w, nil
}

// Dirs returns the number of watched folders.
func (w *Watcher) Dirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

func (w *Watcher) watch(path string) {
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[dir] {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		w.log.Warn("Unable to watch '%s': %v", dir, err)
		return
	}
	w.dirs[dir] = true
	w.log.Debug("Watching '%s'", dir)
}

// Run handles file system events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}

	entry, err := w.pool.GetByPath(ev.Name)
	if err != nil {
		return
	}
	if w.cache.RemoveFromCache(entry.Path) {
		w.log.Info("Dropped cached waveform of '%s' after %s", entry.Path, ev.Op)
	}
}

func (w *Watcher) Close() error {
	w.unsubscribe()
	return w.fsw.Close()
}
