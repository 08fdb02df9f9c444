package agent

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	config "github.com/mwantia/audiopool/internal/config/server"
	"github.com/mwantia/audiopool/pkg/log"
	"github.com/mwantia/audiopool/pkg/pool"
	"github.com/mwantia/audiopool/pkg/waveform"
)

type recordingCache struct {
	mu    sync.Mutex
	paths []string
}

func (c *recordingCache) RemoveFromCache(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
	return true
}

func (c *recordingCache) removed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func testLogger() log.LoggerService {
	return log.NewLoggerServiceWithWriter("test", config.LogServerConfig{Level: "DEBUG"}, &bytes.Buffer{})
}

func newWatchedPool(t *testing.T) (*pool.Pool, *recordingCache, *Watcher, string) {
	t.Helper()

	dir := t.TempDir()
	p, err := pool.New(pool.Config{ProjectDir: dir}, pool.WithWaveforms(&recordingCache{}))
	if err != nil {
		t.Fatal(err)
	}

	cache := &recordingCache{}
	w, err := NewWatcher(p, cache, testLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return p, cache, w, dir
}

func (c *recordingCache) LoadFromFile(ctx context.Context, path string) (*waveform.Data, error) {
	return &waveform.Data{Path: path}, nil
}

func TestWatcherHandleInvalidatesPooledFiles(t *testing.T) {
	p, cache, w, dir := newWatchedPool(t)

	path := filepath.Join(dir, "kick.wav")
	os.WriteFile(path, []byte("kick"), 0o644)
	if _, err := p.AddFile(path); err != nil {
		t.Fatal(err)
	}

	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	w.handle(fsnotify.Event{Name: filepath.Join(dir, "other.wav"), Op: fsnotify.Write})

	if got := cache.removed(); len(got) != 1 || got[0] != path {
		t.Errorf("invalidated = %v, want [%s]", got, path)
	}
	if w.Dirs() != 1 {
		t.Errorf("watching %d folders, want 1", w.Dirs())
	}
}

func TestWatcherRunSeesChanges(t *testing.T) {
	p, cache, w, dir := newWatchedPool(t)

	path := filepath.Join(dir, "snare.wav")
	os.WriteFile(path, []byte("snare"), 0o644)
	if _, err := p.AddFile(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	os.WriteFile(path, []byte("changed"), 0o644)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(cache.removed()) > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("change on disk did not invalidate the cached waveform")
}
