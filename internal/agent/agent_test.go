package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	config "github.com/mwantia/audiopool/internal/config/server"
	"github.com/mwantia/audiopool/internal/session"
)

func TestServeSavesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	sample := filepath.Join(dir, "assets", "kick.wav")
	os.MkdirAll(filepath.Dir(sample), 0o755)
	os.WriteFile(sample, []byte("kick"), 0o644)

	cfg := config.GetServerDefault()
	cfg.Project.Dir = dir
	cfg.Metadata.SQLite.Path = filepath.Join(dir, "pool.sqlite3")
	cfg.Log.NoTerminal = true
	cfg.Log.File = filepath.Join(dir, "agent.log")
	cfg.Agent.SaveInterval = "0"
	cfg.ShutdownTimeout = "5s"

	a := NewAgent(&cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	var s *session.Session
	deadline := time.Now().Add(5 * time.Second)
	for s == nil && time.Now().Before(deadline) {
		s = a.Session()
		time.Sleep(10 * time.Millisecond)
	}
	if s == nil {
		cancel()
		t.Fatal("agent did not open a session")
	}

	if _, err := s.Pool.AddFile(sample); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	reopened, err := session.Open(context.Background(), &cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if reopened.Pool.Len() != 1 {
		t.Errorf("saved pool has %d entries, want 1", reopened.Pool.Len())
	}

	if info, err := os.Stat(cfg.Log.File); err != nil || info.Size() == 0 {
		t.Errorf("agent log file not written: %v", err)
	}
}
