package session

import (
	"bytes"
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	config "github.com/mwantia/audiopool/internal/config/server"
	"github.com/mwantia/audiopool/pkg/log"
	"github.com/mwantia/audiopool/pkg/pool"
	"github.com/spf13/afero"
)

func testConfig(t *testing.T) *config.BaseServerConfig {
	t.Helper()

	cfg := config.GetServerDefault()
	cfg.Metadata.SQLite.Path = filepath.Join(t.TempDir(), "pool.sqlite3")
	cfg.Project.Dir = "/proj"
	cfg.Decoder.FFmpeg = ""
	return &cfg
}

func openSession(t *testing.T, cfg *config.BaseServerConfig, fs afero.Fs) *Session {
	t.Helper()

	var buf bytes.Buffer
	logger := log.NewLoggerServiceWithWriter("test", cfg.Log, &buf)

	s, err := Open(context.Background(), cfg, logger, WithFs(fs))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestSessionPersistsEntries(t *testing.T) {
	cfg := testConfig(t)
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/tmp/kick.wav", []byte("kick"), 0o644)
	afero.WriteFile(fs, "/proj/assets/snare.wav", []byte("snare"), 0o644)

	s := openSession(t, cfg, fs)
	kick, _ := s.Pool.AddFile("/tmp/kick.wav")
	s.Pool.AddFile("/proj/assets/snare.wav")
	s.Pool.AddTag(kick.ID, "Drums")
	s.Pool.IncrementUsage(kick.ID)

	if !s.Dirty() {
		t.Error("session should be dirty after changes")
	}
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if s.Dirty() {
		t.Error("session should be clean after saving")
	}
	s.Close()

	reopened := openSession(t, cfg, fs)
	defer reopened.Close()

	if reopened.Pool.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reopened.Pool.Len())
	}
	got, err := reopened.Pool.Get(kick.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UsageCount != 1 || !slices.Equal(got.Tags, []string{"Drums"}) || !got.IsExternal {
		t.Errorf("restored entry = %+v", got)
	}
	if reopened.Dirty() {
		t.Error("freshly loaded session should not be dirty")
	}
}

func TestSaveIfDirty(t *testing.T) {
	cfg := testConfig(t)
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/a.wav", []byte("a"), 0o644)

	s := openSession(t, cfg, fs)
	defer s.Close()

	saved, err := s.SaveIfDirty(context.Background())
	if saved || err != nil {
		t.Errorf("clean session saved=%v err=%v", saved, err)
	}

	s.Pool.AddFile("/a.wav")
	saved, err = s.SaveIfDirty(context.Background())
	if !saved || err != nil {
		t.Errorf("dirty session saved=%v err=%v", saved, err)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	entry := pool.Entry{
		ID:         "2b1c3f3e-7c55-4c7e-9d1f-3b2a1c0d9e8f",
		Path:       "/proj/assets/pad.wav",
		Name:       "pad.wav",
		Extension:  ".wav",
		Size:       1234,
		ModTime:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Tags:       []string{"pad", "Warm"},
		UsageCount: 3,
		Analysis: &pool.Analysis{
			BPM:        92.5,
			Key:        "F# minor",
			Duration:   4500 * time.Millisecond,
			SampleRate: 44100,
			Channels:   2,
			AnalyzedAt: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		},
	}

	got := fromAsset(toAsset(entry))
	if got.ID != entry.ID || got.Path != entry.Path || got.UsageCount != 3 || !slices.Equal(got.Tags, entry.Tags) {
		t.Errorf("entry = %+v", got)
	}
	if got.Analysis == nil || *got.Analysis != *entry.Analysis {
		t.Errorf("analysis = %+v, want %+v", got.Analysis, entry.Analysis)
	}

	plain := fromAsset(toAsset(pool.Entry{ID: entry.ID, Path: "/x.wav"}))
	if plain.Analysis != nil {
		t.Error("missing analysis should stay nil")
	}
}
