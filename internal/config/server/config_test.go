package server

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig failed: %v", err)
	}

	if cfg.Project.AssetDir != "assets" {
		t.Errorf("Project.AssetDir = %q, want assets", cfg.Project.AssetDir)
	}
	if cfg.Waveform.SamplesPerPixel != 256 {
		t.Errorf("Waveform.SamplesPerPixel = %d, want 256", cfg.Waveform.SamplesPerPixel)
	}
	if cfg.Metadata.SQLite.Path != "audiopool.sqlite3" {
		t.Errorf("Metadata.SQLite.Path = %q", cfg.Metadata.SQLite.Path)
	}
	size, err := cfg.Cache.MaxSizeBytes()
	if err != nil {
		t.Fatalf("MaxSizeBytes failed: %v", err)
	}
	if size != 256*1000*1000 {
		t.Errorf("MaxSizeBytes = %d, want 256MB", size)
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("cache.max_size", "1MiB")
	viper.Set("project.dir", "/proj")
	viper.Set("waveform.samples_per_pixel", 512)

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig failed: %v", err)
	}
	if cfg.Project.Dir != "/proj" {
		t.Errorf("Project.Dir = %q, want /proj", cfg.Project.Dir)
	}
	if cfg.Waveform.SamplesPerPixel != 512 {
		t.Errorf("SamplesPerPixel = %d, want 512", cfg.Waveform.SamplesPerPixel)
	}
	size, _ := cfg.Cache.MaxSizeBytes()
	if size != 1<<20 {
		t.Errorf("MaxSizeBytes = %d, want %d", size, 1<<20)
	}
}

func TestCacheMaxSizeBytes(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"", 0, false},
		{"64KiB", 64 << 10, false},
		{"2MB", 2_000_000, false},
		{"lots", 0, true},
		{"8EiB", 0, true},
		{"10EB", 0, true},
	}
	for _, tt := range tests {
		got, err := CacheServerConfig{MaxSize: tt.value}.MaxSizeBytes()
		if (err != nil) != tt.wantErr {
			t.Errorf("MaxSizeBytes(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("MaxSizeBytes(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestValidateRejectsBadResolution(t *testing.T) {
	cfg := GetServerDefault()
	cfg.Waveform.SamplesPerPixel = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for samples_per_pixel=0")
	}
}
