package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	config "github.com/mwantia/audiopool/internal/config/server"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", Debug},
		{"INFO", Info},
		{"", Info},
		{"warning", Warn},
		{"Error", Error},
		{"fatal", Fatal},
		{"nonsense", Info},
	}
	for _, tt := range tests {
		if got := Parse(tt.input); got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("pool", config.LogServerConfig{Level: "WARN"}, &buf)

	logger.Debug("hidden %d", 1)
	logger.Info("hidden too")
	logger.Warn("visible %s", "warning")
	logger.Error("visible error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible warning") || !strings.Contains(out, "visible error") {
		t.Errorf("expected warn/error lines, got %q", out)
	}
	if !strings.Contains(out, "[pool]") {
		t.Errorf("expected service name in prefix, got %q", out)
	}
}

func TestNamedSharesWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("audiopool", config.LogServerConfig{Level: "DEBUG"}, &buf)

	logger.Named("waveform").Info("loaded")

	if !strings.Contains(buf.String(), "[audiopool/waveform]") {
		t.Errorf("expected nested name, got %q", buf.String())
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("pool", config.LogServerConfig{Level: "INFO", JSON: true}, &buf)

	logger.Info("added %s", "kick.wav")

	var entry logEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry.Level != "INFO" || entry.Message != "added kick.wav" || entry.Service != "pool" {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestMessageWithoutArgsKeepsPercent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("", config.LogServerConfig{Level: "INFO"}, &buf)

	logger.Info("100% done")

	if !strings.Contains(buf.String(), "100% done") {
		t.Errorf("expected literal message, got %q", buf.String())
	}
}
