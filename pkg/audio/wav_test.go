package audio

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mwantia/audiopool/pkg/errdefs"
	"github.com/spf13/afero"
)

// writeWav encodes 16-bit PCM samples into fs at path.
func writeWav(t *testing.T, fs afero.Fs, path string, sampleRate, channels int, samples []int) {
	t.Helper()

	f, err := fs.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write wav data: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to finalize wav: %v", err)
	}
}

func TestWavDecoderMono(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWav(t, fs, "/a/mono.wav", 8000, 1, []int{0, 16384, -16384, 32767, -32768, 0, 0, 0})

	decoded, err := NewWavDecoder(fs).Decode(context.Background(), "/a/mono.wav", nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.SampleRate != 8000 || decoded.Channels != 1 {
		t.Errorf("got %d Hz / %d ch, want 8000 Hz / 1 ch", decoded.SampleRate, decoded.Channels)
	}
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1, 0, 0, 0}
	if len(decoded.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(decoded.Samples), len(want))
	}
	for i, w := range want {
		if math.Abs(float64(decoded.Samples[i]-w)) > 1e-6 {
			t.Errorf("sample[%d] = %v, want %v", i, decoded.Samples[i], w)
		}
	}
	if decoded.Duration != time.Millisecond {
		t.Errorf("Duration = %v, want 1ms", decoded.Duration)
	}
}

func TestWavDecoderStereoAndProgress(t *testing.T) {
	fs := afero.NewMemMapFs()
	samples := make([]int, 2*10000)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 1000
		} else {
			samples[i] = -1000
		}
	}
	writeWav(t, fs, "/stereo.wav", 44100, 2, samples)

	dec := NewWavDecoder(fs)
	dec.chunkSamples = 4096

	var reports [][2]int64
	decoded, err := dec.Decode(context.Background(), "/stereo.wav", func(done, total int64) {
		reports = append(reports, [2]int64{done, total})
	})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Channels != 2 || decoded.Frames() != 10000 {
		t.Errorf("got %d ch / %d frames, want 2 / 10000", decoded.Channels, decoded.Frames())
	}
	if len(reports) < 3 {
		t.Fatalf("expected incremental progress, got %v", reports)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i][0] < reports[i-1][0] {
			t.Errorf("progress went backwards: %v", reports)
		}
	}
	last := reports[len(reports)-1]
	if last[0] != last[1] || last[1] != int64(len(samples)) {
		t.Errorf("final progress = %v, want %d/%d", last, len(samples), len(samples))
	}

	mono := decoded.Mono()
	if len(mono) != 10000 || mono[0] != 0 {
		t.Errorf("Mono() = len %d first %v, want 10000 / 0", len(mono), mono[0])
	}
}

func TestWavDecoderErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/bogus.wav", []byte("definitely not RIFF data"), 0o644)
	writeWav(t, fs, "/ok.wav", 8000, 1, make([]int, 100))

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		path string
		want error
	}{
		{"missing", context.Background(), "/nope.wav", errdefs.ErrFileNotFound},
		{"garbage", context.Background(), "/bogus.wav", errdefs.ErrUnsupportedFormat},
		{"cancelled", cancelledCtx, "/ok.wav", errdefs.ErrCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWavDecoder(fs).Decode(tt.ctx, tt.path, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%s) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func TestSampleScale(t *testing.T) {
	for _, depth := range []int{8, 16, 24, 32} {
		if _, _, err := sampleScale(depth); err != nil {
			t.Errorf("sampleScale(%d) unexpected error: %v", depth, err)
		}
	}
	if _, _, err := sampleScale(12); !errors.Is(err, errdefs.ErrUnsupportedFormat) {
		t.Errorf("sampleScale(12) error = %v, want ErrUnsupportedFormat", err)
	}
}
