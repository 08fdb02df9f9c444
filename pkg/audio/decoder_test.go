package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/mwantia/audiopool/pkg/errdefs"
)

type recordingDecoder struct {
	name  string
	calls []string
}

func (r *recordingDecoder) Decode(ctx context.Context, path string, progress ProgressFunc) (*Decoded, error) {
	r.calls = append(r.calls, path)
	return &Decoded{SampleRate: 1, Channels: 1}, nil
}

func TestMultiDecoderDispatch(t *testing.T) {
	wavDec := &recordingDecoder{name: "wav"}
	ffDec := &recordingDecoder{name: "ffmpeg"}
	multi := NewMultiDecoder(wavDec, ffDec)

	for _, path := range []string{"/a/kick.wav", "/a/KICK.WAV", "/a/loop.flac", "/a/vox.mp3"} {
		if _, err := multi.Decode(context.Background(), path, nil); err != nil {
			t.Fatalf("Decode(%s) failed: %v", path, err)
		}
	}

	if len(wavDec.calls) != 2 {
		t.Errorf("wav decoder got %v, want 2 calls", wavDec.calls)
	}
	if len(ffDec.calls) != 2 {
		t.Errorf("ffmpeg decoder got %v, want 2 calls", ffDec.calls)
	}
}

func TestMultiDecoderUnsupported(t *testing.T) {
	multi := NewMultiDecoder(&recordingDecoder{}, nil)

	for _, path := range []string{"/a/notes.txt", "/a/loop.flac"} {
		_, err := multi.Decode(context.Background(), path, nil)
		if !errors.Is(err, errdefs.ErrUnsupportedFormat) {
			t.Errorf("Decode(%s) error = %v, want ErrUnsupportedFormat", path, err)
		}
	}
}

func TestIsAudioExtension(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"kick.wav", true},
		{"Kick.WAV", true},
		{"pad.aiff", true},
		{"song.mp3", true},
		{"readme.md", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsAudioExtension(tt.path); got != tt.want {
			t.Errorf("IsAudioExtension(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDecodedFramesAndMono(t *testing.T) {
	d := &Decoded{Samples: []float32{1, -1, 0.5, 0.5, 0.2, 0}, SampleRate: 10, Channels: 2}

	if d.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", d.Frames())
	}
	mono := d.Mono()
	want := []float64{0, 0.5, 0.1}
	for i, w := range want {
		if diff := mono[i] - w; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("Mono()[%d] = %v, want %v", i, mono[i], w)
		}
	}

	var nilDecoded *Decoded
	if nilDecoded.Frames() != 0 {
		t.Error("nil Decoded should have 0 frames")
	}
}
