package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwantia/audiopool/pkg/errdefs"
)

// Decoded is a fully decoded file. Samples are interleaved and normalized to [-1, 1].
type Decoded struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Frames returns the number of sample frames (samples per channel).
func (d *Decoded) Frames() int {
	if d == nil || d.Channels < 1 {
		return 0
	}
	return len(d.Samples) / d.Channels
}

// Mono averages all channels into a single float64 signal.
func (d *Decoded) Mono() []float64 {
	frames := d.Frames()
	out := make([]float64, frames)
	if frames == 0 {
		return out
	}

	scale := 1.0 / float64(d.Channels)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < d.Channels; c++ {
			sum += float64(d.Samples[i*d.Channels+c])
		}
		out[i] = sum * scale
	}
	return out
}

// ProgressFunc receives the number of samples decoded so far and the expected
// total. total is 0 when the decoder cannot know it up front.
type ProgressFunc func(done, total int64)

type Decoder interface {
	Decode(ctx context.Context, path string, progress ProgressFunc) (*Decoded, error)
}

var (
	wavExtensions    = []string{".wav", ".wave"}
	ffmpegExtensions = []string{".mp3", ".flac", ".ogg", ".oga", ".opus", ".aif", ".aiff", ".m4a", ".aac", ".wma"}
)

// IsAudioExtension reports whether path carries an extension one of the
// decoders in this package can handle.
func IsAudioExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range wavExtensions {
		if ext == e {
			return true
		}
	}
	for _, e := range ffmpegExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// MultiDecoder dispatches on file extension: WAV is decoded in-process, the
// remaining formats go through ffmpeg when it is configured.
type MultiDecoder struct {
	wav    Decoder
	ffmpeg Decoder
}

func NewMultiDecoder(wav Decoder, ffmpeg Decoder) *MultiDecoder {
	return &MultiDecoder{wav: wav, ffmpeg: ffmpeg}
}

func (m *MultiDecoder) Decode(ctx context.Context, path string, progress ProgressFunc) (*Decoded, error) {
	ext := strings.ToLower(filepath.Ext(path))

	for _, e := range wavExtensions {
		if ext == e && m.wav != nil {
			return m.wav.Decode(ctx, path, progress)
		}
	}
	for _, e := range ffmpegExtensions {
		if ext == e && m.ffmpeg != nil {
			return m.ffmpeg.Decode(ctx, path, progress)
		}
	}

	return nil, fmt.Errorf("decode %s: no decoder for %q: %w", path, ext, errdefs.ErrUnsupportedFormat)
}

func report(progress ProgressFunc, done, total int64) {
	if progress != nil {
		progress(done, total)
	}
}

func cancelled(ctx context.Context, path string) error {
	return fmt.Errorf("decode %s: %w: %w", path, errdefs.ErrCancelled, ctx.Err())
}
