package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mwantia/audiopool/pkg/errdefs"
	"github.com/spf13/afero"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE

	defaultChunkSamples = 64 * 1024
)

// WavDecoder reads PCM WAV files through go-audio. The file is read in chunks
// so that cancellation is honoured and progress can be reported.
type WavDecoder struct {
	fs           afero.Fs
	chunkSamples int
}

func NewWavDecoder(fs afero.Fs) *WavDecoder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &WavDecoder{fs: fs, chunkSamples: defaultChunkSamples}
}

func (d *WavDecoder) Decode(ctx context.Context, path string, progress ProgressFunc) (*Decoded, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(ctx, path)
	}

	f, err := d.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("decode %s: %w", path, errdefs.ErrFileNotFound)
		}
		return nil, fmt.Errorf("decode %s: %w: %w", path, errdefs.ErrIOFailure, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("decode %s: not a valid wav file: %w", path, errdefs.ErrUnsupportedFormat)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("decode %s: wav audio format %d: %w", path, dec.WavAudioFormat, errdefs.ErrUnsupportedFormat)
	}

	scale, offset, err := sampleScale(int(dec.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", path, errdefs.ErrIOFailure, err)
	}

	channels := int(dec.NumChans)
	sampleRate := int(dec.SampleRate)
	total := int64(dec.PCMSize) / int64(dec.BitDepth/8)

	samples := make([]float32, 0, total)
	buf := &goaudio.IntBuffer{
		Format:         dec.Format(),
		Data:           make([]int, d.chunkSamples),
		SourceBitDepth: int(dec.BitDepth),
	}

	report(progress, 0, total)
	for {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(ctx, path)
		}

		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode %s: %w: %w", path, errdefs.ErrIOFailure, err)
		}
		if n == 0 {
			break
		}

		for _, v := range buf.Data[:n] {
			samples = append(samples, float32(float64(v-offset)*scale))
		}
		report(progress, int64(len(samples)), total)

		if errors.Is(err, io.EOF) {
			break
		}
	}

	// Drop a trailing partial frame, if any.
	samples = samples[:len(samples)-len(samples)%channels]
	report(progress, total, total)

	frames := len(samples) / channels
	return &Decoded{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second)),
	}, nil
}

// sampleScale returns the factor and offset that map an integer PCM sample of
// the given depth onto [-1, 1]. 8-bit WAV is unsigned.
func sampleScale(bitDepth int) (float64, int, error) {
	switch bitDepth {
	case 8:
		return 1.0 / 128.0, 128, nil
	case 16:
		return 1.0 / 32768.0, 0, nil
	case 24:
		return 1.0 / 8388608.0, 0, nil
	case 32:
		return 1.0 / 2147483648.0, 0, nil
	default:
		return 0, 0, fmt.Errorf("bit depth %d: %w", bitDepth, errdefs.ErrUnsupportedFormat)
	}
}
