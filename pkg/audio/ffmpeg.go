package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/mwantia/audiopool/pkg/errdefs"
)

// FFmpegDecoder shells out to ffprobe/ffmpeg for compressed formats. It only
// works against the real file system.
type FFmpegDecoder struct {
	FFmpeg  string
	FFprobe string
}

func NewFFmpegDecoder(ffmpeg, ffprobe string) *FFmpegDecoder {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &FFmpegDecoder{FFmpeg: ffmpeg, FFprobe: ffprobe}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type streamInfo struct {
	sampleRate int
	channels   int
	duration   float64
}

func (d *FFmpegDecoder) probe(ctx context.Context, path string) (*streamInfo, error) {
	cmd := exec.CommandContext(ctx, d.FFprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx, path)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("probe %s: %s not available: %w", path, d.FFprobe, errdefs.ErrUnsupportedFormat)
		}
		return nil, fmt.Errorf("probe %s: %w: %w", path, errdefs.ErrUnsupportedFormat, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("probe %s: %w: %w", path, errdefs.ErrIOFailure, err)
	}

	for _, s := range probe.Streams {
		if s.CodecType != "audio" {
			continue
		}
		sampleRate, _ := strconv.Atoi(s.SampleRate)
		duration, _ := strconv.ParseFloat(probe.Format.Duration, 64)
		if sampleRate <= 0 || s.Channels <= 0 {
			break
		}
		return &streamInfo{sampleRate: sampleRate, channels: s.Channels, duration: duration}, nil
	}

	return nil, fmt.Errorf("probe %s: no audio stream found: %w", path, errdefs.ErrUnsupportedFormat)
}

func (d *FFmpegDecoder) Decode(ctx context.Context, path string, progress ProgressFunc) (*Decoded, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("decode %s: %w", path, errdefs.ErrFileNotFound)
		}
		return nil, fmt.Errorf("decode %s: %w: %w", path, errdefs.ErrIOFailure, err)
	}

	info, err := d.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, d.FFmpeg,
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", strconv.Itoa(info.channels),
		"-ar", strconv.Itoa(info.sampleRate),
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", path, errdefs.ErrIOFailure, err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("decode %s: %s not available: %w", path, d.FFmpeg, errdefs.ErrUnsupportedFormat)
		}
		return nil, fmt.Errorf("decode %s: %w: %w", path, errdefs.ErrIOFailure, err)
	}

	total := int64(math.Ceil(info.duration * float64(info.sampleRate) * float64(info.channels)))
	samples, readErr := readFloat32LE(ctx, bufio.NewReaderSize(stdout, 64*1024), total, progress)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, cancelled(ctx, path)
	}
	if readErr != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", path, errdefs.ErrIOFailure, readErr)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("decode %s: ffmpeg failed: %w: %w", path, errdefs.ErrIOFailure, waitErr)
	}

	samples = samples[:len(samples)-len(samples)%info.channels]
	done := int64(len(samples))
	if total < done {
		total = done
	}
	report(progress, total, total)

	frames := len(samples) / info.channels
	return &Decoded{
		Samples:    samples,
		SampleRate: info.sampleRate,
		Channels:   info.channels,
		Duration:   time.Duration(float64(frames) / float64(info.sampleRate) * float64(time.Second)),
	}, nil
}

// readFloat32LE drains r as little-endian float32 samples, checking ctx between chunks.
func readFloat32LE(ctx context.Context, r io.Reader, total int64, progress ProgressFunc) ([]float32, error) {
	capacity := total
	if capacity < 0 {
		capacity = 0
	}
	samples := make([]float32, 0, capacity)
	chunk := make([]byte, 64*1024)

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		n, err := io.ReadFull(r, chunk)
		n -= n % 4
		for i := 0; i < n; i += 4 {
			samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(chunk[i:i+4])))
		}

		if n > 0 {
			done := int64(len(samples))
			// Probe durations are estimates; never report past the expected total mid-stream.
			if total > 0 && done > total {
				done = total
			}
			report(progress, done, total)
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return samples, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
