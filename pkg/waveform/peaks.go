// Package waveform turns decoded audio into min/max peak summaries and keeps
// them in a byte-budgeted cache keyed by file.
package waveform

import (
	"fmt"
	"time"

	"github.com/mwantia/audiopool/pkg/errdefs"
)

// Peak summarizes one pixel column.
type Peak struct {
	Min float32
	Max float32
}

const peakBytes = 8

// Identity pins a cache entry to the on-disk state it was generated from.
type Identity struct {
	Size    int64
	ModTime time.Time
}

func (i Identity) Equal(o Identity) bool {
	return i.Size == o.Size && i.ModTime.Equal(o.ModTime)
}

// Data is the complete waveform of one file at one resolution. It is never
// modified after being handed to the cache.
type Data struct {
	Path            string
	Identity        Identity
	SampleRate      int
	Channels        int
	Duration        time.Duration
	SamplesPerPixel int
	Peaks           []Peak
}

// SizeBytes is the footprint used for cache budget accounting.
func (d *Data) SizeBytes() int64 {
	if d == nil {
		return 0
	}
	return int64(len(d.Peaks)) * peakBytes
}

// GeneratePeaks reduces samples to one Peak per window of samplesPerPixel
// samples. The last window may be shorter. The result has
// ceil(len(samples)/samplesPerPixel) elements.
func GeneratePeaks(samples []float32, samplesPerPixel int) ([]Peak, error) {
	if samplesPerPixel < 1 {
		return nil, fmt.Errorf("samples per pixel %d: %w", samplesPerPixel, errdefs.ErrInvalidArgument)
	}

	count := (len(samples) + samplesPerPixel - 1) / samplesPerPixel
	peaks := make([]Peak, count)

	for i := range peaks {
		start := i * samplesPerPixel
		end := min(start+samplesPerPixel, len(samples))

		lo, hi := samples[start], samples[start]
		for _, s := range samples[start+1 : end] {
			if s < lo {
				lo = s
			}
			if s > hi {
				hi = s
			}
		}
		peaks[i] = Peak{Min: lo, Max: hi}
	}

	return peaks, nil
}
