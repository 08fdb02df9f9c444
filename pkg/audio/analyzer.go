package audio

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mwantia/audiopool/pkg/errdefs"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Estimate is a best-effort tempo and key guess. Zero values mean no estimate.
type Estimate struct {
	BPM float64
	Key string
}

type Analyzer interface {
	Analyze(ctx context.Context, decoded *Decoded) (Estimate, error)
}

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Krumhansl-Kessler key profiles, indexed from the tonic.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// SpectralAnalyzer estimates tempo from the autocorrelation of a spectral-flux
// onset envelope and key from a chroma vector matched against key profiles.
type SpectralAnalyzer struct {
	FrameSize int
	HopSize   int
	MinBPM    float64
	MaxBPM    float64
	// Octave width of the log-normal tempo prior centred on 120 BPM.
	PriorWidth float64
}

func NewSpectralAnalyzer() *SpectralAnalyzer {
	return &SpectralAnalyzer{
		FrameSize:  2048,
		HopSize:    512,
		MinBPM:     60,
		MaxBPM:     200,
		PriorWidth: 1.0,
	}
}

func (a *SpectralAnalyzer) Analyze(ctx context.Context, decoded *Decoded) (Estimate, error) {
	if decoded == nil || decoded.SampleRate <= 0 || decoded.Channels <= 0 {
		return Estimate{}, fmt.Errorf("analyze: %w: missing stream info", errdefs.ErrInvalidArgument)
	}

	mono := decoded.Mono()
	if len(mono) < a.FrameSize*4 {
		return Estimate{}, fmt.Errorf("analyze: %d frames is too short: %w", len(mono), errdefs.ErrAnalysisFailed)
	}

	envelope, chroma, err := a.spectralFeatures(ctx, mono, float64(decoded.SampleRate))
	if err != nil {
		return Estimate{}, err
	}

	var energy float64
	for _, v := range chroma {
		energy += v
	}
	var onsets float64
	for _, v := range envelope {
		onsets += v
	}
	if energy == 0 && onsets == 0 {
		return Estimate{}, fmt.Errorf("analyze: no signal: %w", errdefs.ErrAnalysisFailed)
	}

	return Estimate{
		BPM: a.estimateTempo(envelope, float64(decoded.SampleRate)),
		Key: estimateKey(chroma),
	}, nil
}

func (a *SpectralAnalyzer) spectralFeatures(ctx context.Context, mono []float64, sampleRate float64) ([]float64, [12]float64, error) {
	var chroma [12]float64

	n := a.FrameSize
	fft := fourier.NewFFT(n)
	window := hann(n)

	frame := make([]float64, n)
	coeffs := make([]complex128, n/2+1)
	prev := make([]float64, n/2+1)
	mags := make([]float64, n/2+1)

	// Pitch class per FFT bin, -1 outside the musically useful range.
	binClass := make([]int, n/2+1)
	for k := range binClass {
		binClass[k] = -1
		freq := fft.Freq(k) * sampleRate
		if freq < 55 || freq > 5000 {
			continue
		}
		midi := 12*math.Log2(freq/440) + 69
		binClass[k] = ((int(math.Round(midi)) % 12) + 12) % 12
	}

	frames := (len(mono)-n)/a.HopSize + 1
	envelope := make([]float64, frames)

	for f := 0; f < frames; f++ {
		if f%64 == 0 && ctx.Err() != nil {
			return nil, chroma, fmt.Errorf("analyze: %w: %w", errdefs.ErrCancelled, ctx.Err())
		}

		offset := f * a.HopSize
		for i := 0; i < n; i++ {
			frame[i] = mono[offset+i] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, frame)

		var flux float64
		for k, c := range coeffs {
			mag := cmplx.Abs(c)
			mags[k] = mag
			if d := mag - prev[k]; d > 0 {
				flux += d
			}
			if pc := binClass[k]; pc >= 0 {
				chroma[pc] += mag * mag
			}
		}
		envelope[f] = flux
		prev, mags = mags, prev
	}

	return envelope, chroma, nil
}

func (a *SpectralAnalyzer) estimateTempo(envelope []float64, sampleRate float64) float64 {
	frameRate := sampleRate / float64(a.HopSize)
	minLag := int(math.Floor(60 * frameRate / a.MaxBPM))
	maxLag := int(math.Ceil(60 * frameRate / a.MinBPM))
	if minLag < 1 {
		minLag = 1
	}
	if len(envelope) <= maxLag+2 {
		return 0
	}

	env := smooth(envelope)
	var mean float64
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))
	for i := range env {
		env[i] -= mean
	}

	score := make([]float64, maxLag+2)
	for lag := minLag - 1; lag <= maxLag+1; lag++ {
		if lag < 1 {
			continue
		}
		var sum float64
		for i := 0; i+lag < len(env); i++ {
			sum += env[i] * env[i+lag]
		}
		score[lag] = sum
	}

	best := -1
	bestWeighted := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		if score[lag] <= 0 {
			continue
		}
		bpm := 60 * frameRate / float64(lag)
		octaves := math.Log2(bpm/120) / a.PriorWidth
		weighted := score[lag] * math.Exp(-0.5*octaves*octaves)
		if best < 0 || weighted > bestWeighted {
			best, bestWeighted = lag, weighted
		}
	}
	if best < 0 {
		return 0
	}

	lag := float64(best)
	if best > 1 {
		l, c, r := score[best-1], score[best], score[best+1]
		if denom := l - 2*c + r; denom < 0 {
			lag += math.Max(-0.5, math.Min(0.5, 0.5*(l-r)/denom))
		}
	}

	return math.Round(600*frameRate/lag) / 10
}

func estimateKey(chroma [12]float64) string {
	var total float64
	for _, v := range chroma {
		total += v
	}
	if total <= 0 {
		return ""
	}

	bestKey := ""
	bestScore := math.Inf(-1)
	for tonic := 0; tonic < 12; tonic++ {
		if s := correlate(chroma, majorProfile, tonic); s > bestScore {
			bestScore, bestKey = s, pitchClasses[tonic]+" major"
		}
		if s := correlate(chroma, minorProfile, tonic); s > bestScore {
			bestScore, bestKey = s, pitchClasses[tonic]+" minor"
		}
	}
	return bestKey
}

// correlate returns the Pearson correlation between chroma and profile rotated onto tonic.
func correlate(chroma, profile [12]float64, tonic int) float64 {
	var cm, pm float64
	for i := 0; i < 12; i++ {
		cm += chroma[i]
		pm += profile[i]
	}
	cm /= 12
	pm /= 12

	var num, cv, pv float64
	for i := 0; i < 12; i++ {
		c := chroma[(tonic+i)%12] - cm
		p := profile[i] - pm
		num += c * p
		cv += c * c
		pv += p * p
	}
	if cv == 0 || pv == 0 {
		return 0
	}
	return num / math.Sqrt(cv*pv)
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// smooth convolves x with a truncated gaussian (sigma 1.5 frames) so that
// onsets falling between two envelope frames still line up at integer lags.
func smooth(x []float64) []float64 {
	const sigma = 1.5
	const radius = 4

	var kernel [2*radius + 1]float64
	for i := -radius; i <= radius; i++ {
		kernel[i+radius] = math.Exp(-float64(i*i) / (2 * sigma * sigma))
	}

	out := make([]float64, len(x))
	for i := range x {
		var v float64
		for k := -radius; k <= radius; k++ {
			if j := i + k; j >= 0 && j < len(x) {
				v += kernel[k+radius] * x[j]
			}
		}
		out[i] = v
	}
	return out
}
