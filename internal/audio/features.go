package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Extractor computes amplitude and spectral-width scores for frames captured
// at a fixed sample rate. FFT plans are cached per frame length.
//
// An Extractor is not safe for concurrent use; the control loop owns one.
type Extractor struct {
	sampleRate int

	fft  *fourier.FFT
	size int
	buf  []float64
	spec []complex128
}

// NewExtractor returns an extractor for the given sample rate.
func NewExtractor(sampleRate int) *Extractor {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Extractor{sampleRate: sampleRate}
}

// Extract scores one frame. Empty frames and frames containing NaN or Inf
// yield zero scores with Valid unset, which callers treat as silence.
func (e *Extractor) Extract(samples []float32) Scores {
	if len(samples) == 0 {
		return Scores{}
	}
	for _, s := range samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Scores{}
		}
	}

	return Scores{
		Amplitude:     RMS(samples),
		SpectralWidth: e.spectralWidth(samples),
		Valid:         true,
	}
}

// RMS returns the root-mean-square of the samples, 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// spectralWidth is the magnitude-weighted standard deviation of frequency
// around the magnitude-weighted mean (the spectral centroid).
func (e *Extractor) spectralWidth(samples []float32) float64 {
	e.plan(len(samples))
	for i, s := range samples {
		e.buf[i] = float64(s)
	}
	e.spec = e.fft.Coefficients(e.spec, e.buf)

	var total, weighted float64
	for i, c := range e.spec {
		mag := cmplx.Abs(c)
		total += mag
		weighted += mag * e.binHz(i)
	}
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	centroid := weighted / total

	var spread float64
	for i, c := range e.spec {
		d := e.binHz(i) - centroid
		spread += d * d * cmplx.Abs(c)
	}
	width := math.Sqrt(spread / total)
	if math.IsNaN(width) || math.IsInf(width, 0) {
		return 0
	}
	return width
}

func (e *Extractor) binHz(i int) float64 {
	return e.fft.Freq(i) * float64(e.sampleRate)
}

func (e *Extractor) plan(n int) {
	if e.fft != nil && e.size == n {
		return
	}
	e.fft = fourier.NewFFT(n)
	e.size = n
	e.buf = make([]float64, n)
	e.spec = make([]complex128, n/2+1)
}
