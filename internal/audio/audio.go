package audio

import "time"

const (
	// DefaultSampleRate and DefaultFrameSize describe the capture side: mono
	// float samples delivered in fixed-size frames (~93ms at these values).
	DefaultSampleRate = 44100
	DefaultFrameSize  = 4096

	// Listen-in streams are re-encoded at Opus-friendly parameters.
	StreamSampleRate    = 48000
	StreamChannels      = 1
	StreamFrameDuration = 20 * time.Millisecond
	StreamFrameSize     = 960 // samples per 20ms frame at 48kHz
)

// Frame is one slice of captured audio. Samples are mono and normalized to
// roughly [-1, 1]. Captured is the instant the frame became available; the
// control loop uses it as "now" so replays can run on a frame-derived clock.
type Frame struct {
	Samples  []float32
	Captured time.Time
}

// Duration returns how much audio the frame holds at the given sample rate.
func (f Frame) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(sampleRate)
}

// Scores are the per-frame features that drive the playback detector.
type Scores struct {
	Amplitude     float64 `json:"amplitude"`      // RMS of the samples
	SpectralWidth float64 `json:"spectral_width"` // Hz, spread around the spectral centroid
	Valid         bool    `json:"valid"`          // false for empty or non-finite frames
}
