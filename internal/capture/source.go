// Package capture delivers fixed-size frames of mono audio to the monitor
// loop. Backends:
//   - device: a sound card input through PortAudio
//   - file: a recording replayed at capture cadence or as fast as possible
//   - mock: a synthetic programme of silence, music-like noise and tones
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/needledrop/internal/audio"
)

// Backend names a capture implementation.
type Backend string

const (
	// BackendAuto picks file when a file is configured, otherwise the
	// device, falling back to mock when device capture is not built in.
	BackendAuto   Backend = "auto"
	BackendDevice Backend = "device"
	BackendFile   Backend = "file"
	BackendMock   Backend = "mock"
)

// ErrUnsupportedBackend is returned for unknown backends and for device
// capture in builds tagged noportaudio.
var ErrUnsupportedBackend = errors.New("unsupported capture backend")

// Config describes the frames a source must produce.
type Config struct {
	Backend    Backend
	Device     string // device name substring; "" for the system default
	File       string
	SampleRate int
	FrameSize  int  // samples per frame
	Realtime   bool // pace file and mock sources at capture cadence
}

// DefaultConfig returns device capture at 44.1kHz in 4096-sample frames.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendAuto,
		SampleRate: audio.DefaultSampleRate,
		FrameSize:  audio.DefaultFrameSize,
		Realtime:   true,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame_size must be positive, got %d", c.FrameSize)
	}
	if c.Backend == BackendFile && c.File == "" {
		return errors.New("file backend needs a file")
	}
	return nil
}

// FrameDuration is the audio time covered by one full frame.
func (c Config) FrameDuration() time.Duration {
	return time.Duration(c.FrameSize) * time.Second / time.Duration(c.SampleRate)
}

// Source produces audio frames. Read blocks until the next frame is ready
// and returns io.EOF once a finite source is exhausted.
type Source interface {
	Start(ctx context.Context) error
	Read(ctx context.Context) (audio.Frame, error)
	Config() Config
	Name() string
	io.Closer
}

// NewSource builds the source selected by cfg.Backend.
func NewSource(cfg Config, logger zerolog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}

	backend := cfg.Backend
	if backend == BackendAuto || backend == "" {
		backend = detectBackend(cfg)
		if backend == BackendMock {
			logger.Warn().Msg("device capture not built in, using synthetic audio")
		}
	}
	cfg.Backend = backend

	logger.Info().
		Str("backend", string(backend)).
		Int("sample_rate", cfg.SampleRate).
		Int("frame_size", cfg.FrameSize).
		Dur("frame", cfg.FrameDuration()).
		Msg("creating capture source")

	switch backend {
	case BackendDevice:
		return newDeviceSource(cfg, logger)
	case BackendFile:
		return NewFileSource(cfg, logger), nil
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
}

func detectBackend(cfg Config) Backend {
	switch {
	case cfg.File != "":
		return BackendFile
	case deviceAvailable:
		return BackendDevice
	default:
		return BackendMock
	}
}

// frameClock stamps frames of a non-device source: from the start instant
// plus the audio already delivered, optionally waiting for that instant to
// arrive so replay runs at capture cadence.
type frameClock struct {
	start    time.Time
	frame    time.Duration
	realtime bool
	n        int64
	ticker   *time.Ticker
}

func newFrameClock(start time.Time, frame time.Duration, realtime bool) *frameClock {
	c := &frameClock{start: start, frame: frame, realtime: realtime}
	if realtime {
		c.ticker = time.NewTicker(frame)
	}
	return c
}

// next waits for the next frame slot when pacing and returns its timestamp.
func (c *frameClock) next(ctx context.Context) (time.Time, error) {
	if c.ticker != nil {
		select {
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		case <-c.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	c.n++
	return c.start.Add(time.Duration(c.n) * c.frame), nil
}

func (c *frameClock) stop() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
}
