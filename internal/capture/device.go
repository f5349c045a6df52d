//go:build !noportaudio

package capture

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/needledrop/internal/audio"
)

const deviceAvailable = true

// DeviceSource captures mono float32 frames from a PortAudio input.
type DeviceSource struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	stream    *portaudio.Stream
	buf       []float32
	running   bool
	closed    bool
	overflows int64
}

func newDeviceSource(cfg Config, logger zerolog.Logger) (Source, error) {
	return &DeviceSource{
		cfg:    cfg,
		logger: logger.With().Str("source", "device").Logger(),
		buf:    make([]float32, cfg.FrameSize),
	}, nil
}

// Start opens and starts the input stream.
func (s *DeviceSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	dev, err := s.findDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(s.cfg.SampleRate)
	params.FramesPerBuffer = s.cfg.FrameSize

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input %q: %w", dev.Name, err)
	}

	s.stream = stream
	s.running = true
	s.logger.Info().
		Str("device", dev.Name).
		Int("sample_rate", s.cfg.SampleRate).
		Msg("device capture started")
	return nil
}

func (s *DeviceSource) findDevice() (*portaudio.DeviceInfo, error) {
	if s.cfg.Device == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	want := strings.ToLower(s.cfg.Device)
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input device matching %q", s.cfg.Device)
}

// Read blocks until PortAudio fills the next frame. Input overflows are
// counted and the frame is still delivered.
func (s *DeviceSource) Read(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return audio.Frame{}, io.EOF
	}

	if err := stream.Read(); err != nil {
		if err != portaudio.InputOverflowed {
			return audio.Frame{}, fmt.Errorf("read input: %w", err)
		}
		s.overflows++
		s.logger.Debug().Int64("overflows", s.overflows).Msg("input overflowed")
	}

	samples := make([]float32, len(s.buf))
	copy(samples, s.buf)
	return audio.Frame{Samples: samples, Captured: time.Now()}, nil
}

// Config returns the capture configuration.
func (s *DeviceSource) Config() Config {
	return s.cfg
}

// Name returns "device".
func (s *DeviceSource) Name() string {
	return string(BackendDevice)
}

// Close stops the stream and releases PortAudio.
func (s *DeviceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if !s.running {
		return nil
	}
	s.running = false

	var firstErr error
	if err := s.stream.Stop(); err != nil {
		firstErr = err
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.stream = nil
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
