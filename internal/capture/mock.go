package capture

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/needledrop/internal/audio"
)

// Signal is the kind of audio a mock segment produces.
type Signal int

const (
	Silence Signal = iota
	Music          // broadband noise, wide spectrum like a record playing
	Tone           // a pure sine, loud but spectrally narrow
)

// Segment is a stretch of synthetic audio.
type Segment struct {
	Signal    Signal
	Duration  time.Duration
	Amplitude float64 // peak level for Music and Tone
	Frequency float64 // Hz, Tone only
}

// DemoProgram alternates silence and music long enough to drive the
// detector through start and stop.
func DemoProgram() []Segment {
	return []Segment{
		{Signal: Silence, Duration: 5 * time.Second},
		{Signal: Music, Duration: 45 * time.Second, Amplitude: 0.2},
		{Signal: Silence, Duration: 10 * time.Second},
	}
}

// MockSource generates frames from a list of segments.
type MockSource struct {
	cfg    Config
	logger zerolog.Logger

	segments []Segment
	loop     bool
	rng      *rand.Rand

	mu      sync.Mutex
	clock   *frameClock
	seg     int
	segPos  int // samples emitted in the current segment
	phase   float64
	started bool
	closed  bool
}

// MockOption configures a MockSource.
type MockOption func(*MockSource)

// WithProgram replaces the demo program.
func WithProgram(segments ...Segment) MockOption {
	return func(m *MockSource) { m.segments = segments }
}

// WithLoop repeats the program forever instead of ending with io.EOF.
func WithLoop(loop bool) MockOption {
	return func(m *MockSource) { m.loop = loop }
}

// WithSeed makes the noise reproducible.
func WithSeed(seed uint64) MockOption {
	return func(m *MockSource) { m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// NewMockSource returns a looping demo source unless options say otherwise.
func NewMockSource(cfg Config, logger zerolog.Logger, opts ...MockOption) *MockSource {
	m := &MockSource{
		cfg:      cfg,
		logger:   logger.With().Str("source", "mock").Logger(),
		segments: DemoProgram(),
		loop:     true,
		rng:      rand.New(rand.NewPCG(1, 2)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the frame clock.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.started {
		return nil
	}
	playable := m.segments[:0:0]
	for _, seg := range m.segments {
		if int(seg.Duration.Seconds()*float64(m.cfg.SampleRate)) > 0 {
			playable = append(playable, seg)
		}
	}
	m.segments = playable
	m.clock = newFrameClock(time.Now(), m.cfg.FrameDuration(), m.cfg.Realtime)
	m.started = true
	m.logger.Info().Int("segments", len(m.segments)).Bool("loop", m.loop).Msg("mock source started")
	return nil
}

// Read returns the next synthetic frame. Frames may straddle segments.
func (m *MockSource) Read(ctx context.Context) (audio.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.closed || m.exhausted() {
		return audio.Frame{}, io.EOF
	}
	at, err := m.clock.next(ctx)
	if err != nil {
		return audio.Frame{}, err
	}

	samples := make([]float32, 0, m.cfg.FrameSize)
	for len(samples) < m.cfg.FrameSize && !m.exhausted() {
		seg := m.segments[m.seg]
		length := int(seg.Duration.Seconds() * float64(m.cfg.SampleRate))
		for m.segPos < length && len(samples) < m.cfg.FrameSize {
			samples = append(samples, m.sample(seg))
			m.segPos++
		}
		if m.segPos >= length {
			m.seg++
			m.segPos = 0
			if m.loop && m.seg >= len(m.segments) {
				m.seg = 0
			}
		}
	}
	return audio.Frame{Samples: samples, Captured: at}, nil
}

func (m *MockSource) exhausted() bool {
	return len(m.segments) == 0 || m.seg >= len(m.segments)
}

func (m *MockSource) sample(seg Segment) float32 {
	switch seg.Signal {
	case Music:
		return float32(seg.Amplitude * (2*m.rng.Float64() - 1))
	case Tone:
		v := seg.Amplitude * math.Sin(2*math.Pi*seg.Frequency*m.phase/float64(m.cfg.SampleRate))
		m.phase++
		if m.phase >= float64(m.cfg.SampleRate) {
			m.phase = 0
		}
		return float32(v)
	default:
		return 0
	}
}

// Config returns the capture configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Close stops the frame clock.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.clock != nil {
		m.clock.stop()
	}
	return nil
}
