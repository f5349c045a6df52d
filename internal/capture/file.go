package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/wav"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/needledrop/internal/audio"
)

// FileSource replays a recording as capture frames. WAV files are decoded
// natively; anything else goes through ffmpeg.
type FileSource struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	samples []float32
	pos     int
	clock   *frameClock
	started bool
	closed  bool
}

// NewFileSource returns a source for cfg.File. The file is decoded on Start.
func NewFileSource(cfg Config, logger zerolog.Logger) *FileSource {
	return &FileSource{
		cfg:    cfg,
		logger: logger.With().Str("source", "file").Str("file", cfg.File).Logger(),
	}
}

// Start decodes the whole file and starts the frame clock.
func (s *FileSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.started {
		return nil
	}

	var (
		samples []float32
		rate    int
		err     error
	)
	if strings.EqualFold(filepath.Ext(s.cfg.File), ".wav") {
		samples, rate, err = DecodeWAV(s.cfg.File)
	} else {
		samples, err = DecodeFile(ctx, s.cfg.File, s.cfg.SampleRate)
		rate = s.cfg.SampleRate
	}
	if err != nil {
		return err
	}
	if rate != s.cfg.SampleRate {
		s.logger.Info().Int("from", rate).Int("to", s.cfg.SampleRate).Msg("resampling recording")
		samples = audio.Resample(samples, rate, s.cfg.SampleRate)
	}

	s.samples = samples
	s.pos = 0
	s.clock = newFrameClock(time.Now(), s.cfg.FrameDuration(), s.cfg.Realtime)
	s.started = true

	s.logger.Info().
		Dur("length", time.Duration(len(samples))*time.Second/time.Duration(s.cfg.SampleRate)).
		Bool("realtime", s.cfg.Realtime).
		Msg("file replay started")
	return nil
}

// Read returns the next frame, a short final frame, then io.EOF.
func (s *FileSource) Read(ctx context.Context) (audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.closed || s.pos >= len(s.samples) {
		return audio.Frame{}, io.EOF
	}
	at, err := s.clock.next(ctx)
	if err != nil {
		return audio.Frame{}, err
	}
	end := min(s.pos+s.cfg.FrameSize, len(s.samples))
	frame := audio.Frame{Samples: s.samples[s.pos:end], Captured: at}
	s.pos = end
	return frame, nil
}

// Config returns the capture configuration.
func (s *FileSource) Config() Config {
	return s.cfg
}

// Name returns "file".
func (s *FileSource) Name() string {
	return string(BackendFile)
}

// Close stops the frame clock.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.clock != nil {
		s.clock.stop()
	}
	return nil
}

// DecodeWAV reads a WAV file and mixes it down to mono. It returns the
// samples and the file's sample rate.
func DecodeWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}
	if buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("invalid wav sample rate %d: %s", buf.Format.SampleRate, path)
	}

	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float32, frames)
	for i := range out {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += buf.Data[i*ch+c]
		}
		out[i] = sum / float32(ch)
	}
	return out, buf.Format.SampleRate, nil
}

// DecodeFile runs ffmpeg to decode any audio file to mono float32 samples
// at sampleRate.
func DecodeFile(ctx context.Context, path string, sampleRate int) ([]float32, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	samples := make([]float32, len(out)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
	}
	return samples, nil
}
