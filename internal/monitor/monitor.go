// Package monitor runs the playback monitor: it scores captured frames,
// steps the playback detector, accounts listening time and maps it onto
// the loaded album's sides and tracks.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/needledrop/internal/audio"
	"github.com/satindergrewal/needledrop/internal/capture"
	"github.com/satindergrewal/needledrop/internal/catalog"
	"github.com/satindergrewal/needledrop/internal/detector"
	"github.com/satindergrewal/needledrop/internal/history"
	"github.com/satindergrewal/needledrop/internal/input"
	"github.com/satindergrewal/needledrop/internal/metrics"
	"github.com/satindergrewal/needledrop/internal/session"
	"github.com/satindergrewal/needledrop/internal/tracker"
)

// Config holds the monitor's tuning.
type Config struct {
	Detector       detector.Config
	DetectionDelay time.Duration
	SampleRate     int
	StatusInterval time.Duration
	FlushOnExit    bool
}

// DefaultConfig returns the stock thresholds, a 10s detection delay and a
// 200ms status tick.
func DefaultConfig() Config {
	return Config{
		Detector:       detector.DefaultConfig(),
		DetectionDelay: session.DefaultDetectionDelay,
		SampleRate:     audio.DefaultSampleRate,
		StatusInterval: 200 * time.Millisecond,
	}
}

// AlbumLoader resolves album IDs. *catalog.Loader implements it.
type AlbumLoader interface {
	Load(id int) (*catalog.Album, error)
}

// Recorder stores committed sessions. *history.Store implements it.
type Recorder interface {
	Record(l *history.Listen) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRecorder stores every committed session.
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// WithTap receives every frame after it is processed. The tap runs on the
// control loop and must not block.
func WithTap(tap func(audio.Frame)) Option {
	return func(m *Monitor) { m.tap = tap }
}

// Monitor owns all playback state. It is driven from a single goroutine.
type Monitor struct {
	cfg    Config
	logger zerolog.Logger

	extractor *audio.Extractor
	det       *detector.Detector
	acct      *session.Accountant
	nav       *tracker.Navigator
	albums    AlbumLoader
	recorder  Recorder
	tap       func(audio.Frame)

	scores audio.Scores
	now    time.Time // capture time of the latest frame
	input  string
	notice string
}

// New returns a monitor in the Idle state with no album loaded. offsets
// may be nil.
func New(cfg Config, albums AlbumLoader, offsets session.OffsetSource, logger zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:       cfg,
		logger:    logger,
		extractor: audio.NewExtractor(cfg.SampleRate),
		det:       detector.New(cfg.Detector),
		acct:      session.NewAccountant(cfg.DetectionDelay, offsets),
		nav:       tracker.NewNavigator(),
		albums:    albums,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current playback state.
func (m *Monitor) State() detector.State {
	return m.det.State()
}

// Album returns the loaded album, or nil.
func (m *Monitor) Album() *catalog.Album {
	return m.nav.Album()
}

// Process scores one frame and steps the detector. It returns the
// transition the frame caused, if any.
func (m *Monitor) Process(frame audio.Frame) *detector.Transition {
	began := time.Now()
	now := frame.Captured
	if now.IsZero() {
		now = began
	}
	m.now = now

	m.scores = m.extractor.Extract(frame.Samples)
	tr := m.det.Update(m.scores, now)
	if tr != nil {
		m.apply(*tr)
	}

	metrics.ObserveFrame(m.scores, time.Since(began))
	if m.tap != nil {
		m.tap(frame)
	}
	return tr
}

func (m *Monitor) apply(tr detector.Transition) {
	metrics.Transition(tr)
	switch tr.To {
	case detector.Playing:
		m.acct.Start(tr.At)
		m.nav.ResetBase()
		m.notice = ""
		m.logger.Info().
			Str("from", tr.From.String()).
			Str("side", m.sideLabel()).
			Time("at", tr.At).
			Msg("music started")
	case detector.Stopped:
		m.commit(tr.At)
	}
}

// commit ends the running session at now, adds it to the cumulative total
// and flips the side if the session used it up.
func (m *Monitor) commit(now time.Time) time.Duration {
	start := m.acct.StartedAt()
	side := m.sideLabel()
	elapsed := m.acct.Stop(now)
	metrics.SessionCommitted(elapsed)

	advanced := m.nav.AutoAdvance(elapsed)
	if advanced {
		metrics.SideChanged("auto")
	}

	m.logger.Info().
		Str("session", session.FormatClock(elapsed)).
		Str("total", session.FormatClock(m.acct.Cumulative())).
		Str("side", side).
		Bool("auto_advanced", advanced).
		Msg("music stopped")
	if advanced {
		m.logger.Info().Str("side", m.sideLabel()).Msg("auto-advanced side")
	}

	if m.recorder != nil {
		l := &history.Listen{
			Side:         side,
			StartedAt:    start,
			StoppedAt:    now,
			Seconds:      elapsed.Seconds(),
			AutoAdvanced: advanced,
		}
		if a := m.nav.Album(); a != nil {
			l.AlbumID = a.ID
		}
		if err := m.recorder.Record(l); err != nil {
			m.logger.Warn().Err(err).Msg("record session")
		}
	}
	return elapsed
}

func (m *Monitor) sideLabel() string {
	if s, ok := m.nav.Side(); ok {
		return s.Label
	}
	return ""
}

// Handle applies one input event. Album errors are returned so the caller
// can report them; the monitor stays usable either way.
func (m *Monitor) Handle(ev input.Event) error {
	switch ev.Kind {
	case input.Edit:
		m.input = ev.Value
	case input.Submit:
		m.input = ""
		return m.LoadAlbum(ev.Value)
	case input.NextSide:
		m.advance(1)
	case input.PrevSide:
		m.advance(-1)
	}
	return nil
}

func (m *Monitor) advance(delta int) {
	if !m.nav.Advance(delta) {
		return
	}
	metrics.SideChanged("manual")
	m.notice = "Side " + m.sideLabel()
	m.logger.Info().Str("side", m.sideLabel()).Msg("side changed")
}

// LoadAlbum parses id and loads that album, returning to its first side.
// The playback state is left alone.
func (m *Monitor) LoadAlbum(id string) error {
	n, err := catalog.ParseAlbumID(id)
	if err != nil {
		metrics.AlbumLoad("invalid")
		m.notice = fmt.Sprintf("Invalid album ID: %s", id)
		return err
	}
	a, err := m.albums.Load(n)
	if err != nil {
		if errors.Is(err, catalog.ErrAlbumNotFound) {
			metrics.AlbumLoad("not_found")
			m.notice = fmt.Sprintf("Album %d not found", n)
		} else {
			metrics.AlbumLoad("error")
			m.notice = fmt.Sprintf("Album %d could not be read", n)
		}
		return err
	}

	m.nav.Load(a)
	metrics.AlbumLoad("ok")
	labels := make([]string, len(a.Sides))
	for i, s := range a.Sides {
		labels[i] = s.Label
	}
	m.notice = fmt.Sprintf("Loaded album %d", a.ID)
	m.logger.Info().Int("album", a.ID).Strs("sides", labels).Int("tracks", a.TrackCount()).Msg("album loaded")
	if len(a.MissingDurations) > 0 {
		m.logger.Warn().Int("album", a.ID).Strs("tracks", a.MissingDurations).Msg("tracks without a usable duration count as 0")
	}
	return nil
}

// Snapshot reports the monitor's view at now.
func (m *Monitor) Snapshot(now time.Time) Snapshot {
	st := m.det.State()
	elapsed := m.acct.Elapsed(now)
	s := Snapshot{
		At:             now,
		State:          st,
		Icon:           st.Icon(),
		SessionSeconds: elapsed.Seconds(),
		TotalSeconds:   m.acct.Total(now).Seconds(),
		Sessions:       m.acct.Sessions(),
		Amplitude:      m.scores.Amplitude,
		SpectralWidth:  m.scores.SpectralWidth,
		Input:          m.input,
		Notice:         m.notice,
		SideIndex:      m.nav.Index(),
	}

	a := m.nav.Album()
	if a == nil {
		return s
	}
	s.AlbumID = a.ID
	s.Sides = len(a.Sides)
	side, ok := m.nav.Side()
	if !ok {
		return s
	}
	s.Side = side.Label
	track, pos, ok := m.nav.Current(elapsed)
	if !ok {
		s.SideExhausted = true
		return s
	}
	s.Track = &TrackInfo{
		Index:           pos.Index,
		Position:        track.Position,
		Artist:          track.Artist,
		Title:           track.Title,
		Label:           track.Label(),
		DurationSeconds: track.DurationSeconds,
		OffsetSeconds:   pos.Offset.Seconds(),
	}
	return s
}

// Now returns the capture time of the latest frame.
func (m *Monitor) Now() time.Time {
	return m.now
}

// Run reads frames until the source ends or ctx is cancelled. Each
// iteration polls at most one pending event, processes one frame and,
// once per status interval of capture time, hands a snapshot to publish.
func (m *Monitor) Run(ctx context.Context, src capture.Source, events <-chan input.Event, publish func(Snapshot)) error {
	var lastStatus time.Time
	for {
		frame, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		if ev, ok := input.Poll(events); ok {
			if err := m.Handle(ev); err != nil {
				m.logger.Warn().Err(err).Str("event", ev.Kind.String()).Msg("input rejected")
			}
		}

		m.Process(frame)

		if publish != nil && m.now.Sub(lastStatus) >= m.cfg.StatusInterval {
			publish(m.Snapshot(m.now))
			lastStatus = m.now
		}
	}
}

// Summary is the end-of-run report.
type Summary struct {
	Total     time.Duration // committed listening time
	Sessions  int
	Flushed   bool          // an in-flight session was committed on exit
	Discarded time.Duration // in-flight session time dropped on exit
}

// Hours returns Total in hours.
func (s Summary) Hours() float64 {
	return s.Total.Hours()
}

// Shutdown ends the run at now. An in-flight session is committed when
// FlushOnExit is set and discarded otherwise.
func (m *Monitor) Shutdown(now time.Time) Summary {
	var sum Summary
	if m.acct.Playing() {
		if m.cfg.FlushOnExit {
			m.commit(now)
			sum.Flushed = true
		} else {
			sum.Discarded = m.acct.Elapsed(now)
			m.logger.Info().Str("session", session.FormatClock(sum.Discarded)).Msg("discarding in-flight session")
		}
	}
	sum.Total = m.acct.Cumulative()
	sum.Sessions = m.acct.Sessions()
	return sum
}
