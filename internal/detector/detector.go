package detector

import (
	"fmt"
	"time"

	"github.com/satindergrewal/needledrop/internal/audio"
)

// Config holds the detection thresholds. Stop uses a strictly lower
// amplitude than start so marginal levels don't flap between states.
type Config struct {
	StartAmplitude float64       // RMS above which music may be starting
	StopAmplitude  float64       // RMS below which the room counts as silent
	StartWidth     float64       // spectral width (Hz) music must exceed
	ConfirmStart   time.Duration // music must persist this long to enter Playing
	ConfirmStop    time.Duration // silence must persist this long to enter Stopped
}

// DefaultConfig returns thresholds tuned for a microphone near a turntable.
func DefaultConfig() Config {
	return Config{
		StartAmplitude: 0.001,
		StopAmplitude:  0.0005,
		StartWidth:     1000,
		ConfirmStart:   2 * time.Second,
		ConfirmStop:    5 * time.Second,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if c.StartAmplitude <= 0 {
		return fmt.Errorf("start amplitude must be positive, got %v", c.StartAmplitude)
	}
	if c.StopAmplitude <= 0 || c.StopAmplitude >= c.StartAmplitude {
		return fmt.Errorf("stop amplitude must be in (0, %v), got %v", c.StartAmplitude, c.StopAmplitude)
	}
	if c.StartWidth < 0 {
		return fmt.Errorf("start width must not be negative, got %v", c.StartWidth)
	}
	if c.ConfirmStart < 0 || c.ConfirmStop < 0 {
		return fmt.Errorf("confirm durations must not be negative (start %v, stop %v)", c.ConfirmStart, c.ConfirmStop)
	}
	return nil
}

// IsMusic reports whether scores satisfy the start condition.
func (c Config) IsMusic(s audio.Scores) bool {
	return s.Valid && s.Amplitude > c.StartAmplitude && s.SpectralWidth > c.StartWidth
}

// IsSilence reports whether scores satisfy the stop condition. Invalid
// scores carry zero amplitude and therefore count as silence.
func (c Config) IsSilence(s audio.Scores) bool {
	return !s.Valid || s.Amplitude < c.StopAmplitude
}

// Timers carry the confirmation holds between frames. A zero time means the
// corresponding condition is not currently held. The two holds are
// independent: each is cleared only by its own condition failing.
type Timers struct {
	StartSince time.Time
	StopSince  time.Time
}

// StartHeld returns how long the start condition has held as of now.
func (t Timers) StartHeld(now time.Time) time.Duration {
	return held(t.StartSince, now)
}

// StopHeld returns how long the stop condition has held as of now.
func (t Timers) StopHeld(now time.Time) time.Duration {
	return held(t.StopSince, now)
}

func held(since, now time.Time) time.Duration {
	if since.IsZero() || now.Before(since) {
		return 0
	}
	return now.Sub(since)
}

// Transition is reported whenever Step changes state.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Step applies one frame of scores. It returns the next state, the updated
// timers, and a transition when the state changed.
func Step(state State, scores audio.Scores, timers Timers, cfg Config, now time.Time) (State, Timers, *Transition) {
	switch state {
	case Idle, Stopped:
		if !cfg.IsMusic(scores) {
			timers.StartSince = time.Time{}
			return state, timers, nil
		}
		if timers.StartSince.IsZero() {
			timers.StartSince = now
		}
		if timers.StartHeld(now) >= cfg.ConfirmStart {
			return Playing, Timers{}, &Transition{From: state, To: Playing, At: now}
		}
	case Playing:
		if !cfg.IsSilence(scores) {
			timers.StopSince = time.Time{}
			return state, timers, nil
		}
		if timers.StopSince.IsZero() {
			timers.StopSince = now
		}
		if timers.StopHeld(now) >= cfg.ConfirmStop {
			return Stopped, Timers{}, &Transition{From: Playing, To: Stopped, At: now}
		}
	}
	return state, timers, nil
}

// Detector keeps the state and timers for a single control loop.
type Detector struct {
	cfg    Config
	state  State
	timers Timers
}

// New returns a detector in the Idle state.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, state: Idle}
}

// Update feeds one frame of scores and returns the transition, if any.
func (d *Detector) Update(scores audio.Scores, now time.Time) *Transition {
	var tr *Transition
	d.state, d.timers, tr = Step(d.state, scores, d.timers, d.cfg, now)
	return tr
}

// State returns the current state.
func (d *Detector) State() State {
	return d.state
}
