// Package session tracks how long the current listening session has run
// and how much listening time has accumulated since start-up.
package session

import "time"

// DefaultDetectionDelay compensates for the music that plays while the
// detector is still confirming the start of a session.
const DefaultDetectionDelay = 10 * time.Second

// OffsetSource supplies an extra elapsed-time offset, typically a testing
// override. Implementations return 0 when no usable offset is available.
type OffsetSource interface {
	Offset() time.Duration
}

// EffectiveElapsed combines raw wall-clock elapsed time with the detection
// delay and an external offset. Negative contributions are treated as zero.
func EffectiveElapsed(raw, delay, offset time.Duration) time.Duration {
	return nonNegative(raw) + nonNegative(delay) + nonNegative(offset)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Accountant owns session and cumulative listening time. It is driven by
// the control loop: Start on entering Playing, Stop on leaving it.
type Accountant struct {
	delay   time.Duration
	offsets OffsetSource

	playing    bool
	start      time.Time
	frozen     time.Duration // last committed session, shown while not playing
	cumulative time.Duration
	sessions   int
}

// NewAccountant returns an accountant applying delay and, when offsets is
// non-nil, the external offset to every elapsed computation.
func NewAccountant(delay time.Duration, offsets OffsetSource) *Accountant {
	return &Accountant{delay: delay, offsets: offsets}
}

func (a *Accountant) offset() time.Duration {
	if a.offsets == nil {
		return 0
	}
	return a.offsets.Offset()
}

// Start begins a new session at now. The previously frozen value is cleared.
func (a *Accountant) Start(now time.Time) {
	a.playing = true
	a.start = now
	a.frozen = 0
}

// Playing reports whether a session is in progress.
func (a *Accountant) Playing() bool {
	return a.playing
}

// StartedAt returns the start of the current or most recent session.
func (a *Accountant) StartedAt() time.Time {
	return a.start
}

// Elapsed returns the session elapsed time including offsets. While no
// session is running it returns the last committed value.
func (a *Accountant) Elapsed(now time.Time) time.Duration {
	if !a.playing {
		return a.frozen
	}
	return EffectiveElapsed(now.Sub(a.start), a.delay, a.offset())
}

// Stop ends the session at now, adds its elapsed time to the cumulative
// total and returns it. Stop without a running session is a no-op.
func (a *Accountant) Stop(now time.Time) time.Duration {
	if !a.playing {
		return 0
	}
	elapsed := a.Elapsed(now)
	a.playing = false
	a.frozen = elapsed
	a.cumulative += elapsed
	a.sessions++
	return elapsed
}

// Cumulative returns the committed listening time since start-up.
func (a *Accountant) Cumulative() time.Duration {
	return a.cumulative
}

// Total returns committed time plus the running session, if any.
func (a *Accountant) Total(now time.Time) time.Duration {
	if a.playing {
		return a.cumulative + a.Elapsed(now)
	}
	return a.cumulative
}

// Sessions returns how many sessions have been committed.
func (a *Accountant) Sessions() int {
	return a.sessions
}
