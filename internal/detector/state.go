// Package detector decides from per-frame audio scores whether a record is
// playing. The transition rules are a pure function; Detector is a thin
// stateful wrapper for the control loop.
package detector

// State is the playback state inferred from the room audio.
type State int

const (
	Idle    State = iota // nothing heard since start-up
	Playing              // music confirmed
	Stopped              // silence confirmed after playing
)

// String returns the display name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Playing:
		return "PLAYING"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Icon returns the single-glyph status icon for the state.
func (s State) Icon() string {
	switch s {
	case Playing:
		return "▶"
	case Stopped:
		return "⏹"
	default:
		return "⏸"
	}
}

// MarshalText lets State appear by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

