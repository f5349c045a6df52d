package monitor

import (
	"time"

	"github.com/satindergrewal/needledrop/internal/detector"
)

// TrackInfo describes the estimated current track.
type TrackInfo struct {
	Index           int     `json:"index"`
	Position        string  `json:"position"`
	Artist          string  `json:"artist"`
	Title           string  `json:"title"`
	Label           string  `json:"label"`
	DurationSeconds int     `json:"duration_seconds"`
	OffsetSeconds   float64 `json:"offset_seconds"` // time into the track
}

// Snapshot is the read-only view handed to displays each status tick.
type Snapshot struct {
	At    time.Time      `json:"at"`
	State detector.State `json:"state"`
	Icon  string         `json:"icon"`

	AlbumID       int        `json:"album_id,omitempty"`
	Side          string     `json:"side,omitempty"`
	SideIndex     int        `json:"side_index"`
	Sides         int        `json:"sides"`
	Track         *TrackInfo `json:"track,omitempty"`
	SideExhausted bool       `json:"side_exhausted"`

	SessionSeconds float64 `json:"session_seconds"`
	TotalSeconds   float64 `json:"total_seconds"`
	Sessions       int     `json:"sessions"`

	Amplitude     float64 `json:"amplitude"`
	SpectralWidth float64 `json:"spectral_width"`

	Input     string `json:"input,omitempty"`  // album ID being typed
	Notice    string `json:"notice,omitempty"` // latest user-facing message
	Listeners int    `json:"listeners"`        // filled in by the HTTP layer
}

// Session returns the session elapsed time.
func (s Snapshot) Session() time.Duration {
	return seconds(s.SessionSeconds)
}

// Total returns the cumulative listening time.
func (s Snapshot) Total() time.Duration {
	return seconds(s.TotalSeconds)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
