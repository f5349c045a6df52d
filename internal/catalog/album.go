// Package catalog loads album metadata (sides, tracks and durations) from
// a directory of JSON or YAML files keyed by album ID.
package catalog

import "fmt"

// Track is a single song on a side. Immutable once loaded.
type Track struct {
	Position        string `json:"position"`
	Artist          string `json:"artist"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Label is the "Artist - Title" form shown on the status line.
func (t Track) Label() string {
	switch {
	case t.Artist != "" && t.Title != "":
		return fmt.Sprintf("%s - %s", t.Artist, t.Title)
	case t.Title != "":
		return t.Title
	default:
		return t.Position
	}
}

// Side is one playable face of an album.
type Side struct {
	Label  string  `json:"label"`
	Tracks []Track `json:"tracks"`
}

// TotalDuration is the sum of the side's track durations in seconds.
func (s Side) TotalDuration() int {
	total := 0
	for _, t := range s.Tracks {
		total += t.DurationSeconds
	}
	return total
}

// Album is a parsed album file.
type Album struct {
	ID    int    `json:"id"`
	Cover string `json:"cover,omitempty"`
	Sides []Side `json:"sides"`

	// MissingDurations lists positions of tracks whose duration could not
	// be parsed and was taken as 0.
	MissingDurations []string `json:"missing_durations,omitempty"`
}

// Side returns the side at index i, or false when out of range.
func (a *Album) Side(i int) (Side, bool) {
	if a == nil || i < 0 || i >= len(a.Sides) {
		return Side{}, false
	}
	return a.Sides[i], true
}

// TrackCount returns the number of tracks across all sides.
func (a *Album) TrackCount() int {
	if a == nil {
		return 0
	}
	n := 0
	for _, s := range a.Sides {
		n += len(s.Tracks)
	}
	return n
}
