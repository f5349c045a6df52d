// Package tracker maps elapsed listening time onto the sides and tracks of
// a loaded album.
package tracker

import (
	"time"

	"github.com/satindergrewal/needledrop/internal/catalog"
)

// Position locates playback within a side.
type Position struct {
	Index  int           // track index within the side
	Offset time.Duration // time into that track
}

// CurrentTrack returns the first track whose cumulative end strictly
// exceeds elapsed. It reports false when elapsed meets or passes the side's
// total duration, including for sides with no tracks. Zero-length tracks
// are never current.
func CurrentTrack(side catalog.Side, elapsed time.Duration) (Position, bool) {
	if elapsed < 0 {
		elapsed = 0
	}
	var start time.Duration
	for i, t := range side.Tracks {
		end := start + time.Duration(t.DurationSeconds)*time.Second
		if elapsed < end {
			return Position{Index: i, Offset: elapsed - start}, true
		}
		start = end
	}
	return Position{}, false
}

// SideDuration returns the side's total length.
func SideDuration(side catalog.Side) time.Duration {
	return time.Duration(side.TotalDuration()) * time.Second
}

// Navigator holds the current side of a loaded album. The index is always
// within the album's sides; moves past either end are ignored.
type Navigator struct {
	album *catalog.Album
	index int
	base  time.Duration // elapsed time already attributed to earlier sides
}

// NewNavigator returns a navigator with no album loaded.
func NewNavigator() *Navigator {
	return &Navigator{}
}

// Load replaces the album and returns to its first side.
func (n *Navigator) Load(a *catalog.Album) {
	n.album = a
	n.index = 0
	n.base = 0
}

// Album returns the loaded album, or nil.
func (n *Navigator) Album() *catalog.Album {
	return n.album
}

// Index returns the current side index.
func (n *Navigator) Index() int {
	return n.index
}

// Side returns the current side, or false with no album or no sides.
func (n *Navigator) Side() (catalog.Side, bool) {
	return n.album.Side(n.index)
}

// Advance moves delta sides forward (or back when negative), one step at a
// time, stopping at either end. It reports whether the side changed. A
// manual move restarts elapsed-on-side accounting for the new side.
func (n *Navigator) Advance(delta int) bool {
	if n.album == nil || len(n.album.Sides) == 0 {
		return false
	}
	next := n.index + delta
	if next < 0 {
		next = 0
	}
	if last := len(n.album.Sides) - 1; next > last {
		next = last
	}
	if next == n.index {
		return false
	}
	n.index = next
	n.base = 0
	return true
}

// ElapsedOnSide converts session elapsed time into time on the current side.
func (n *Navigator) ElapsedOnSide(elapsed time.Duration) time.Duration {
	if d := elapsed - n.base; d > 0 {
		return d
	}
	return 0
}

// AutoAdvance moves to the next side when elapsed time has used up the
// current one. Sides of zero length never advance, and the last side
// stays put. Elapsed time spent on the exhausted side is carried as the
// new side's base so that later lookups point into the new side.
func (n *Navigator) AutoAdvance(elapsed time.Duration) bool {
	side, ok := n.Side()
	if !ok {
		return false
	}
	total := SideDuration(side)
	if total <= 0 || n.ElapsedOnSide(elapsed) < total {
		return false
	}
	if n.index >= len(n.album.Sides)-1 {
		return false
	}
	n.index++
	n.base += total
	return true
}

// ResetBase clears carried elapsed time. Called when a new session starts.
func (n *Navigator) ResetBase() {
	n.base = 0
}

// Current resolves the track playing after elapsed session time.
func (n *Navigator) Current(elapsed time.Duration) (catalog.Track, Position, bool) {
	side, ok := n.Side()
	if !ok {
		return catalog.Track{}, Position{}, false
	}
	pos, ok := CurrentTrack(side, n.ElapsedOnSide(elapsed))
	if !ok {
		return catalog.Track{}, Position{}, false
	}
	return side.Tracks[pos.Index], pos, true
}
