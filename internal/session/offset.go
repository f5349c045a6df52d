package session

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ParseClock parses "MM:SS" into a duration. Anything else, including
// negative fields, yields 0 and false.
func ParseClock(s string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 0 {
		return 0, false
	}
	sec, err := strconv.Atoi(parts[1])
	if err != nil || sec < 0 {
		return 0, false
	}
	return time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, true
}

// StaticOffset is a fixed offset.
type StaticOffset time.Duration

// Offset implements OffsetSource.
func (s StaticOffset) Offset() time.Duration {
	return nonNegative(time.Duration(s))
}

// FileOffset reads a playback offset from a JSON debug file of the form
// {"playback": "MM:SS"}. The file is read on every call and re-parsed only
// when its contents change. A missing or malformed file means no offset.
type FileOffset struct {
	path string

	mu     sync.Mutex
	raw    []byte
	cached time.Duration
}

// NewFileOffset returns an offset source backed by path.
func NewFileOffset(path string) *FileOffset {
	return &FileOffset{path: path}
}

// Offset implements OffsetSource.
func (f *FileOffset) Offset() time.Duration {
	if f == nil || f.path == "" {
		return 0
	}
	data, err := os.ReadFile(f.path)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.raw, f.cached = nil, 0
		return 0
	}
	if f.raw != nil && bytes.Equal(data, f.raw) {
		return f.cached
	}
	f.raw = data
	f.cached = parseOffset(data)
	return f.cached
}

func parseOffset(data []byte) time.Duration {
	var doc struct {
		Playback string `json:"playback"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0
	}
	d, _ := ParseClock(doc.Playback)
	return d
}
