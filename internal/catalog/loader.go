package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var (
	// ErrAlbumNotFound is returned when no file exists for an album ID.
	ErrAlbumNotFound = errors.New("album not found")
	// ErrInvalidAlbumID is returned for IDs that are not positive integers.
	ErrInvalidAlbumID = errors.New("invalid album id")
)

// ParseAlbumID parses a typed or tagged album identifier.
func ParseAlbumID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAlbumID, s)
	}
	return id, nil
}

// albumFile mirrors the on-disk layout shared by the JSON and YAML forms.
type albumFile struct {
	ID    int        `json:"id" yaml:"id"`
	Cover string     `json:"cover" yaml:"cover"`
	Sides []sideFile `json:"sides" yaml:"sides"`
}

type sideFile struct {
	Ind    string      `json:"ind" yaml:"ind"`
	Tracks []trackFile `json:"tracks" yaml:"tracks"`
}

type trackFile struct {
	Position string `json:"position" yaml:"position"`
	Artist   string `json:"artist" yaml:"artist"`
	Title    string `json:"title" yaml:"title"`
	Duration string `json:"duration" yaml:"duration"`
}

var extensions = []string{".json", ".yaml", ".yml"}

// Loader reads album files from a directory.
type Loader struct {
	dir string
}

// NewLoader returns a loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Dir returns the catalog directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Load reads <dir>/<id>.json, .yaml or .yml, in that order.
func (l *Loader) Load(id int) (*Album, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlbumID, id)
	}
	for _, ext := range extensions {
		path := filepath.Join(l.dir, strconv.Itoa(id)+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read album %d: %w", id, err)
		}
		var raw albumFile
		if ext == ".json" {
			err = json.Unmarshal(data, &raw)
		} else {
			err = yaml.Unmarshal(data, &raw)
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		return raw.album(id), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrAlbumNotFound, id)
}

func (f albumFile) album(requested int) *Album {
	a := &Album{ID: f.ID, Cover: f.Cover}
	if a.ID == 0 {
		a.ID = requested
	}
	for i, sf := range f.Sides {
		side := Side{Label: sideLabel(sf.Ind, i)}
		for _, tf := range sf.Tracks {
			secs, err := ParseDuration(tf.Duration)
			if err != nil {
				a.MissingDurations = append(a.MissingDurations, tf.Position)
			}
			side.Tracks = append(side.Tracks, Track{
				Position:        tf.Position,
				Artist:          tf.Artist,
				Title:           tf.Title,
				DurationSeconds: secs,
			})
		}
		a.Sides = append(a.Sides, side)
	}
	return a
}

// sideLabel normalises "a", "Side B" and similar to one uppercase letter.
// Sides without a usable letter are labelled by position.
func sideLabel(ind string, index int) string {
	ind = strings.TrimSpace(ind)
	if strings.HasPrefix(strings.ToLower(ind), "side") {
		ind = strings.TrimSpace(ind[4:])
	}
	if r, _ := utf8.DecodeRuneInString(ind); unicode.IsLetter(r) {
		return string(unicode.ToUpper(r))
	}
	return string(rune('A' + index%26))
}
