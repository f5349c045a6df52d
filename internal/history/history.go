// Package history keeps one row per committed listening session in SQLite.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Listen is a finished listening session.
type Listen struct {
	gorm.Model
	SessionID    string    `gorm:"uniqueIndex;size:36;not null"`
	AlbumID      int       `gorm:"index"` // 0 when no album was loaded
	Side         string    `gorm:"size:4"`
	StartedAt    time.Time `gorm:"index"`
	StoppedAt    time.Time
	Seconds      float64 // elapsed including detection delay and offset
	AutoAdvanced bool    // the side flipped when this session stopped
}

// Totals aggregates listens.
type Totals struct {
	Sessions int64   `json:"sessions"`
	Seconds  float64 `json:"seconds"`
}

// Duration returns the total as a time.Duration.
func (t Totals) Duration() time.Duration {
	return time.Duration(t.Seconds * float64(time.Second))
}

// Store wraps the history database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path. Use
// ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if path == ":memory:" {
		// each pooled connection would get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Listen{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Store{db: db}, nil
}

// Record stores a listen, assigning a session ID if it has none.
func (s *Store) Record(l *Listen) error {
	if l.SessionID == "" {
		l.SessionID = uuid.NewString()
	}
	if err := s.db.Create(l).Error; err != nil {
		return fmt.Errorf("record listen: %w", err)
	}
	return nil
}

// Lifetime returns totals across every recorded listen.
func (s *Store) Lifetime() (Totals, error) {
	return s.totals(s.db.Model(&Listen{}))
}

// Album returns totals for one album.
func (s *Store) Album(albumID int) (Totals, error) {
	return s.totals(s.db.Model(&Listen{}).Where("album_id = ?", albumID))
}

func (s *Store) totals(q *gorm.DB) (Totals, error) {
	var t Totals
	err := q.Select("COUNT(*) AS sessions, COALESCE(SUM(seconds), 0) AS seconds").Scan(&t).Error
	if err != nil {
		return Totals{}, fmt.Errorf("sum listens: %w", err)
	}
	return t, nil
}

// Recent returns up to limit listens, newest first.
func (s *Store) Recent(limit int) ([]Listen, error) {
	var out []Listen
	if err := s.db.Order("started_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("recent listens: %w", err)
	}
	return out, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
