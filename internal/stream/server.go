package stream

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/satindergrewal/needledrop/internal/history"
	"github.com/satindergrewal/needledrop/internal/input"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// HistoryReader answers listening-history queries. *history.Store
// implements it.
type HistoryReader interface {
	Lifetime() (history.Totals, error)
	Album(albumID int) (history.Totals, error)
	Recent(limit int) ([]history.Listen, error)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHistory serves /api/history from h.
func WithHistory(h HistoryReader) ServerOption {
	return func(s *Server) { s.history = h }
}

// Server exposes status, remote control, listen-in audio and metrics over
// HTTP. Control requests are queued onto the monitor's event channel.
type Server struct {
	hub         *Hub
	broadcaster *Broadcaster
	webrtc      *WebRTCHandler
	events      chan<- input.Event
	history     HistoryReader
	logger      zerolog.Logger
	mux         *http.ServeMux
}

// NewServer wires the HTTP routes.
func NewServer(hub *Hub, b *Broadcaster, events chan<- input.Event, logger zerolog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		hub:         hub,
		broadcaster: b,
		webrtc:      NewWebRTCHandler(b, logger),
		events:      events,
		logger:      logger,
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	hub.SetListenerCount(s.Listeners)

	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/album", s.handleAlbum)
	s.mux.HandleFunc("/api/side", s.handleSide)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.Handle("/ws", hub)
	s.mux.Handle("/stream", NewHTTPHandler(b, logger))
	s.mux.Handle("/offer", s.webrtc)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listeners counts MP3 and WebRTC listen-in clients.
func (s *Server) Listeners() int {
	return s.broadcaster.ListenerCount()
}

// Close drops every websocket client and WebRTC peer.
func (s *Server) Close() {
	s.hub.Close()
	s.webrtc.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	snap, ok := s.hub.Latest()
	if !ok {
		http.Error(w, "no status yet", http.StatusServiceUnavailable)
		return
	}
	snap.Listeners = s.Listeners()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAlbum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID <= 0 {
		http.Error(w, "invalid album id", http.StatusBadRequest)
		return
	}
	s.enqueue(w, input.Event{Kind: input.Submit, Value: strconv.Itoa(req.ID)})
}

func (s *Server) handleSide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	var ev input.Event
	switch req.Direction {
	case "next":
		ev.Kind = input.NextSide
	case "prev":
		ev.Kind = input.PrevSide
	default:
		http.Error(w, `direction must be "next" or "prev"`, http.StatusBadRequest)
		return
	}
	s.enqueue(w, ev)
}

func (s *Server) enqueue(w http.ResponseWriter, ev input.Event) {
	if !input.Send(s.events, ev) {
		s.logger.Warn().Str("event", ev.Kind.String()).Msg("control queue full")
		http.Error(w, "control queue full", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "event": ev.Kind.String()})
}

type listenView struct {
	SessionID    string    `json:"session_id"`
	AlbumID      int       `json:"album_id,omitempty"`
	Side         string    `json:"side,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	StoppedAt    time.Time `json:"stopped_at"`
	Seconds      float64   `json:"seconds"`
	AutoAdvanced bool      `json:"auto_advanced"`
}

// handleHistory reports lifetime totals, the most recent listens and,
// with ?album=N, that album's totals. ?limit caps the recent list.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	limit := defaultHistoryLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	albumID := 0
	if v := q.Get("album"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid album id", http.StatusBadRequest)
			return
		}
		albumID = n
	}

	life, err := s.history.Lifetime()
	if err != nil {
		s.logger.Error().Err(err).Msg("history lifetime")
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	listens, err := s.history.Recent(limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("history recent")
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	recent := make([]listenView, len(listens))
	for i, l := range listens {
		recent[i] = listenView{
			SessionID:    l.SessionID,
			AlbumID:      l.AlbumID,
			Side:         l.Side,
			StartedAt:    l.StartedAt,
			StoppedAt:    l.StoppedAt,
			Seconds:      l.Seconds,
			AutoAdvanced: l.AutoAdvanced,
		}
	}

	resp := map[string]any{"lifetime": life, "recent": recent}
	if albumID > 0 {
		totals, err := s.history.Album(albumID)
		if err != nil {
			s.logger.Error().Err(err).Int("album", albumID).Msg("history album")
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		resp["album"] = totals
	}
	writeJSON(w, http.StatusOK, resp)
}
