// Package metrics exposes the monitor's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satindergrewal/needledrop/internal/audio"
	"github.com/satindergrewal/needledrop/internal/detector"
)

var (
	framesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "needledrop_frames_total", Help: "Audio frames analysed"},
	)
	amplitude = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "needledrop_amplitude", Help: "RMS amplitude of the latest frame"},
	)
	spectralWidth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "needledrop_spectral_width_hz", Help: "Spectral width of the latest frame"},
	)
	frameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "needledrop_frame_processing_seconds",
			Help:    "Time spent processing one frame",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		},
	)
	state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "needledrop_state", Help: "1 for the current playback state"},
		[]string{"state"},
	)
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "needledrop_transitions_total", Help: "Playback state transitions"},
		[]string{"from", "to"},
	)
	sessionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "needledrop_session_seconds",
			Help:    "Committed listening session length",
			Buckets: []float64{30, 60, 300, 600, 1200, 1800, 2700, 3600},
		},
	)
	listeningSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "needledrop_listening_seconds_total", Help: "Committed listening time"},
	)
	sideChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "needledrop_side_changes_total", Help: "Side changes"},
		[]string{"reason"},
	)
	albumLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "needledrop_album_loads_total", Help: "Album load attempts"},
		[]string{"result"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		framesTotal, amplitude, spectralWidth, frameDuration,
		state, transitions, sessionSeconds, listeningSeconds,
		sideChanges, albumLoads,
	)
	SetState(detector.Idle)
}

// ObserveFrame records one analysed frame.
func ObserveFrame(s audio.Scores, took time.Duration) {
	framesTotal.Inc()
	amplitude.Set(s.Amplitude)
	spectralWidth.Set(s.SpectralWidth)
	frameDuration.Observe(took.Seconds())
}

// SetState marks st as the current state.
func SetState(st detector.State) {
	for _, s := range []detector.State{detector.Idle, detector.Playing, detector.Stopped} {
		v := 0.0
		if s == st {
			v = 1
		}
		state.WithLabelValues(s.String()).Set(v)
	}
}

// Transition records a state change.
func Transition(t detector.Transition) {
	transitions.WithLabelValues(t.From.String(), t.To.String()).Inc()
	SetState(t.To)
}

// SessionCommitted records a finished session.
func SessionCommitted(d time.Duration) {
	sessionSeconds.Observe(d.Seconds())
	listeningSeconds.Add(d.Seconds())
}

// SideChanged records a side change; reason is "auto" or "manual".
func SideChanged(reason string) {
	sideChanges.WithLabelValues(reason).Inc()
}

// AlbumLoad records an album load; result is "ok", "not_found",
// "invalid" or "error".
func AlbumLoad(result string) {
	albumLoads.WithLabelValues(result).Inc()
}
