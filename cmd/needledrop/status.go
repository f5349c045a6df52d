package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/satindergrewal/needledrop/internal/detector"
	"github.com/satindergrewal/needledrop/internal/monitor"
	"github.com/satindergrewal/needledrop/internal/session"
)

const (
	statusWidth = 110
	labelWidth  = 40
)

// statusLine renders the one-line terminal view of a snapshot.
func statusLine(s monitor.Snapshot) string {
	head := fmt.Sprintf("%s %-8s", s.Icon, s.State)
	clock := func(sec float64) string {
		return session.FormatClock(seconds(sec))
	}

	var parts []string
	switch {
	case s.Input != "":
		parts = []string{head, "Enter album ID: " + s.Input + "_"}
	case s.Track != nil:
		parts = []string{head, "Side " + s.Side, fmt.Sprintf("%8s", clock(s.SessionSeconds)), fit(s.Track.Label, labelWidth)}
	case s.AlbumID != 0:
		side := "Side " + s.Side
		if s.SideExhausted {
			side += " (end)"
		}
		parts = []string{head, side,
			fmt.Sprintf("Session: %8s", clock(s.SessionSeconds)),
			fmt.Sprintf("Total: %8s", clock(s.TotalSeconds))}
	default:
		hint := "Type album ID + Enter"
		if s.State == detector.Playing {
			hint = ""
		}
		parts = []string{head,
			fmt.Sprintf("Session: %8s", clock(s.SessionSeconds)),
			fmt.Sprintf("Total: %8s", clock(s.TotalSeconds)), hint}
	}
	parts = append(parts, fmt.Sprintf("amp %.4f width %5.0fHz", s.Amplitude, s.SpectralWidth))
	return strings.Join(parts, " | ")
}

// fit truncates or pads label to exactly width runes.
func fit(label string, width int) string {
	if utf8.RuneCountInString(label) > width {
		r := []rune(label)
		return string(r[:width])
	}
	return label + strings.Repeat(" ", width-utf8.RuneCountInString(label))
}

// statusPrinter redraws the status line in place and prints notices on
// their own line as they change.
type statusPrinter struct {
	w      io.Writer
	notice string
}

func (p *statusPrinter) print(s monitor.Snapshot) {
	if s.Notice != "" && s.Notice != p.notice {
		fmt.Fprintf(p.w, "\r%-*s\n", statusWidth, s.Notice)
	}
	p.notice = s.Notice
	fmt.Fprintf(p.w, "\r%-*s", statusWidth, statusLine(s))
}
