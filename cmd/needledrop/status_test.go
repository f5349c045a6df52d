package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/satindergrewal/needledrop/internal/detector"
	"github.com/satindergrewal/needledrop/internal/monitor"
)

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name string
		snap monitor.Snapshot
		want []string
	}{
		{
			name: "no album",
			snap: monitor.Snapshot{State: detector.Idle, Icon: "⏸", TotalSeconds: 75},
			want: []string{"⏸ IDLE", "Session:    00:00", "Total:    01:15", "Type album ID + Enter"},
		},
		{
			name: "typing",
			snap: monitor.Snapshot{State: detector.Playing, Icon: "▶", Input: "12"},
			want: []string{"▶ PLAYING", "Enter album ID: 12_"},
		},
		{
			name: "track",
			snap: monitor.Snapshot{
				State: detector.Playing, Icon: "▶", AlbumID: 7, Side: "B", SessionSeconds: 190,
				Track: &monitor.TrackInfo{Label: "Artist - Title"},
			},
			want: []string{"Side B", "   03:10", "Artist - Title"},
		},
		{
			name: "album without track",
			snap: monitor.Snapshot{State: detector.Stopped, Icon: "⏹", AlbumID: 7, Side: "A", SideExhausted: true, TotalSeconds: 3700},
			want: []string{"⏹ STOPPED", "Side A (end)", "Total: 01:01:40"},
		},
	}
	for _, tt := range tests {
		got := statusLine(tt.snap)
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Errorf("%s: statusLine = %q, missing %q", tt.name, got, w)
			}
		}
	}
}

func TestStatusLineHidesHintWhilePlaying(t *testing.T) {
	got := statusLine(monitor.Snapshot{State: detector.Playing, Icon: "▶"})
	if strings.Contains(got, "Type album ID") {
		t.Errorf("statusLine = %q, want no hint while playing", got)
	}
}

func TestFit(t *testing.T) {
	if got := fit("abc", 5); got != "abc  " {
		t.Errorf("fit pad = %q, want %q", got, "abc  ")
	}
	if got := fit("Sigur Rós", 7); got != "Sigur R" {
		t.Errorf("fit cut = %q, want %q", got, "Sigur R")
	}
}

func TestStatusPrinterNotices(t *testing.T) {
	var buf bytes.Buffer
	p := &statusPrinter{w: &buf}
	snap := monitor.Snapshot{State: detector.Idle, Icon: "⏸", Notice: "Loaded album 7"}

	p.print(snap)
	p.print(snap)
	if n := strings.Count(buf.String(), "Loaded album 7"); n != 1 {
		t.Errorf("notice printed %d times, want 1", n)
	}
	if !strings.HasPrefix(buf.String(), "\r") {
		t.Errorf("output should redraw in place, got %q", buf.String()[:10])
	}
}
