package session

import (
	"fmt"
	"time"
)

// FormatClock renders a duration as MM:SS, or HH:MM:SS from one hour up.
// Fractions of a second are truncated and negative values render as 00:00.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
