package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDuration converts "M:SS", "MM:SS" or "H:MM:SS" to seconds.
// An empty string is 0 with no error.
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("parse duration %q: want M:SS or H:MM:SS", s)
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("parse duration %q: bad field %q", s, p)
		}
		total = total*60 + n
	}
	return total, nil
}
