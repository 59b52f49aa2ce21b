package review

import (
	"strings"
	"time"
)

var dateLayouts = []string{"2006.01.02", "2006-01-02", "2006/01/02"}

// WithinLookback reports whether reviewDate falls inside the last days days,
// counting today. Empty or unrecognised dates are kept.
func WithinLookback(reviewDate string, now time.Time, days int) bool {
	if days <= 0 {
		return true
	}
	s := strings.TrimSpace(reviewDate)
	if s == "" {
		return true
	}
	d, ok := parseDate(s, now.Location())
	if !ok {
		return true
	}
	y, m, dd := now.AddDate(0, 0, -(days - 1)).Date()
	cutoff := time.Date(y, m, dd, 0, 0, 0, 0, now.Location())
	return !d.Before(cutoff)
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	candidates := []string{s}
	if len(s) > 10 {
		candidates = append(candidates, s[:10])
	}
	for _, c := range candidates {
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, c, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
