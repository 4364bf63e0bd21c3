package sanitize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseDate parses a date string in any common layout. It returns nil instead
// of an error when the value is empty or cannot be understood.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil || t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
