package events

import (
	"strings"
	"time"

	"github.com/riverside-fc/backend/internal/models"
)

// defaultTitle names an untitled training after its weekday, e.g. "Saturday Training".
func defaultTitle(eventType models.EventType, date time.Time) string {
	if eventType != models.EventTypeTraining {
		return ""
	}
	return date.Weekday().String() + " Training"
}

// joinCoaches stores a coach list as the comma-separated column value.
func joinCoaches(names []string) *string {
	var kept []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	s := strings.Join(kept, ", ")
	return &s
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
