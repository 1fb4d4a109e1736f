package models

import (
	"time"

	"github.com/google/uuid"
)

// AgeBracket is a coarse youth age category used to group attendees.
type AgeBracket string

const (
	BracketU5     AgeBracket = "U5"
	BracketU7U9   AgeBracket = "U7/U9"
	BracketU10U12 AgeBracket = "U10/U12"
	BracketU13U14 AgeBracket = "U13/U14"
)

// AgeBrackets lists the known brackets in reporting order.
var AgeBrackets = []AgeBracket{BracketU5, BracketU7U9, BracketU10U12, BracketU13U14}

// ParseAgeBracket returns the bracket named by s, or false when s is not one of AgeBrackets.
func ParseAgeBracket(s string) (AgeBracket, bool) {
	for _, b := range AgeBrackets {
		if string(b) == s {
			return b, true
		}
	}
	return "", false
}

// AttendanceRecord is a single check-in for an event. Records are never updated.
type AttendanceRecord struct {
	ID           uuid.UUID   `json:"id"`
	EventID      uuid.UUID   `json:"event_id"`
	AttendeeName string      `json:"attendee_name"`
	AgeBracket   *AgeBracket `json:"age_bracket,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// BracketName returns the raw bracket value or "" when unset.
func (r *AttendanceRecord) BracketName() string {
	if r.AgeBracket == nil {
		return ""
	}
	return string(*r.AgeBracket)
}
