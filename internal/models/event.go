package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType distinguishes matches from practice sessions.
type EventType string

const (
	EventTypeTournament EventType = "tournament"
	EventTypeTraining   EventType = "training"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	return t == EventTypeTournament || t == EventTypeTraining
}

// Event is a club fixture shown on the site and managed from the admin console.
type Event struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	EventType       EventType  `json:"event_type"`
	Location        string     `json:"location"`
	StartDate       time.Time  `json:"start_date"`
	StartTime       string     `json:"start_time"`      // "15:04" or "15:04:05"
	Coach           *string    `json:"coach,omitempty"` // comma-separated names
	KitColor        *string    `json:"kit_color,omitempty"`
	ImageURL        string     `json:"image_url"`
	AttendanceToken *string    `json:"attendance_token,omitempty"`
	TokenExpiresAt  *time.Time `json:"token_expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AcceptsAttendance reports whether players can check in to this event.
func (e *Event) AcceptsAttendance() bool {
	return e.EventType == EventTypeTraining
}

// CoachNames splits the stored coach list, dropping blanks.
func (e *Event) CoachNames() []string {
	if e.Coach == nil {
		return nil
	}
	var names []string
	for _, n := range strings.Split(*e.Coach, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// PublicEvent is the subset of an event exposed on the public check-in page.
type PublicEvent struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	EventType EventType `json:"event_type"`
	Location  string    `json:"location"`
	StartDate string    `json:"start_date"`
	StartTime string    `json:"start_time"`
	KitColor  *string   `json:"kit_color,omitempty"`
}

// ToPublic converts Event to PublicEvent.
func (e *Event) ToPublic() PublicEvent {
	startTime := e.StartTime
	if len(startTime) > 5 {
		startTime = startTime[:5]
	}
	return PublicEvent{
		ID:        e.ID,
		Title:     e.Title,
		EventType: e.EventType,
		Location:  e.Location,
		StartDate: e.StartDate.Format("2006-01-02"),
		StartTime: startTime,
		KitColor:  e.KitColor,
	}
}
