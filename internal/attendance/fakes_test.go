package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riverside-fc/backend/internal/models"
)

type memEvents struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.Event
}

func newMemEvents(events ...*models.Event) *memEvents {
	m := &memEvents{events: map[uuid.UUID]*models.Event{}}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *memEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memEvents) GetByAttendanceToken(_ context.Context, token string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.AttendanceToken != nil && *e.AttendanceToken == token {
			cp := *e
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memEvents) SetAttendanceToken(_ context.Context, id uuid.UUID, token string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return models.ErrNotFound
	}
	e.AttendanceToken = &token
	e.TokenExpiresAt = expiresAt
	return nil
}

type memRecords struct {
	mu      sync.Mutex
	records []models.AttendanceRecord
	clock   func() time.Time
	err     error
}

func (m *memRecords) Create(_ context.Context, rec *models.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	rec.ID = uuid.New()
	rec.CreatedAt = m.clock()
	m.records = append(m.records, *rec)
	return nil
}

func (m *memRecords) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AttendanceRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].EventID == eventID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

type recordingNotifier struct {
	got []models.AttendanceRecord
}

func (n *recordingNotifier) AttendanceCreated(_ context.Context, rec models.AttendanceRecord) {
	n.got = append(n.got, rec)
}

func strPtr(s string) *string { return &s }

func bracketPtr(b models.AgeBracket) *models.AgeBracket { return &b }

func trainingEvent(token string) *models.Event {
	return &models.Event{
		ID:              uuid.New(),
		Title:           "Saturday Training",
		EventType:       models.EventTypeTraining,
		Location:        "Riverside Park",
		StartDate:       time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC),
		StartTime:       "06:00",
		AttendanceToken: strPtr(token),
	}
}
