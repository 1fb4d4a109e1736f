// Package attendance implements the public check-in flow: resolving a shared
// attendance link to its event, recording check-ins, and reporting them.
package attendance

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riverside-fc/backend/internal/models"
	"github.com/riverside-fc/backend/internal/ratelimit"
	"github.com/riverside-fc/backend/pkg/metrics"
)

// EventStore looks up and updates events.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetByAttendanceToken(ctx context.Context, token string) (*models.Event, error)
	SetAttendanceToken(ctx context.Context, id uuid.UUID, token string, expiresAt *time.Time) error
}

// RecordStore appends and lists check-ins.
type RecordStore interface {
	Create(ctx context.Context, rec *models.AttendanceRecord) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AttendanceRecord, error)
}

// Notifier is told about every stored check-in.
type Notifier interface {
	AttendanceCreated(ctx context.Context, rec models.AttendanceRecord)
}

// Config holds the check-in settings.
type Config struct {
	// PublicOrigin is the site origin used to build share links.
	PublicOrigin string
	// TokenTTL is how long a generated link stays valid; 0 means forever.
	TokenTTL time.Duration
	// RequireAgeBracket rejects check-ins without a bracket.
	RequireAgeBracket bool
	// Location renders check-in times in exports.
	Location *time.Location
}

// Link is a generated attendance link.
type Link struct {
	Token     string     `json:"token"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Service coordinates link resolution, check-in and reporting.
type Service struct {
	events   EventStore
	records  RecordStore
	limiter  *ratelimit.Limiter
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the attendance service. notifier may be nil.
func NewService(events EventStore, records RecordStore, limiter *ratelimit.Limiter, notifier Notifier, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.New(nil)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		events:   events,
		records:  records,
		limiter:  limiter,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Location is the zone used for rendering check-in times.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

// RequireAgeBracket reports whether check-ins must carry a bracket.
func (s *Service) RequireAgeBracket() bool {
	return s.cfg.RequireAgeBracket
}

// Resolve maps a link token to its event.
func (s *Service) Resolve(ctx context.Context, token string) (*models.Event, error) {
	event, err := s.resolve(ctx, token)
	metrics.RecordTokenResolution(resolutionLabel(err))
	return event, err
}

func (s *Service) resolve(ctx context.Context, token string) (*models.Event, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidLink
	}
	event, err := s.events.GetByAttendanceToken(ctx, token)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup event by token: %w", err)
	}
	if event.TokenExpiresAt != nil && event.TokenExpiresAt.Before(s.now()) {
		return nil, ErrLinkExpired
	}
	if !event.AcceptsAttendance() {
		return nil, ErrUnsupportedEventType
	}
	return event, nil
}

func resolutionLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidLink):
		return "invalid"
	case errors.Is(err, ErrEventNotFound):
		return "not_found"
	case errors.Is(err, ErrLinkExpired):
		return "expired"
	case errors.Is(err, ErrUnsupportedEventType):
		return "unsupported"
	default:
		return "error"
	}
}

// validate trims the name and parses the bracket. A nil bracket means none was given.
func (s *Service) validate(name, bracket string) (string, *models.AgeBracket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, ErrNameRequired
	}
	bracket = strings.TrimSpace(bracket)
	if bracket == "" {
		if s.cfg.RequireAgeBracket {
			return "", nil, ErrAgeBracketRequired
		}
		return name, nil, nil
	}
	b, ok := models.ParseAgeBracket(bracket)
	if !ok {
		return "", nil, ErrInvalidAgeBracket
	}
	return name, &b, nil
}

// Submit appends a check-in for event. The same name may check in any number of times.
func (s *Service) Submit(ctx context.Context, event *models.Event, name, bracket string) (*models.AttendanceRecord, error) {
	if event == nil {
		return nil, ErrEventNotFound
	}
	if !event.AcceptsAttendance() {
		return nil, ErrUnsupportedEventType
	}
	name, b, err := s.validate(name, bracket)
	if err != nil {
		return nil, err
	}
	rec := &models.AttendanceRecord{
		EventID:      event.ID,
		AttendeeName: name,
		AgeBracket:   b,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create attendance record: %w", err)
	}
	metrics.RecordCheckIn(rec.BracketName())
	if s.notifier != nil {
		s.notifier.AttendanceCreated(ctx, *rec)
	}
	return rec, nil
}

// CheckIn runs the public form flow: validate input, apply the attendance
// limit for clientKey and token, resolve the link, then submit.
func (s *Service) CheckIn(ctx context.Context, clientKey, token, name, bracket string) (*models.AttendanceRecord, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidLink
	}
	if _, _, err := s.validate(name, bracket); err != nil {
		return nil, err
	}
	if d := s.limiter.Check(clientKey+"|"+token, ratelimit.PresetAttendance); !d.Allowed {
		return nil, &LimitError{Remaining: d.Remaining}
	}
	event, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, event, name, bracket)
}

// IssueToken creates a fresh attendance link for a training event,
// replacing any previous one. adminKey scopes the generation limit.
func (s *Service) IssueToken(ctx context.Context, adminKey string, eventID uuid.UUID) (*Link, error) {
	if d := s.limiter.Check("token:"+adminKey, ratelimit.PresetTokenGeneration); !d.Allowed {
		return nil, &LimitError{Remaining: d.Remaining}
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.AcceptsAttendance() {
		return nil, ErrUnsupportedEventType
	}
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	var expiresAt *time.Time
	if s.cfg.TokenTTL > 0 {
		t := s.now().Add(s.cfg.TokenTTL)
		expiresAt = &t
	}
	if err := s.events.SetAttendanceToken(ctx, eventID, token, expiresAt); err != nil {
		return nil, fmt.Errorf("store attendance token: %w", err)
	}
	metrics.RecordTokenIssued()
	s.logger.Info("attendance link issued", zap.String("event_id", eventID.String()))
	return &Link{Token: token, URL: s.ShareURL(token), ExpiresAt: expiresAt}, nil
}

// ShareURL builds the public check-in URL for token.
func (s *Service) ShareURL(token string) string {
	return strings.TrimRight(s.cfg.PublicOrigin, "/") + "/attendance?token=" + url.QueryEscape(token)
}

// Report loads an event with its check-ins grouped by bracket.
func (s *Service) Report(ctx context.Context, eventID uuid.UUID) (*models.Event, []models.AttendanceRecord, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.records.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("list attendance: %w", err)
	}
	return event, records, nil
}

// generateToken returns 32 random bytes, base64url encoded without padding.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
