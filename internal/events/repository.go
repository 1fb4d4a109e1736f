package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riverside-fc/backend/internal/models"
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, title, event_type, location, start_date, start_time, coach, kit_color,
	image_url, attendance_token, token_expires_at, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.EventType, &e.Location, &e.StartDate, &e.StartTime, &e.Coach, &e.KitColor,
		&e.ImageURL, &e.AttendanceToken, &e.TokenExpiresAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, event_type, location, start_date, start_time, coach, kit_color, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.EventType, e.Location, e.StartDate, e.StartTime, e.Coach, e.KitColor, e.ImageURL).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update overwrites the editable fields of an event.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, event_type = $3, location = $4, start_date = $5, start_time = $6,
			coach = $7, kit_color = $8, image_url = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.ID, e.Title, e.EventType, e.Location, e.StartDate, e.StartTime, e.Coach, e.KitColor, e.ImageURL).
		Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// GetByAttendanceToken returns the event owning token.
func (r *Repository) GetByAttendanceToken(ctx context.Context, token string) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE attendance_token = $1`, token))
}

// List returns events, newest first. A non-empty eventType filters.
func (r *Repository) List(ctx context.Context, eventType models.EventType) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	var args []any
	if eventType != "" {
		q += ` WHERE event_type = $1`
		args = append(args, eventType)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// SetAttendanceToken replaces the event's attendance link.
func (r *Repository) SetAttendanceToken(ctx context.Context, id uuid.UUID, token string, expiresAt *time.Time) error {
	const q = `UPDATE events SET attendance_token = $2, token_expires_at = $3, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, token, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes an event and its attendance records in one transaction
// and returns the deleted event.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM attendance_records WHERE event_id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete attendance: %w", err)
	}
	e, err := scanEvent(tx.QueryRow(ctx, `DELETE FROM events WHERE id = $1 RETURNING `+eventColumns, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}
