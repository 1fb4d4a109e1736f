package attendance

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riverside-fc/backend/internal/models"
)

// Repository persists attendance records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a check-in and fills ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, rec *models.AttendanceRecord) error {
	const q = `INSERT INTO attendance_records (event_id, attendee_name, age_bracket)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	var bracket *string
	if rec.AgeBracket != nil {
		s := string(*rec.AgeBracket)
		bracket = &s
	}
	return r.pool.QueryRow(ctx, q, rec.EventID, rec.AttendeeName, bracket).Scan(&rec.ID, &rec.CreatedAt)
}

// ListByEvent returns an event's check-ins, most recent first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, event_id, attendee_name, age_bracket, created_at
		FROM attendance_records WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.AttendanceRecord{}
	for rows.Next() {
		var (
			rec     models.AttendanceRecord
			bracket *string
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.AttendeeName, &bracket, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if bracket != nil && *bracket != "" {
			b := models.AgeBracket(*bracket)
			rec.AgeBracket = &b
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}
