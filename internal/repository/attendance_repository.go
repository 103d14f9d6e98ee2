package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studycenter-api/internal/models"
)

const attendanceColumns = `id, offering_id, enrollment_id, session_date, present, recorded_at`

// AttendanceRepository persists per-session attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert records a mark, replacing an earlier one for the same enrollment and date.
func (r *AttendanceRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	query := `INSERT INTO session_attendance (` + attendanceColumns + `)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (enrollment_id, session_date)
DO UPDATE SET present = EXCLUDED.present, recorded_at = EXCLUDED.recorded_at
RETURNING id`
	if err := sqlx.GetContext(ctx, r.exec(exec), &record.ID, query,
		record.ID, record.OfferingID, record.EnrollmentID, record.SessionDate, record.Present, record.RecordedAt); err != nil {
		return fmt.Errorf("upsert attendance: %w", mapQueryError(err))
	}
	return nil
}

// ListByOffering returns every mark of an offering ordered by date.
func (r *AttendanceRepository) ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM session_attendance WHERE offering_id = $1 ORDER BY session_date ASC, enrollment_id ASC`
	var records []models.AttendanceRecord
	if err := sqlx.SelectContext(ctx, r.exec(exec), &records, query, offeringID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", mapQueryError(err))
	}
	return records, nil
}
