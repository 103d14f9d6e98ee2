package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studycenter-api/internal/models"
)

const enrollmentColumns = `id, offering_id, learner_id, status, assignments_score, quizzes_score, overall_score, enrolled_at, dropped_at, updated_at`

// EnrollmentRepository handles persistence of enrollments and their derived standings.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, mapQueryError(err)
	}
	return &enrollment, nil
}

// FindByOfferingAndLearner returns the learner's current enrollment, falling back to the most
// recent dropped one.
func (r *EnrollmentRepository) FindByOfferingAndLearner(ctx context.Context, exec sqlx.ExtContext, offeringID, learnerID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE offering_id = $1 AND learner_id = $2
ORDER BY (status = 'DROPPED') ASC, enrolled_at DESC LIMIT 1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, offeringID, learnerID); err != nil {
		return nil, mapQueryError(err)
	}
	return &enrollment, nil
}

// ListByOffering returns every enrollment of an offering, dropped ones included.
func (r *EnrollmentRepository) ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE offering_id = $1 ORDER BY enrolled_at ASC`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &enrollments, query, offeringID); err != nil {
		return nil, fmt.Errorf("list offering enrollments: %w", mapQueryError(err))
	}
	return enrollments, nil
}

// CountActive counts enrollments that have not been dropped.
func (r *EnrollmentRepository) CountActive(ctx context.Context, exec sqlx.ExtContext, offeringID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND status <> $2`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, offeringID, models.EnrollmentStatusDropped); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, offering_id, learner_id, status, assignments_score, quizzes_score, overall_score, enrolled_at, dropped_at, updated_at)
VALUES (:id, :offering_id, :learner_id, :status, :assignments_score, :quizzes_score, :overall_score, :enrolled_at, :dropped_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// MarkDropped moves an enrollment to the terminal dropped state.
func (r *EnrollmentRepository) MarkDropped(ctx context.Context, exec sqlx.ExtContext, id string, droppedAt time.Time) error {
	const query = `UPDATE enrollments SET status = $2, dropped_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, models.EnrollmentStatusDropped, droppedAt); err != nil {
		return fmt.Errorf("drop enrollment: %w", err)
	}
	return nil
}

// UpdateStandings writes recomputed scores and statuses.
func (r *EnrollmentRepository) UpdateStandings(ctx context.Context, exec sqlx.ExtContext, enrollments []models.Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `UPDATE enrollments SET status = :status, assignments_score = :assignments_score, quizzes_score = :quizzes_score,
overall_score = :overall_score, updated_at = :updated_at WHERE id = :id`
	for i := range enrollments {
		enrollment := &enrollments[i]
		enrollment.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, enrollment); err != nil {
			return fmt.Errorf("update enrollment standing: %w", err)
		}
	}
	return nil
}
