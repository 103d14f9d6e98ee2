package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studycenter-api/internal/models"
)

// InstructorRepository handles persistence for instructors.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository creates a new repository instance.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

func (r *InstructorRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID retrieves an instructor by ID.
func (r *InstructorRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Instructor, error) {
	const query = `SELECT id, full_name, department_id, load_ceiling, created_at, updated_at FROM instructors WHERE id = $1`
	var instructor models.Instructor
	if err := sqlx.GetContext(ctx, r.exec(exec), &instructor, query, id); err != nil {
		return nil, mapQueryError(err)
	}
	return &instructor, nil
}

// Upsert inserts or updates an instructor.
func (r *InstructorRepository) Upsert(ctx context.Context, instructor *models.Instructor) error {
	if instructor.ID == "" {
		instructor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	instructor.CreatedAt, instructor.UpdatedAt = now, now
	const query = `INSERT INTO instructors (id, full_name, department_id, load_ceiling, created_at, updated_at)
VALUES (:id, :full_name, :department_id, :load_ceiling, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, department_id = EXCLUDED.department_id,
load_ceiling = EXCLUDED.load_ceiling, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
		return fmt.Errorf("upsert instructor: %w", err)
	}
	return nil
}
