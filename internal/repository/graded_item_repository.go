package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studycenter-api/internal/models"
)

// GradedItemRepository manages assignments and quizzes.
type GradedItemRepository struct {
	db *sqlx.DB
}

// NewGradedItemRepository builds repository.
func NewGradedItemRepository(db *sqlx.DB) *GradedItemRepository {
	return &GradedItemRepository{db: db}
}

func (r *GradedItemRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a graded item.
func (r *GradedItemRepository) FindByID(ctx context.Context, id string) (*models.GradedItem, error) {
	const query = `SELECT id, offering_id, kind, title, full_mark, created_at, updated_at FROM graded_items WHERE id = $1`
	var item models.GradedItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, mapQueryError(err)
	}
	return &item, nil
}

// ListByOffering returns the offering's graded items in creation order.
func (r *GradedItemRepository) ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.GradedItem, error) {
	const query = `SELECT id, offering_id, kind, title, full_mark, created_at, updated_at FROM graded_items WHERE offering_id = $1 ORDER BY created_at ASC, id ASC`
	var items []models.GradedItem
	if err := sqlx.SelectContext(ctx, r.exec(exec), &items, query, offeringID); err != nil {
		return nil, fmt.Errorf("list graded items: %w", err)
	}
	return items, nil
}

// Create stores a graded item.
func (r *GradedItemRepository) Create(ctx context.Context, exec sqlx.ExtContext, item *models.GradedItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	const query = `INSERT INTO graded_items (id, offering_id, kind, title, full_mark, created_at, updated_at)
VALUES (:id, :offering_id, :kind, :title, :full_mark, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, item); err != nil {
		return fmt.Errorf("create graded item: %w", err)
	}
	return nil
}

// Update changes title and full mark.
func (r *GradedItemRepository) Update(ctx context.Context, exec sqlx.ExtContext, item *models.GradedItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE graded_items SET title = :title, full_mark = :full_mark, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, item); err != nil {
		return fmt.Errorf("update graded item: %w", err)
	}
	return nil
}

// Delete removes a graded item together with its achievements.
func (r *GradedItemRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM graded_items WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete graded item: %w", err)
	}
	return nil
}
