package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studycenter-api/internal/models"
)

// AchievementRepository stores learners' marks on graded items.
type AchievementRepository struct {
	db *sqlx.DB
}

// NewAchievementRepository builds repository.
func NewAchievementRepository(db *sqlx.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

func (r *AchievementRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByOffering returns every achievement recorded against the offering's graded items.
func (r *AchievementRepository) ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.Achievement, error) {
	const query = `SELECT a.id, a.graded_item_id, a.learner_id, a.achieved_mark, a.feedback, a.created_at, a.updated_at
FROM achievements a JOIN graded_items g ON g.id = a.graded_item_id WHERE g.offering_id = $1`
	var achievements []models.Achievement
	if err := sqlx.SelectContext(ctx, r.exec(exec), &achievements, query, offeringID); err != nil {
		return nil, fmt.Errorf("list offering achievements: %w", err)
	}
	return achievements, nil
}

// ListByLearner returns a learner's achievements within an offering.
func (r *AchievementRepository) ListByLearner(ctx context.Context, offeringID, learnerID string) ([]models.Achievement, error) {
	const query = `SELECT a.id, a.graded_item_id, a.learner_id, a.achieved_mark, a.feedback, a.created_at, a.updated_at
FROM achievements a JOIN graded_items g ON g.id = a.graded_item_id WHERE g.offering_id = $1 AND a.learner_id = $2`
	var achievements []models.Achievement
	if err := r.db.SelectContext(ctx, &achievements, query, offeringID, learnerID); err != nil {
		return nil, fmt.Errorf("list learner achievements: %w", mapQueryError(err))
	}
	return achievements, nil
}

// Upsert records or replaces a learner's mark on a graded item.
func (r *AchievementRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, achievement *models.Achievement) error {
	if achievement.ID == "" {
		achievement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if achievement.CreatedAt.IsZero() {
		achievement.CreatedAt = now
	}
	achievement.UpdatedAt = now
	const query = `INSERT INTO achievements (id, graded_item_id, learner_id, achieved_mark, feedback, created_at, updated_at)
VALUES (:id, :graded_item_id, :learner_id, :achieved_mark, :feedback, :created_at, :updated_at)
ON CONFLICT (graded_item_id, learner_id) DO UPDATE
SET achieved_mark = EXCLUDED.achieved_mark,
    feedback = EXCLUDED.feedback,
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, achievement); err != nil {
		return fmt.Errorf("upsert achievement: %w", err)
	}
	return nil
}
