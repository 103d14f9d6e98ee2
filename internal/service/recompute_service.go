package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/logger"
	"github.com/noah-isme/studycenter-api/pkg/telemetry"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type advisoryLocker interface {
	Acquire(ctx context.Context, exec sqlx.ExtContext, keys ...string) error
}

type offeringMarkWriter interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseOffering, error)
	UpdateTotalMark(ctx context.Context, exec sqlx.ExtContext, id string, totalMark int) error
}

type gradedItemLister interface {
	ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.GradedItem, error)
}

type achievementLister interface {
	ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.Achievement, error)
}

type standingWriter interface {
	ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.Enrollment, error)
	UpdateStandings(ctx context.Context, exec sqlx.ExtContext, enrollments []models.Enrollment) error
}

// MutateFunc applies a change to an offering's graded data inside the recomputation transaction.
type MutateFunc func(ctx context.Context, tx *sqlx.Tx, offering *models.CourseOffering) error

func offeringLockKey(id string) string {
	return "offering:" + id
}

// Recomputer re-derives an offering's total mark and every enrollment's scores from current state.
// Runs for the same offering are serialized by a transaction-scoped advisory lock.
type Recomputer struct {
	tx           txProvider
	locks        advisoryLocker
	offerings    offeringMarkWriter
	items        gradedItemLister
	achievements achievementLister
	enrollments  standingWriter
	engine       *GradeEngine
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewRecomputer wires the recomputation trigger.
func NewRecomputer(
	tx txProvider,
	locks advisoryLocker,
	offerings offeringMarkWriter,
	items gradedItemLister,
	achievements achievementLister,
	enrollments standingWriter,
	engine *GradeEngine,
	metrics *MetricsService,
	logger *zap.Logger,
) *Recomputer {
	if engine == nil {
		engine = NewGradeEngine(models.DefaultPassMark)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recomputer{
		tx:           tx,
		locks:        locks,
		offerings:    offerings,
		items:        items,
		achievements: achievements,
		enrollments:  enrollments,
		engine:       engine,
		metrics:      metrics,
		logger:       logger,
	}
}

// RecomputeCourse recomputes one offering. It is idempotent.
func (r *Recomputer) RecomputeCourse(ctx context.Context, offeringID string) (*models.RecomputeSummary, error) {
	return r.Mutate(ctx, offeringID, nil)
}

// Mutate runs fn and a full recomputation of the offering in one transaction. Nothing is written
// when either step fails.
func (r *Recomputer) Mutate(ctx context.Context, offeringID string, fn MutateFunc) (summary *models.RecomputeSummary, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "grading.Recompute")
	span.SetAttributes(attribute.String("offering.id", offeringID), attribute.Bool("mutation", fn != nil))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if r.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := r.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.locks.Acquire(ctx, tx, offeringLockKey(offeringID)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock offering")
		return nil, err
	}
	offering, err := findOffering(ctx, r.offerings, tx, offeringID)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		if err = fn(ctx, tx, offering); err != nil {
			return nil, err
		}
	}
	if summary, err = r.RecomputeTx(ctx, tx, offeringID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit recomputation")
		return nil, err
	}
	span.SetAttributes(attribute.Int("offering.total_mark", summary.TotalMark), attribute.Bool("skipped", summary.Skipped))
	return summary, nil
}

// RecomputeTx recomputes through exec, which must already hold the offering lock. The total mark is
// always written first; scores are left untouched when the total is zero.
func (r *Recomputer) RecomputeTx(ctx context.Context, exec sqlx.ExtContext, offeringID string) (*models.RecomputeSummary, error) {
	start := time.Now()
	summary, err := r.recompute(ctx, exec, offeringID)
	result := RecomputeResultOK
	switch {
	case err != nil:
		result = RecomputeResultError
	case summary.Skipped:
		result = RecomputeResultSkipped
	}
	r.metrics.ObserveRecompute(result, time.Since(start))
	if err != nil {
		logger.WithContext(ctx, r.logger).Error("grade recomputation failed", zap.String("offering_id", offeringID), zap.Error(err))
		return nil, err
	}
	logger.WithContext(ctx, r.logger).Debug("grade recomputation finished",
		zap.String("offering_id", offeringID),
		zap.Int("total_mark", summary.TotalMark),
		zap.Int("enrollments", summary.Enrollments),
		zap.Bool("skipped", summary.Skipped),
	)
	return summary, nil
}

func (r *Recomputer) recompute(ctx context.Context, exec sqlx.ExtContext, offeringID string) (*models.RecomputeSummary, error) {
	items, err := r.items.ListByOffering(ctx, exec, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load graded items")
	}
	total := r.engine.TotalMark(items)
	if err := r.offerings.UpdateTotalMark(ctx, exec, offeringID, total); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store total mark")
	}
	summary := &models.RecomputeSummary{OfferingID: offeringID, TotalMark: total}
	if total == 0 {
		summary.Skipped = true
		return summary, nil
	}

	enrollments, err := r.enrollments.ListByOffering(ctx, exec, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	achievements, err := r.achievements.ListByOffering(ctx, exec, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load achievements")
	}
	updated, _ := r.engine.Apply(items, enrollments, achievements, total)
	if err := r.enrollments.UpdateStandings(ctx, exec, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store scores")
	}
	summary.Enrollments = len(updated)
	return summary, nil
}
