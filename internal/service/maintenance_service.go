package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/dto"
	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/jobs"
)

// JobTypeRecomputeCourse identifies queued offering recomputations.
const JobTypeRecomputeCourse = "recompute_course"

const maintenanceQueueName = "maintenance"

type offeringIDLister interface {
	ListIDs(ctx context.Context, ids []string) ([]string, error)
}

type courseRecomputer interface {
	RecomputeCourse(ctx context.Context, offeringID string) (*models.RecomputeSummary, error)
}

// MaintenanceConfig sizes the background worker pool.
type MaintenanceConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

type recomputePayload struct {
	OfferingID string `mapstructure:"offering_id"`
}

// MaintenanceService runs bulk recomputation on a background worker pool.
type MaintenanceService struct {
	offerings  offeringIDLister
	recomputer courseRecomputer
	queue      *jobs.Queue
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewMaintenanceService builds the service and its queue. Call Start before enqueuing.
func NewMaintenanceService(offerings offeringIDLister, recomputer courseRecomputer, cfg MaintenanceConfig, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MaintenanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MaintenanceService{offerings: offerings, recomputer: recomputer, validator: validate, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue(maintenanceQueueName, s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnResult: func(job jobs.Job, err error) {
			metrics.RecordQueueJob(maintenanceQueueName, err)
		},
	})
	return s
}

// Start launches the workers.
func (s *MaintenanceService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop halts the workers.
func (s *MaintenanceService) Stop() {
	s.queue.Stop()
}

// Wait blocks until queued work finished or ctx ends.
func (s *MaintenanceService) Wait(ctx context.Context) error {
	return s.queue.Wait(ctx)
}

// Stats reports queue counters.
func (s *MaintenanceService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// RecomputeAll queues one recomputation per offering. An empty id list selects every offering.
func (s *MaintenanceService) RecomputeAll(ctx context.Context, req dto.RecomputeAllRequest) (*dto.RecomputeAllResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recompute payload")
	}
	ids, err := s.offerings.ListIDs(ctx, req.OfferingIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	resp := &dto.RecomputeAllResponse{JobIDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    JobTypeRecomputeCourse,
			Payload: map[string]interface{}{"offering_id": id},
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return resp, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue recomputation")
		}
		resp.JobIDs = append(resp.JobIDs, job.ID)
		resp.Queued++
	}
	s.logger.Info("recomputation queued", zap.Int("offerings", resp.Queued))
	return resp, nil
}

func (s *MaintenanceService) handle(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeRecomputeCourse {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	var payload recomputePayload
	if err := mapstructure.Decode(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode recompute payload: %w", err)
	}
	if payload.OfferingID == "" {
		return errors.New("recompute payload missing offering_id")
	}
	summary, err := s.recomputer.RecomputeCourse(ctx, payload.OfferingID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.logger.Warn("offering vanished before recomputation", zap.String("offering_id", payload.OfferingID))
			return nil
		}
		return err
	}
	s.logger.Debug("offering recomputed", zap.String("job_id", job.ID), zap.String("offering_id", summary.OfferingID), zap.Bool("skipped", summary.Skipped))
	return nil
}
