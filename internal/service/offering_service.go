package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/dto"
	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/logger"
	"github.com/noah-isme/studycenter-api/pkg/telemetry"
)

type offeringStore interface {
	List(ctx context.Context, filter models.OfferingFilter) ([]models.CourseOffering, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseOffering, error)
	Create(ctx context.Context, exec sqlx.ExtContext, offering *models.CourseOffering) error
	UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, offering *models.CourseOffering) error
	MarkCompleted(ctx context.Context, exec sqlx.ExtContext, id string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type scheduleChecker interface {
	Check(ctx context.Context, exec sqlx.ExtContext, proposal models.ScheduleProposal) error
	Diagnose(ctx context.Context, exec sqlx.ExtContext, proposal models.ScheduleProposal) (*models.ScheduleDiagnosis, error)
}

type offeringEnrollmentReader interface {
	ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.Enrollment, error)
	CountActive(ctx context.Context, exec sqlx.ExtContext, offeringID string) (int, error)
}

type txRecomputer interface {
	RecomputeTx(ctx context.Context, exec sqlx.ExtContext, offeringID string) (*models.RecomputeSummary, error)
}

type calendarInvalidator interface {
	Invalidate(ctx context.Context, offeringID string) error
}

// OfferingService schedules, reschedules, finalizes and removes course offerings.
type OfferingService struct {
	offerings   offeringStore
	checker     scheduleChecker
	enrollments offeringEnrollmentReader
	recomputer  txRecomputer
	calendar    calendarInvalidator
	locks       advisoryLocker
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewOfferingService wires offering dependencies.
func NewOfferingService(
	offerings offeringStore,
	checker scheduleChecker,
	enrollments offeringEnrollmentReader,
	recomputer txRecomputer,
	calendar calendarInvalidator,
	locks advisoryLocker,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *OfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferingService{
		offerings:   offerings,
		checker:     checker,
		enrollments: enrollments,
		recomputer:  recomputer,
		calendar:    calendar,
		locks:       locks,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns paginated offerings.
func (s *OfferingService) List(ctx context.Context, filter models.OfferingFilter) ([]models.CourseOffering, *models.Pagination, error) {
	offerings, total, err := s.offerings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return offerings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an offering, including its current total mark.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.CourseOffering, error) {
	return findOffering(ctx, s.offerings, nil, id)
}

// Create schedules a new offering.
func (s *OfferingService) Create(ctx context.Context, req dto.CreateOfferingRequest) (*models.CourseOffering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}
	c, err := parseCommitment(req.Commitment)
	if err != nil {
		return nil, err
	}
	offering := &models.CourseOffering{
		SubjectID:      req.SubjectID,
		RoomID:         req.RoomID,
		InstructorID:   normalizeInstructor(req.InstructorID),
		Title:          strings.TrimSpace(req.Title),
		Capacity:       req.Capacity,
		TimeCommitment: c,
	}
	if err := s.ProposeSchedule(ctx, offering, ""); err != nil {
		return nil, err
	}
	return offering, nil
}

// Reschedule replaces the placement, staffing and capacity of an existing offering.
func (s *OfferingService) Reschedule(ctx context.Context, id string, req dto.RescheduleOfferingRequest) (*models.CourseOffering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	c, err := parseCommitment(req.Commitment)
	if err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Completed {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "offering is completed")
	}
	// Completion is re-checked under the offering lock in ProposeSchedule.
	updated := *existing
	updated.RoomID = req.RoomID
	updated.InstructorID = normalizeInstructor(req.InstructorID)
	updated.Capacity = req.Capacity
	updated.TimeCommitment = c
	if title := strings.TrimSpace(req.Title); title != "" {
		updated.Title = title
	}
	if err := s.ProposeSchedule(ctx, &updated, id); err != nil {
		return nil, err
	}
	if s.calendar != nil {
		if err := s.calendar.Invalidate(ctx, id); err != nil {
			logger.WithContext(ctx, s.logger).Warn("failed to invalidate session calendar", zap.String("offering_id", id), zap.Error(err))
		}
	}
	return &updated, nil
}

// ProposeSchedule checks the offering's placement and writes it in the same transaction. With an
// empty excludeOfferingID the offering is created; otherwise the offering with that id is updated
// and never conflicts with itself. Room and instructor locks are held from the checks until commit.
func (s *OfferingService) ProposeSchedule(ctx context.Context, offering *models.CourseOffering, excludeOfferingID string) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "scheduling.ProposeSchedule")
	span.SetAttributes(attribute.String("room.id", offering.RoomID), attribute.Bool("reschedule", excludeOfferingID != ""))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err = offering.TimeCommitment.Validate(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	proposal := models.ScheduleProposal{
		ExcludeOfferingID: excludeOfferingID,
		SubjectID:         offering.SubjectID,
		RoomID:            offering.RoomID,
		Capacity:          offering.Capacity,
		Commitment:        offering.TimeCommitment,
	}
	keys := []string{"room:" + offering.RoomID}
	if offering.HasInstructor() {
		proposal.InstructorID = *offering.InstructorID
		keys = append(keys, "instructor:"+proposal.InstructorID)
	}
	if excludeOfferingID != "" {
		keys = append(keys, offeringLockKey(excludeOfferingID))
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.locks.Acquire(ctx, tx, keys...); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock schedule resources")
		return err
	}
	if excludeOfferingID != "" {
		var current *models.CourseOffering
		if current, err = findOffering(ctx, s.offerings, tx, excludeOfferingID); err != nil {
			return err
		}
		if current.Completed {
			err = appErrors.Clone(appErrors.ErrFinalized, "offering is completed")
			return err
		}
	}
	if err = s.checker.Check(ctx, tx, proposal); err != nil {
		logger.WithContext(ctx, s.logger).Info("schedule proposal rejected",
			zap.String("room_id", proposal.RoomID),
			zap.String("instructor_id", proposal.InstructorID),
			zap.String("exclude_offering_id", excludeOfferingID),
			zap.Error(err),
		)
		return err
	}

	offering.ContactMinutes = offering.TimeCommitment.ContactMinutes()
	if excludeOfferingID == "" {
		err = s.offerings.Create(ctx, tx, offering)
	} else {
		offering.ID = excludeOfferingID
		if err = s.offerings.UpdateSchedule(ctx, tx, offering); errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrFinalized, "offering is completed")
			return err
		}
	}
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store offering")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit offering")
		return err
	}

	span.SetAttributes(attribute.String("offering.id", offering.ID))
	logger.WithContext(ctx, s.logger).Info("offering scheduled",
		zap.String("offering_id", offering.ID),
		zap.String("room_id", offering.RoomID),
		zap.Bool("reschedule", excludeOfferingID != ""),
		zap.Int("contact_minutes", offering.ContactMinutes),
	)
	return nil
}

// CheckSchedule is a dry run reporting every conflict and problem for a proposal.
func (s *OfferingService) CheckSchedule(ctx context.Context, req dto.CheckScheduleRequest) (*models.ScheduleDiagnosis, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule check payload")
	}
	c, err := parseCommitment(req.Commitment)
	if err != nil {
		return nil, err
	}
	proposal := models.ScheduleProposal{
		ExcludeOfferingID: req.ExcludeOfferingID,
		SubjectID:         req.SubjectID,
		RoomID:            req.RoomID,
		Capacity:          req.Capacity,
		Commitment:        c,
	}
	if instructor := normalizeInstructor(req.InstructorID); instructor != nil {
		proposal.InstructorID = *instructor
	}
	return s.checker.Diagnose(ctx, nil, proposal)
}

// Delete removes an offering that no longer has active enrollments.
func (s *OfferingService) Delete(ctx context.Context, id string) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.locks.Acquire(ctx, tx, offeringLockKey(id)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock offering")
		return err
	}
	if _, err = findOffering(ctx, s.offerings, tx, id); err != nil {
		return err
	}
	active, err := s.enrollments.CountActive(ctx, tx, id)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		return err
	}
	if active > 0 {
		err = appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("offering has %d active enrollments", active))
		return err
	}
	if err = s.offerings.Delete(ctx, tx, id); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete offering")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit deletion")
		return err
	}
	if s.calendar != nil {
		_ = s.calendar.Invalidate(ctx, id)
	}
	logger.WithContext(ctx, s.logger).Info("offering deleted", zap.String("offering_id", id))
	return nil
}

// Finalize marks an offering completed once its last meeting day has passed. Scores are recomputed
// first and every remaining enrollment must carry a pass or fail status.
func (s *OfferingService) Finalize(ctx context.Context, id string) (offering *models.CourseOffering, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "grading.Finalize")
	span.SetAttributes(attribute.String("offering.id", id))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.locks.Acquire(ctx, tx, offeringLockKey(id)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock offering")
		return nil, err
	}
	if offering, err = findOffering(ctx, s.offerings, tx, id); err != nil {
		return nil, err
	}
	if offering.Completed {
		err = appErrors.Clone(appErrors.ErrInvalidState, "offering already completed")
		return nil, err
	}
	if !offering.Ended(s.now()) {
		err = appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("offering runs until %s", offering.EndDate.Format(models.DateLayout)))
		return nil, err
	}
	summary, err := s.recomputer.RecomputeTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByOffering(ctx, tx, id)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
		return nil, err
	}
	for _, e := range enrollments {
		if e.Status == models.EnrollmentStatusActive {
			err = appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("enrollment %s has no computed status", e.ID))
			return nil, err
		}
	}
	if err = s.offerings.MarkCompleted(ctx, tx, id); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete offering")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit finalization")
		return nil, err
	}

	offering.Completed = true
	offering.TotalMark = summary.TotalMark
	logger.WithContext(ctx, s.logger).Info("offering finalized", zap.String("offering_id", id), zap.Int("enrollments", len(enrollments)))
	return offering, nil
}

func parseCommitment(req dto.CommitmentRequest) (models.TimeCommitment, error) {
	c, err := req.ToModel()
	if err != nil {
		return c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return c, nil
}

func normalizeInstructor(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
