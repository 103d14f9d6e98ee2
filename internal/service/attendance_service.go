package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/dto"
	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/logger"
	"github.com/noah-isme/studycenter-api/pkg/telemetry"
)

type attendanceStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error
	ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.AttendanceRecord, error)
}

type attendanceEnrollmentReader interface {
	ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.Enrollment, error)
	FindByOfferingAndLearner(ctx context.Context, exec sqlx.ExtContext, offeringID, learnerID string) (*models.Enrollment, error)
}

// AttendanceService takes session attendance and reports absence rates.
type AttendanceService struct {
	records     attendanceStore
	offerings   offeringReader
	enrollments attendanceEnrollmentReader
	locks       advisoryLocker
	tx          txProvider
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttendanceService wires attendance dependencies.
func NewAttendanceService(
	records attendanceStore,
	offerings offeringReader,
	enrollments attendanceEnrollmentReader,
	locks advisoryLocker,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		records:     records,
		offerings:   offerings,
		enrollments: enrollments,
		locks:       locks,
		tx:          tx,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// RecordSession marks enrollments present or absent on one session date. The date must be a
// meeting of the offering that has already taken place; marks replace earlier ones for that date.
func (s *AttendanceService) RecordSession(ctx context.Context, offeringID string, req dto.RecordAttendanceRequest) (summary *models.SessionAttendance, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "attendance.RecordSession")
	span.SetAttributes(attribute.String("offering.id", offeringID), attribute.String("session.date", req.Date))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	day, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session date")
	}
	if dup, ok := duplicateEntry(req.Entries); ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("enrollment %s is marked twice", dup))
	}
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

	if err = s.locks.Acquire(ctx, tx, offeringLockKey(offeringID)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock offering")
		return nil, err
	}
	offering, err := findOffering(ctx, s.offerings, tx, offeringID)
	if err != nil {
		return nil, err
	}
	if err = ensureOpen(offering); err != nil {
		return nil, err
	}
	if !lo.ContainsBy(offering.TimeCommitment.Sessions(), func(d time.Time) bool { return d.Format(models.DateLayout) == req.Date }) {
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("offering does not meet on %s", req.Date))
		return nil, err
	}
	if req.Date > s.now().UTC().Format(models.DateLayout) {
		err = appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("session on %s has not taken place", req.Date))
		return nil, err
	}

	enrollments, err := s.enrollments.ListByOffering(ctx, tx, offeringID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
		return nil, err
	}
	byID := lo.KeyBy(enrollments, func(e models.Enrollment) string { return e.ID })

	summary = &models.SessionAttendance{Date: req.Date, Recorded: true}
	recordedAt := s.now().UTC()
	for _, entry := range req.Entries {
		enrollmentID := strings.TrimSpace(entry.EnrollmentID)
		enrollment, ok := byID[enrollmentID]
		if !ok {
			err = appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("enrollment %s is not part of this offering", enrollmentID))
			return nil, err
		}
		if enrollment.Dropped() {
			err = appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("enrollment %s was dropped", enrollmentID))
			return nil, err
		}
		record := &models.AttendanceRecord{
			OfferingID:   offeringID,
			EnrollmentID: enrollmentID,
			SessionDate:  day,
			Present:      *entry.Present,
			RecordedAt:   recordedAt,
		}
		if err = s.records.Upsert(ctx, tx, record); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance")
			return nil, err
		}
		if record.Present {
			summary.Present++
		} else {
			summary.Absent++
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit attendance")
		return nil, err
	}

	s.metrics.RecordAttendance(summary.Present, summary.Absent)
	logger.WithContext(ctx, s.logger).Info("attendance recorded",
		zap.String("offering_id", offeringID),
		zap.String("date", req.Date),
		zap.Int("present", summary.Present),
		zap.Int("absent", summary.Absent),
	)
	return summary, nil
}

// Sessions lists every meeting date of the offering with the attendance taken on it.
func (s *AttendanceService) Sessions(ctx context.Context, offeringID string) ([]models.SessionAttendance, error) {
	offering, err := findOffering(ctx, s.offerings, nil, offeringID)
	if err != nil {
		return nil, err
	}
	records, err := s.listRecords(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	byDate := lo.GroupBy(records, func(r models.AttendanceRecord) string { return r.SessionDate.Format(models.DateLayout) })

	days := offering.TimeCommitment.Sessions()
	out := make([]models.SessionAttendance, 0, len(days))
	for _, d := range days {
		date := d.Format(models.DateLayout)
		marks := byDate[date]
		present := lo.CountBy(marks, func(r models.AttendanceRecord) bool { return r.Present })
		out = append(out, models.SessionAttendance{
			Date:     date,
			Recorded: len(marks) > 0,
			Present:  present,
			Absent:   len(marks) - present,
		})
	}
	return out, nil
}

// AbsenceRates reports every current learner's absence rate, ordered by learner.
func (s *AttendanceService) AbsenceRates(ctx context.Context, offeringID string) ([]models.AbsenceRate, error) {
	if _, err := findOffering(ctx, s.offerings, nil, offeringID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByOffering(ctx, nil, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	records, err := s.listRecords(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	byEnrollment := lo.GroupBy(records, func(r models.AttendanceRecord) string { return r.EnrollmentID })

	current := lo.Reject(enrollments, func(e models.Enrollment, _ int) bool { return e.Dropped() })
	rates := lo.Map(current, func(e models.Enrollment, _ int) models.AbsenceRate {
		rate, _ := absenceRate(e, byEnrollment[e.ID])
		return rate
	})
	sort.Slice(rates, func(i, j int) bool { return rates[i].LearnerID < rates[j].LearnerID })
	return rates, nil
}

// LearnerAbsences returns the learner's absence rate and the dates they missed.
func (s *AttendanceService) LearnerAbsences(ctx context.Context, offeringID, learnerID string) (*models.LearnerAbsences, error) {
	if _, err := findOffering(ctx, s.offerings, nil, offeringID); err != nil {
		return nil, err
	}
	enrollment, err := s.enrollments.FindByOfferingAndLearner(ctx, nil, offeringID, learnerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "learner is not enrolled in this offering")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	records, err := s.listRecords(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	mine := lo.Filter(records, func(r models.AttendanceRecord, _ int) bool { return r.EnrollmentID == enrollment.ID })
	rate, absent := absenceRate(*enrollment, mine)
	return &models.LearnerAbsences{OfferingID: offeringID, AbsenceRate: rate, AbsentDates: absent}, nil
}

func (s *AttendanceService) listRecords(ctx context.Context, offeringID string) ([]models.AttendanceRecord, error) {
	records, err := s.records.ListByOffering(ctx, nil, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return records, nil
}

// Only sessions with a mark for the enrollment count; absent dates come back ascending.
func absenceRate(e models.Enrollment, records []models.AttendanceRecord) (models.AbsenceRate, []string) {
	absent := lo.FilterMap(records, func(r models.AttendanceRecord, _ int) (string, bool) {
		return r.SessionDate.Format(models.DateLayout), !r.Present
	})
	sort.Strings(absent)
	return models.AbsenceRate{
		EnrollmentID: e.ID,
		LearnerID:    e.LearnerID,
		Sessions:     len(records),
		Absences:     len(absent),
		Rate:         roundRatio(100*len(absent), len(records)),
	}, absent
}

func duplicateEntry(entries []dto.AttendanceEntry) (string, bool) {
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry.EnrollmentID)
		if _, ok := seen[id]; ok {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return "", false
}
