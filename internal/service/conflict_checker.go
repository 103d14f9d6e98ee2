package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
)

type offeringOverlapFinder interface {
	FindRoomOverlaps(ctx context.Context, exec sqlx.ExtContext, roomID string, commitment models.TimeCommitment, excludeID string) ([]models.CourseOffering, error)
	FindInstructorOverlaps(ctx context.Context, exec sqlx.ExtContext, instructorID string, commitment models.TimeCommitment, excludeID string) ([]models.CourseOffering, error)
	CountInstructorLoad(ctx context.Context, exec sqlx.ExtContext, instructorID string, commitment models.TimeCommitment, excludeID string) (int, error)
}

type roomReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Room, error)
}

type instructorReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Instructor, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error)
}

type activeEnrollmentCounter interface {
	CountActive(ctx context.Context, exec sqlx.ExtContext, offeringID string) (int, error)
}

// ConflictChecker decides whether a proposed placement can be scheduled. Every check only reads,
// through exec when given: callers holding advisory locks pass their transaction, a nil exec reads
// from the pool.
type ConflictChecker struct {
	offerings   offeringOverlapFinder
	rooms       roomReader
	instructors instructorReader
	subjects    subjectReader
	enrollments activeEnrollmentCounter
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewConflictChecker wires the checker.
func NewConflictChecker(
	offerings offeringOverlapFinder,
	rooms roomReader,
	instructors instructorReader,
	subjects subjectReader,
	enrollments activeEnrollmentCounter,
	metrics *MetricsService,
	logger *zap.Logger,
) *ConflictChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictChecker{
		offerings:   offerings,
		rooms:       rooms,
		instructors: instructors,
		subjects:    subjects,
		enrollments: enrollments,
		metrics:     metrics,
		logger:      logger,
	}
}

// Check runs every check in order and stops at the first rejection.
func (c *ConflictChecker) Check(ctx context.Context, exec sqlx.ExtContext, proposal models.ScheduleProposal) error {
	if err := c.CheckCapacity(ctx, exec, proposal.Capacity, proposal.RoomID); err != nil {
		return err
	}
	if err := c.checkEnrollmentFloor(ctx, exec, proposal); err != nil {
		return err
	}
	if err := c.CheckRoomAvailability(ctx, exec, proposal.RoomID, proposal.Commitment, proposal.ExcludeOfferingID); err != nil {
		return err
	}
	if proposal.InstructorID == "" {
		return nil
	}
	return c.CheckInstructorAvailability(ctx, exec, proposal.InstructorID, proposal.SubjectID, proposal.Commitment, proposal.ExcludeOfferingID)
}

// CheckCapacity rejects a capacity above the room's fixed capacity.
func (c *ConflictChecker) CheckCapacity(ctx context.Context, exec sqlx.ExtContext, capacity int, roomID string) error {
	if capacity <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "capacity must be positive")
	}
	room, err := c.loadRoom(ctx, exec, roomID)
	if err != nil {
		return err
	}
	if capacity > room.Capacity {
		return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("capacity %d exceeds room capacity %d", capacity, room.Capacity))
	}
	return nil
}

// A rescheduled offering may not shrink below its current enrollment.
func (c *ConflictChecker) checkEnrollmentFloor(ctx context.Context, exec sqlx.ExtContext, proposal models.ScheduleProposal) error {
	if proposal.ExcludeOfferingID == "" || c.enrollments == nil {
		return nil
	}
	active, err := c.enrollments.CountActive(ctx, exec, proposal.ExcludeOfferingID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if proposal.Capacity < active {
		return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("capacity %d is below current enrollment %d", proposal.Capacity, active))
	}
	return nil
}

// CheckRoomAvailability rejects the commitment when another offering in the room overlaps it.
func (c *ConflictChecker) CheckRoomAvailability(ctx context.Context, exec sqlx.ExtContext, roomID string, commitment models.TimeCommitment, excludeID string) error {
	conflicts, err := c.roomConflicts(ctx, exec, roomID, commitment, excludeID)
	if err != nil {
		return err
	}
	return c.reject(models.ConflictDimensionRoom, conflicts)
}

// CheckInstructorAvailability verifies the instructor exists, belongs to the subject's department,
// is free during the commitment and stays under their load ceiling.
func (c *ConflictChecker) CheckInstructorAvailability(ctx context.Context, exec sqlx.ExtContext, instructorID, subjectID string, commitment models.TimeCommitment, excludeID string) error {
	instructor, err := c.loadInstructor(ctx, exec, instructorID)
	if err != nil {
		return err
	}
	if err := c.checkDepartment(ctx, exec, instructor, subjectID); err != nil {
		return err
	}
	conflicts, err := c.instructorConflicts(ctx, exec, instructorID, commitment, excludeID)
	if err != nil {
		return err
	}
	if err := c.reject(models.ConflictDimensionInstructor, conflicts); err != nil {
		return err
	}
	return c.checkLoad(ctx, exec, instructor, commitment, excludeID)
}

// Diagnose evaluates every check without stopping and reports all findings.
func (c *ConflictChecker) Diagnose(ctx context.Context, exec sqlx.ExtContext, proposal models.ScheduleProposal) (*models.ScheduleDiagnosis, error) {
	diagnosis := &models.ScheduleDiagnosis{}
	note := func(err error) error {
		if err == nil {
			return nil
		}
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrInternal.Code {
			return err
		}
		diagnosis.Problems = append(diagnosis.Problems, appErr.Message)
		return nil
	}

	if err := note(c.CheckCapacity(ctx, exec, proposal.Capacity, proposal.RoomID)); err != nil {
		return nil, err
	}
	if err := note(c.checkEnrollmentFloor(ctx, exec, proposal)); err != nil {
		return nil, err
	}
	if _, err := c.loadRoom(ctx, exec, proposal.RoomID); err == nil {
		roomConflicts, err := c.roomConflicts(ctx, exec, proposal.RoomID, proposal.Commitment, proposal.ExcludeOfferingID)
		if err != nil {
			return nil, err
		}
		diagnosis.Conflicts = append(diagnosis.Conflicts, roomConflicts...)
	}

	if proposal.InstructorID != "" {
		instructor, err := c.loadInstructor(ctx, exec, proposal.InstructorID)
		if err := note(err); err != nil {
			return nil, err
		}
		if instructor != nil {
			if err := note(c.checkDepartment(ctx, exec, instructor, proposal.SubjectID)); err != nil {
				return nil, err
			}
			instructorConflicts, err := c.instructorConflicts(ctx, exec, instructor.ID, proposal.Commitment, proposal.ExcludeOfferingID)
			if err != nil {
				return nil, err
			}
			diagnosis.Conflicts = append(diagnosis.Conflicts, instructorConflicts...)
			if err := note(c.checkLoad(ctx, exec, instructor, proposal.Commitment, proposal.ExcludeOfferingID)); err != nil {
				return nil, err
			}
		}
	}

	diagnosis.Feasible = len(diagnosis.Conflicts) == 0 && len(diagnosis.Problems) == 0
	return diagnosis, nil
}

func (c *ConflictChecker) roomConflicts(ctx context.Context, exec sqlx.ExtContext, roomID string, commitment models.TimeCommitment, excludeID string) ([]models.ScheduleConflict, error) {
	candidates, err := c.offerings.FindRoomOverlaps(ctx, exec, roomID, commitment, excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room offerings")
	}
	return overlapping(models.ConflictDimensionRoom, candidates, commitment, excludeID), nil
}

func (c *ConflictChecker) instructorConflicts(ctx context.Context, exec sqlx.ExtContext, instructorID string, commitment models.TimeCommitment, excludeID string) ([]models.ScheduleConflict, error) {
	candidates, err := c.offerings.FindInstructorOverlaps(ctx, exec, instructorID, commitment, excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor offerings")
	}
	return overlapping(models.ConflictDimensionInstructor, candidates, commitment, excludeID), nil
}

// The store narrows candidates; the interval predicate decides.
func overlapping(dimension string, candidates []models.CourseOffering, commitment models.TimeCommitment, excludeID string) []models.ScheduleConflict {
	hits := lo.Filter(candidates, func(o models.CourseOffering, _ int) bool {
		return o.ID != excludeID && o.TimeCommitment.Overlaps(commitment)
	})
	return lo.Map(hits, func(o models.CourseOffering, _ int) models.ScheduleConflict {
		return models.NewScheduleConflict(dimension, o)
	})
}

func (c *ConflictChecker) reject(dimension string, conflicts []models.ScheduleConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	c.metrics.RecordScheduleConflict(dimension)
	c.logger.Info("schedule conflict",
		zap.String("dimension", dimension),
		zap.String("offering_id", conflicts[0].OfferingID),
		zap.Int("conflicts", len(conflicts)),
	)
	conflictErr := &models.ScheduleConflictError{
		Type:     dimension,
		Message:  fmt.Sprintf("%s is already booked by offering %s", lowerDimension(dimension), conflicts[0].OfferingID),
		Conflict: conflicts[0],
		Errors:   conflicts,
	}
	return appErrors.Wrap(conflictErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflictErr.Message)
}

func (c *ConflictChecker) checkDepartment(ctx context.Context, exec sqlx.ExtContext, instructor *models.Instructor, subjectID string) error {
	subject, err := c.subjects.FindByID(ctx, exec, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.DepartmentID != instructor.DepartmentID {
		c.metrics.RecordScheduleConflict("DEPARTMENT")
		return appErrors.Clone(appErrors.ErrDepartmentMismatch, fmt.Sprintf("instructor %s does not belong to the department of subject %s", instructor.ID, subject.Code))
	}
	return nil
}

// The proposal itself is one more concurrent offering, so the existing count must stay below the ceiling.
func (c *ConflictChecker) checkLoad(ctx context.Context, exec sqlx.ExtContext, instructor *models.Instructor, commitment models.TimeCommitment, excludeID string) error {
	if !instructor.HasLoadCeiling() {
		return nil
	}
	current, err := c.offerings.CountInstructorLoad(ctx, exec, instructor.ID, commitment, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count instructor load")
	}
	if current >= instructor.LoadCeiling {
		c.metrics.RecordScheduleConflict("LOAD")
		return appErrors.Clone(appErrors.ErrLoadCeilingExceeded, fmt.Sprintf("instructor already teaches %d concurrent offerings (ceiling %d)", current, instructor.LoadCeiling))
	}
	return nil
}

func (c *ConflictChecker) loadRoom(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Room, error) {
	room, err := c.rooms.FindByID(ctx, exec, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

func (c *ConflictChecker) loadInstructor(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Instructor, error) {
	instructor, err := c.instructors.FindByID(ctx, exec, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

func lowerDimension(dimension string) string {
	switch dimension {
	case models.ConflictDimensionRoom:
		return "room"
	case models.ConflictDimensionInstructor:
		return "instructor"
	default:
		return dimension
	}
}
