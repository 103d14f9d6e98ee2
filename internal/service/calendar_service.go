package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/logger"
)

type offeringReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseOffering, error)
}

type projectionCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// CalendarService projects an offering's commitment into its list of sessions. Projections are
// cached because they depend only on the commitment, which changes solely through rescheduling.
type CalendarService struct {
	offerings offeringReader
	cache     projectionCache
	logger    *zap.Logger
}

// NewCalendarService constructs the service. cache may be nil.
func NewCalendarService(offerings offeringReader, cache projectionCache, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{offerings: offerings, cache: cache, logger: logger}
}

func calendarCacheKey(offeringID string) string {
	return "calendar:" + offeringID
}

// Sessions returns every meeting of the offering and whether it was served from cache.
func (s *CalendarService) Sessions(ctx context.Context, offeringID string) (*models.SessionCalendar, bool, error) {
	key := calendarCacheKey(offeringID)
	if s.cache != nil {
		var cached models.SessionCalendar
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, true, nil
		}
	}

	offering, err := findOffering(ctx, s.offerings, nil, offeringID)
	if err != nil {
		return nil, false, err
	}
	calendar := BuildSessionCalendar(*offering)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, calendar, 0); err != nil {
			logger.WithContext(ctx, s.logger).Debug("session calendar not cached", zap.String("offering_id", offeringID), zap.Error(err))
		}
	}
	return calendar, false, nil
}

// Invalidate drops the cached projection of an offering.
func (s *CalendarService) Invalidate(ctx context.Context, offeringID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, calendarCacheKey(offeringID))
}

// BuildSessionCalendar enumerates the sessions of an offering.
func BuildSessionCalendar(offering models.CourseOffering) *models.SessionCalendar {
	days := offering.TimeCommitment.Sessions()
	sessions := make([]models.Session, 0, len(days))
	for _, day := range days {
		sessions = append(sessions, models.Session{
			Date:      day.Format(models.DateLayout),
			Weekday:   day.Weekday().String(),
			StartTime: offering.StartTime,
			EndTime:   offering.EndTime,
		})
	}
	return &models.SessionCalendar{
		OfferingID:     offering.ID,
		Sessions:       sessions,
		ContactMinutes: len(sessions) * offering.SessionMinutes(),
	}
}

// findOffering loads through exec. Callers holding the offering lock must pass their transaction.
func findOffering(ctx context.Context, offerings offeringReader, exec sqlx.ExtContext, id string) (*models.CourseOffering, error) {
	offering, err := offerings.FindByID(ctx, exec, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}
