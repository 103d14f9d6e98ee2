package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studycenter-api/internal/dto"
	"github.com/noah-isme/studycenter-api/internal/models"
	"github.com/noah-isme/studycenter-api/internal/service"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/jobs"
)

type offeringServiceStub struct {
	createReq     dto.CreateOfferingRequest
	rescheduledID string
	err           error
}

func (s *offeringServiceStub) List(ctx context.Context, filter models.OfferingFilter) ([]models.CourseOffering, *models.Pagination, error) {
	return []models.CourseOffering{{ID: "off-1", RoomID: filter.RoomID}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (s *offeringServiceStub) Get(ctx context.Context, id string) (*models.CourseOffering, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.CourseOffering{ID: id, TotalMark: 100}, nil
}

func (s *offeringServiceStub) Create(ctx context.Context, req dto.CreateOfferingRequest) (*models.CourseOffering, error) {
	s.createReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.CourseOffering{ID: "new", Title: req.Title}, nil
}

func (s *offeringServiceStub) Reschedule(ctx context.Context, id string, req dto.RescheduleOfferingRequest) (*models.CourseOffering, error) {
	s.rescheduledID = id
	return &models.CourseOffering{ID: id}, s.err
}

func (s *offeringServiceStub) CheckSchedule(ctx context.Context, req dto.CheckScheduleRequest) (*models.ScheduleDiagnosis, error) {
	return &models.ScheduleDiagnosis{Feasible: false, Problems: []string{"capacity 40 exceeds room capacity 30"}}, nil
}

func (s *offeringServiceStub) Delete(ctx context.Context, id string) error { return s.err }

func (s *offeringServiceStub) Finalize(ctx context.Context, id string) (*models.CourseOffering, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.CourseOffering{ID: id, Completed: true}, nil
}

type calendarStub struct{ hit bool }

func (s calendarStub) Sessions(ctx context.Context, offeringID string) (*models.SessionCalendar, bool, error) {
	return &models.SessionCalendar{OfferingID: offeringID, Sessions: []models.Session{{Date: "2025-03-03"}}}, s.hit, nil
}

type recomputerStub struct{}

func (recomputerStub) RecomputeCourse(ctx context.Context, offeringID string) (*models.RecomputeSummary, error) {
	return &models.RecomputeSummary{OfferingID: offeringID, TotalMark: 100}, nil
}

type gradedItemStub struct{ deleted string }

func (s *gradedItemStub) List(ctx context.Context, offeringID string) ([]models.GradedItem, error) {
	return []models.GradedItem{{ID: "quiz", OfferingID: offeringID}}, nil
}

func (s *gradedItemStub) Create(ctx context.Context, offeringID string, req dto.CreateGradedItemRequest) (*models.GradedItem, error) {
	return &models.GradedItem{ID: "item-1", OfferingID: offeringID, Kind: models.GradedItemKind(req.Kind), FullMark: req.FullMark}, nil
}

func (s *gradedItemStub) Update(ctx context.Context, id string, req dto.UpdateGradedItemRequest) (*models.GradedItem, error) {
	return &models.GradedItem{ID: id, FullMark: req.FullMark}, nil
}

func (s *gradedItemStub) Delete(ctx context.Context, id string) error {
	s.deleted = id
	return nil
}

type achievementStub struct{}

func (achievementStub) Record(ctx context.Context, itemID string, req dto.RecordAchievementRequest) (*models.Achievement, error) {
	return &models.Achievement{GradedItemID: itemID, LearnerID: req.LearnerID, AchievedMark: *req.AchievedMark}, nil
}

func (achievementStub) SubmitQuiz(ctx context.Context, itemID string, req dto.QuizSubmissionRequest) (*models.Achievement, error) {
	return &models.Achievement{GradedItemID: itemID, LearnerID: req.LearnerID, AchievedMark: 27}, nil
}

type enrollmentStub struct{ err error }

func (s enrollmentStub) ListByOffering(ctx context.Context, offeringID string) ([]models.Enrollment, error) {
	return []models.Enrollment{{ID: "e1", OfferingID: offeringID}}, nil
}

func (s enrollmentStub) Enroll(ctx context.Context, offeringID string, req dto.EnrollRequest) (*models.Enrollment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Enrollment{ID: "e2", OfferingID: offeringID, LearnerID: req.LearnerID, Status: models.EnrollmentStatusActive}, nil
}

func (s enrollmentStub) Drop(ctx context.Context, id string) (*models.Enrollment, error) {
	return &models.Enrollment{ID: id, Status: models.EnrollmentStatusDropped}, nil
}

func (s enrollmentStub) Standing(ctx context.Context, offeringID, learnerID string) (*models.Standing, error) {
	return &models.Standing{OfferingID: offeringID, LearnerID: learnerID, AssignmentsPercent: 50, QuizzesPercent: 100}, nil
}

type attendanceStub struct{ recorded dto.RecordAttendanceRequest }

func (s *attendanceStub) RecordSession(ctx context.Context, offeringID string, req dto.RecordAttendanceRequest) (*models.SessionAttendance, error) {
	s.recorded = req
	return &models.SessionAttendance{Date: req.Date, Recorded: true, Present: len(req.Entries)}, nil
}

func (s *attendanceStub) Sessions(ctx context.Context, offeringID string) ([]models.SessionAttendance, error) {
	return []models.SessionAttendance{{Date: "2025-03-03", Recorded: true, Present: 1}}, nil
}

func (s *attendanceStub) AbsenceRates(ctx context.Context, offeringID string) ([]models.AbsenceRate, error) {
	return []models.AbsenceRate{{EnrollmentID: "e1", LearnerID: "ana", Sessions: 3, Absences: 1, Rate: 33}}, nil
}

func (s *attendanceStub) LearnerAbsences(ctx context.Context, offeringID, learnerID string) (*models.LearnerAbsences, error) {
	if learnerID == "zed" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "learner is not enrolled in this offering")
	}
	return &models.LearnerAbsences{OfferingID: offeringID, AbsenceRate: models.AbsenceRate{LearnerID: learnerID, Rate: 33}, AbsentDates: []string{"2025-03-06"}}, nil
}

type maintenanceStub struct{ req dto.RecomputeAllRequest }

func (s *maintenanceStub) RecomputeAll(ctx context.Context, req dto.RecomputeAllRequest) (*dto.RecomputeAllResponse, error) {
	s.req = req
	return &dto.RecomputeAllResponse{Queued: 2, JobIDs: []string{"a", "b"}}, nil
}

func (s *maintenanceStub) Stats() jobs.Stats { return jobs.Stats{Processed: 3} }

type pingStub struct{ err error }

func (p pingStub) PingContext(ctx context.Context) error { return p.err }

type routerFixture struct {
	offerings   *offeringServiceStub
	items       *gradedItemStub
	maintenance *maintenanceStub
	enrollments enrollmentStub
	attendance  *attendanceStub
	db          pingStub
	hit         bool
}

func (f *routerFixture) build() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, "/api/v1", Handlers{
		Metrics:     NewMetricsHandler(service.NewMetricsService(), f.db),
		Offerings:   NewOfferingHandler(f.offerings, calendarStub{hit: f.hit}, recomputerStub{}),
		Grading:     NewGradingHandler(f.items, achievementStub{}),
		Enrollments: NewEnrollmentHandler(f.enrollments),
		Attendance:  NewAttendanceHandler(f.attendance),
		Maintenance: NewMaintenanceHandler(f.maintenance),
	})
	return r
}

func newRouterFixture() *routerFixture {
	return &routerFixture{offerings: &offeringServiceStub{}, items: &gradedItemStub{}, maintenance: &maintenanceStub{}, attendance: &attendanceStub{}}
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

const createOfferingBody = `{"subject_id":"algebra","room_id":"room-1","title":"Algebra","capacity":20,
"commitment":{"start_date":"2025-03-03","end_date":"2025-03-16","weekdays":["MONDAY"],"start_time":"09:00","end_time":"10:30"}}`

func TestOfferingRoutes(t *testing.T) {
	f := newRouterFixture()
	r := f.build()

	w := serve(r, http.MethodPost, "/api/v1/offerings", createOfferingBody)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "room-1", f.offerings.createReq.RoomID)
	assert.Equal(t, []string{"MONDAY"}, f.offerings.createReq.Commitment.Weekdays)

	w = serve(r, http.MethodGet, "/api/v1/offerings?room_id=room-1&page=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_count":1`)

	w = serve(r, http.MethodGet, "/api/v1/offerings/off-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_mark":100`)

	w = serve(r, http.MethodPut, "/api/v1/offerings/off-1/schedule", createOfferingBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "off-1", f.offerings.rescheduledID)

	w = serve(r, http.MethodPost, "/api/v1/offerings/check", createOfferingBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"feasible":false`)

	w = serve(r, http.MethodPost, "/api/v1/offerings/off-1/finalize", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"completed":true`)

	w = serve(r, http.MethodPost, "/api/v1/offerings/off-1/recompute", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodDelete, "/api/v1/offerings/off-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOfferingCreateRejectsMalformedJSON(t *testing.T) {
	r := newRouterFixture().build()

	w := serve(r, http.MethodPost, "/api/v1/offerings", `{"room_id":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}

func TestOfferingCreateConflictCarriesDetails(t *testing.T) {
	f := newRouterFixture()
	conflict := models.ScheduleConflict{OfferingID: "off-9", Dimension: models.ConflictDimensionRoom}
	f.offerings.err = appErrors.Wrap(&models.ScheduleConflictError{Type: models.ConflictDimensionRoom, Message: "room is already booked", Conflict: conflict},
		appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "room is already booked")
	r := f.build()

	w := serve(r, http.MethodPost, "/api/v1/offerings", createOfferingBody)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.Equal(t, "ROOM", env.Meta["dimension"])
}

func TestOfferingErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{appErrors.Clone(appErrors.ErrNotFound, "offering not found"), http.StatusNotFound},
		{appErrors.Clone(appErrors.ErrInvalidState, "offering runs until 2025-03-16"), http.StatusConflict},
		{appErrors.Clone(appErrors.ErrCapacityExceeded, "too many"), http.StatusUnprocessableEntity},
		{errors.New("db down"), http.StatusInternalServerError},
		{appErrors.Wrap(appErrors.Wrap(errors.New("invalid input syntax for type uuid"), appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed identifier"),
			appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		f := newRouterFixture()
		f.offerings.err = tc.err
		w := serve(f.build(), http.MethodPost, "/api/v1/offerings/off-1/finalize", "")
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}
}

func TestSessionsReportCacheHit(t *testing.T) {
	f := newRouterFixture()
	f.hit = true
	w := serve(f.build(), http.MethodGet, "/api/v1/offerings/off-1/sessions", "")

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, string(env.Data), `"2025-03-03"`)
}

func TestGradingRoutes(t *testing.T) {
	f := newRouterFixture()
	r := f.build()

	w := serve(r, http.MethodPost, "/api/v1/offerings/off-1/graded-items", `{"kind":"QUIZ","title":"Quiz 1","full_mark":40}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"offering_id":"off-1"`)

	w = serve(r, http.MethodGet, "/api/v1/offerings/off-1/graded-items", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPut, "/api/v1/graded-items/quiz", `{"title":"Quiz","full_mark":50}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"full_mark":50`)

	w = serve(r, http.MethodPut, "/api/v1/graded-items/quiz/achievements", `{"learner_id":"ana","achieved_mark":35}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"achieved_mark":35`)

	w = serve(r, http.MethodPost, "/api/v1/graded-items/quiz/submissions", `{"learner_id":"ana","correct":2,"total":3}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"achieved_mark":27`)

	w = serve(r, http.MethodDelete, "/api/v1/graded-items/quiz", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "quiz", f.items.deleted)
}

func TestEnrollmentRoutes(t *testing.T) {
	f := newRouterFixture()
	r := f.build()

	w := serve(r, http.MethodPost, "/api/v1/offerings/off-1/enrollments", `{"learner_id":"cy"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"learner_id":"cy"`)

	w = serve(r, http.MethodGet, "/api/v1/offerings/off-1/enrollments", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPost, "/api/v1/enrollments/e1/drop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"DROPPED"`)

	w = serve(r, http.MethodGet, "/api/v1/offerings/off-1/learners/ana/standing", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"assignments_percent":50`)
}

func TestEnrollFullOffering(t *testing.T) {
	f := newRouterFixture()
	f.enrollments.err = appErrors.Clone(appErrors.ErrCapacityExceeded, "offering is full (2 seats)")

	w := serve(f.build(), http.MethodPost, "/api/v1/offerings/off-1/enrollments", `{"learner_id":"cy"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CAPACITY_EXCEEDED", decode(t, w).Error.Code)
}

func TestAttendanceRoutes(t *testing.T) {
	f := newRouterFixture()
	r := f.build()

	w := serve(r, http.MethodPost, "/api/v1/offerings/off-1/attendance", `{"date":"2025-03-03","entries":[{"enrollment_id":"e1","present":false}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"present":1`)
	require.Len(t, f.attendance.recorded.Entries, 1)
	assert.False(t, *f.attendance.recorded.Entries[0].Present)

	w = serve(r, http.MethodGet, "/api/v1/offerings/off-1/attendance", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"date":"2025-03-03"`)

	w = serve(r, http.MethodGet, "/api/v1/offerings/off-1/absence-rates", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"absence_rate":33`)

	w = serve(r, http.MethodGet, "/api/v1/offerings/off-1/learners/ana/absences", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"absent_dates":["2025-03-06"]`)

	w = serve(r, http.MethodGet, "/api/v1/offerings/off-1/learners/zed/absences", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodPost, "/api/v1/offerings/off-1/attendance", `{"date":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMaintenanceRoutes(t *testing.T) {
	f := newRouterFixture()
	r := f.build()

	w := serve(r, http.MethodPost, "/api/v1/maintenance/recompute", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, f.maintenance.req.OfferingIDs)

	w = serve(r, http.MethodPost, "/api/v1/maintenance/recompute", `{"offering_ids":["off-1"]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"off-1"}, f.maintenance.req.OfferingIDs)

	w = serve(r, http.MethodGet, "/api/v1/maintenance/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processed":3`)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	f := newRouterFixture()
	r := f.build()

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "").Code)

	w := serve(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")

	f.db = pingStub{err: errors.New("connection refused")}
	assert.Equal(t, http.StatusServiceUnavailable, serve(f.build(), http.MethodGet, "/ready", "").Code)
}
