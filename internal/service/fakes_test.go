package service

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studycenter-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type fakeLocker struct {
	mu   sync.Mutex
	keys [][]string
	err  error
	// acquired runs once the lock is granted, standing in for a writer that committed first.
	acquired func()
}

func (f *fakeLocker) Acquire(ctx context.Context, exec sqlx.ExtContext, keys ...string) error {
	f.mu.Lock()
	f.keys = append(f.keys, keys)
	err, acquired := f.err, f.acquired
	f.mu.Unlock()
	if err == nil && acquired != nil {
		acquired()
	}
	return err
}

func date(raw string) time.Time {
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		panic(err)
	}
	return t
}

func commitment(start, end string, startTime, endTime models.ClockTime, days ...time.Weekday) models.TimeCommitment {
	return models.TimeCommitment{
		StartDate: date(start),
		EndDate:   date(end),
		Weekdays:  models.NewWeekdaySet(days...),
		StartTime: startTime,
		EndTime:   endTime,
	}
}

func strPtr(v string) *string { return &v }

type fakeOfferingRepo struct {
	mu        sync.Mutex
	offerings map[string]models.CourseOffering
	err       error
	// reads records the executor of every read, nil meaning the pool.
	reads []sqlx.ExtContext
}

func newFakeOfferingRepo(offerings ...models.CourseOffering) *fakeOfferingRepo {
	repo := &fakeOfferingRepo{offerings: make(map[string]models.CourseOffering)}
	for _, o := range offerings {
		repo.offerings[o.ID] = o
	}
	return repo
}

func (f *fakeOfferingRepo) sorted() []models.CourseOffering {
	out := make([]models.CourseOffering, 0, len(f.offerings))
	for _, o := range f.offerings {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeOfferingRepo) poolReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, exec := range f.reads {
		if exec == nil {
			n++
		}
	}
	return n
}

func (f *fakeOfferingRepo) FindRoomOverlaps(ctx context.Context, exec sqlx.ExtContext, roomID string, c models.TimeCommitment, excludeID string) ([]models.CourseOffering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, exec)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.CourseOffering
	for _, o := range f.sorted() {
		if o.RoomID == roomID && o.ID != excludeID && o.DateRangeOverlaps(c) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOfferingRepo) FindInstructorOverlaps(ctx context.Context, exec sqlx.ExtContext, instructorID string, c models.TimeCommitment, excludeID string) ([]models.CourseOffering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, exec)
	var out []models.CourseOffering
	for _, o := range f.sorted() {
		if o.HasInstructor() && *o.InstructorID == instructorID && o.ID != excludeID && o.DateRangeOverlaps(c) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOfferingRepo) CountInstructorLoad(ctx context.Context, exec sqlx.ExtContext, instructorID string, c models.TimeCommitment, excludeID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, exec)
	count := 0
	for _, o := range f.offerings {
		if o.HasInstructor() && *o.InstructorID == instructorID && o.ID != excludeID && !o.Completed && o.DateRangeOverlaps(c) {
			count++
		}
	}
	return count, nil
}

func (f *fakeOfferingRepo) List(ctx context.Context, filter models.OfferingFilter) ([]models.CourseOffering, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CourseOffering
	for _, o := range f.sorted() {
		if filter.RoomID != "" && o.RoomID != filter.RoomID {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (f *fakeOfferingRepo) ListIDs(ctx context.Context, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ids) > 0 {
		var out []string
		for _, id := range ids {
			if _, ok := f.offerings[id]; ok {
				out = append(out, id)
			}
		}
		return out, nil
	}
	var out []string
	for _, o := range f.sorted() {
		out = append(out, o.ID)
	}
	return out, nil
}

func (f *fakeOfferingRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseOffering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, exec)
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.offerings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &o, nil
}

func (f *fakeOfferingRepo) Create(ctx context.Context, exec sqlx.ExtContext, o *models.CourseOffering) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.ID == "" {
		o.ID = "new-offering"
	}
	f.offerings[o.ID] = *o
	return nil
}

func (f *fakeOfferingRepo) UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, o *models.CourseOffering) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerings[o.ID].Completed {
		return sql.ErrNoRows
	}
	f.offerings[o.ID] = *o
	return nil
}

func (f *fakeOfferingRepo) UpdateTotalMark(ctx context.Context, exec sqlx.ExtContext, id string, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.offerings[id]
	o.TotalMark = total
	f.offerings[id] = o
	return nil
}

func (f *fakeOfferingRepo) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.offerings[id]
	o.Completed = true
	f.offerings[id] = o
	return nil
}

func (f *fakeOfferingRepo) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.offerings, id)
	return nil
}

type fakeRoomRepo map[string]models.Room

func (f fakeRoomRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Room, error) {
	r, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

type fakeInstructorRepo map[string]models.Instructor

func (f fakeInstructorRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Instructor, error) {
	i, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &i, nil
}

type fakeSubjectRepo map[string]models.Subject

func (f fakeSubjectRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	s, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

type fakeEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	updates     int
	countExecs  []sqlx.ExtContext
}

func newFakeEnrollmentRepo(enrollments ...models.Enrollment) *fakeEnrollmentRepo {
	repo := &fakeEnrollmentRepo{enrollments: make(map[string]models.Enrollment)}
	for _, e := range enrollments {
		repo.enrollments[e.ID] = e
	}
	return repo
}

func (f *fakeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (f *fakeEnrollmentRepo) FindByOfferingAndLearner(ctx context.Context, exec sqlx.ExtContext, offeringID, learnerID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *models.Enrollment
	for _, e := range f.enrollments {
		if e.OfferingID != offeringID || e.LearnerID != learnerID {
			continue
		}
		e := e
		if found == nil || (found.Dropped() && !e.Dropped()) {
			found = &e
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

func (f *fakeEnrollmentRepo) ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Enrollment
	for _, e := range f.enrollments {
		if e.OfferingID == offeringID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEnrollmentRepo) CountActive(ctx context.Context, exec sqlx.ExtContext, offeringID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countExecs = append(f.countExecs, exec)
	count := 0
	for _, e := range f.enrollments {
		if e.OfferingID == offeringID && !e.Dropped() {
			count++
		}
	}
	return count, nil
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		e.ID = "new-enrollment"
	}
	if e.Status == "" {
		e.Status = models.EnrollmentStatusActive
	}
	f.enrollments[e.ID] = *e
	return nil
}

func (f *fakeEnrollmentRepo) MarkDropped(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.enrollments[id]
	e.Status = models.EnrollmentStatusDropped
	e.DroppedAt = &at
	f.enrollments[id] = e
	return nil
}

func (f *fakeEnrollmentRepo) UpdateStandings(ctx context.Context, exec sqlx.ExtContext, enrollments []models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	for _, e := range enrollments {
		f.enrollments[e.ID] = e
	}
	return nil
}

type fakeGradedItemRepo struct {
	mu    sync.Mutex
	items map[string]models.GradedItem
	seq   int
}

func newFakeGradedItemRepo(items ...models.GradedItem) *fakeGradedItemRepo {
	repo := &fakeGradedItemRepo{items: make(map[string]models.GradedItem)}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (f *fakeGradedItemRepo) FindByID(ctx context.Context, id string) (*models.GradedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (f *fakeGradedItemRepo) ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.GradedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GradedItem
	for _, item := range f.items {
		if item.OfferingID == offeringID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeGradedItemRepo) Create(ctx context.Context, exec sqlx.ExtContext, item *models.GradedItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == "" {
		f.seq++
		item.ID = "item-" + strconv.Itoa(f.seq)
	}
	f.items[item.ID] = *item
	return nil
}

func (f *fakeGradedItemRepo) Update(ctx context.Context, exec sqlx.ExtContext, item *models.GradedItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = *item
	return nil
}

func (f *fakeGradedItemRepo) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

type fakeAchievementRepo struct {
	mu           sync.Mutex
	items        *fakeGradedItemRepo
	achievements map[string]models.Achievement
}

func newFakeAchievementRepo(items *fakeGradedItemRepo, achievements ...models.Achievement) *fakeAchievementRepo {
	repo := &fakeAchievementRepo{items: items, achievements: make(map[string]models.Achievement)}
	for _, a := range achievements {
		repo.achievements[a.GradedItemID+"/"+a.LearnerID] = a
	}
	return repo
}

func (f *fakeAchievementRepo) inOffering(a models.Achievement, offeringID string) bool {
	f.items.mu.Lock()
	defer f.items.mu.Unlock()
	item, ok := f.items.items[a.GradedItemID]
	return ok && item.OfferingID == offeringID
}

func (f *fakeAchievementRepo) ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Achievement
	for _, a := range f.achievements {
		if f.inOffering(a, offeringID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAchievementRepo) ListByLearner(ctx context.Context, offeringID, learnerID string) ([]models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Achievement
	for _, a := range f.achievements {
		if a.LearnerID == learnerID && f.inOffering(a, offeringID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAchievementRepo) Upsert(ctx context.Context, exec sqlx.ExtContext, a *models.Achievement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == "" {
		a.ID = "ach-" + a.GradedItemID + "-" + a.LearnerID
	}
	f.achievements[a.GradedItemID+"/"+a.LearnerID] = *a
	return nil
}

type fakeAttendanceRepo struct {
	mu      sync.Mutex
	records map[string]models.AttendanceRecord
}

func newFakeAttendanceRepo(records ...models.AttendanceRecord) *fakeAttendanceRepo {
	repo := &fakeAttendanceRepo{records: make(map[string]models.AttendanceRecord)}
	for _, r := range records {
		repo.records[r.EnrollmentID+"/"+r.SessionDate.Format(models.DateLayout)] = r
	}
	return repo
}

func (f *fakeAttendanceRepo) Upsert(ctx context.Context, exec sqlx.ExtContext, r *models.AttendanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.EnrollmentID + "/" + r.SessionDate.Format(models.DateLayout)
	if existing, ok := f.records[key]; ok {
		r.ID = existing.ID
	} else if r.ID == "" {
		r.ID = "att-" + key
	}
	f.records[key] = *r
	return nil
}

func (f *fakeAttendanceRepo) ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AttendanceRecord
	for _, r := range f.records {
		if r.OfferingID == offeringID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SessionDate.Equal(out[j].SessionDate) {
			return out[i].SessionDate.Before(out[j].SessionDate)
		}
		return out[i].EnrollmentID < out[j].EnrollmentID
	})
	return out, nil
}
