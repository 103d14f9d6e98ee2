package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func offeringRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "subject_id", "room_id", "instructor_id", "title", "capacity",
		"start_date", "end_date", "weekdays", "start_minute", "end_minute",
		"contact_minutes", "total_mark", "completed", "created_at", "updated_at",
	})
}

func TestOfferingRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	rows := offeringRows().AddRow("off-1", "sub-1", "room-1", nil, "Algebra", 20,
		start, start.AddDate(0, 0, 13), 9, 540, 630, 360, 0, false, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_offerings WHERE room_id = $1 ORDER BY title DESC, id ASC LIMIT 10 OFFSET 10")).
		WithArgs("room-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_offerings WHERE room_id = $1")).
		WithArgs("room-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	list, total, err := repo.List(context.Background(), models.OfferingFilter{RoomID: "room-1", Page: 2, PageSize: 10, SortBy: "title", SortOrder: "desc"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, models.NewWeekdaySet(time.Monday, time.Thursday), list[0].Weekdays)
	assert.Equal(t, models.ClockTime(540), list[0].StartTime)
	assert.False(t, list[0].HasInstructor())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryListFallsBackToDefaultSort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM course_offerings ORDER BY start_date ASC, id ASC LIMIT 20 OFFSET 0")).
		WillReturnRows(offeringRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_offerings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.OfferingFilter{SortBy: "id; DROP TABLE x"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryFindRoomOverlapsExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	commitment := models.TimeCommitment{
		StartDate: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
		Weekdays:  models.NewWeekdaySet(time.Monday),
		StartTime: 540,
		EndTime:   630,
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_offerings WHERE room_id = $1 AND (start_date <= $2 AND end_date >= $3) AND (weekdays & $4) <> 0 AND start_minute < $5 AND end_minute > $6 AND id <> $7")).
		WithArgs("room-1", sqlmock.AnyArg(), sqlmock.AnyArg(), 2, 630, 540, "off-self").
		WillReturnRows(offeringRows())

	overlaps, err := repo.FindRoomOverlaps(context.Background(), nil, "room-1", commitment, "off-self")
	require.NoError(t, err)
	assert.Empty(t, overlaps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryCountInstructorLoad(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	commitment := models.TimeCommitment{
		StartDate: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_offerings WHERE completed = $1 AND instructor_id = $2 AND (start_date <= $3 AND end_date >= $4)")).
		WithArgs(false, "ins-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountInstructorLoad(context.Background(), nil, "ins-1", commitment, "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_offerings")).WillReturnResult(sqlmock.NewResult(1, 1))

	offering := &models.CourseOffering{SubjectID: "sub-1", RoomID: "room-1", Title: "Algebra", Capacity: 10}
	require.NoError(t, repo.Create(context.Background(), nil, offering))
	assert.NotEmpty(t, offering.ID)
	assert.False(t, offering.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryWritesUseTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_offerings SET total_mark = $2")).
		WithArgs("off-1", 100, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_offerings SET completed = TRUE")).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateTotalMark(context.Background(), tx, "off-1", 100))
	require.NoError(t, repo.MarkCompleted(context.Background(), tx, "off-1"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryListIDsRestrictsToGivenIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM course_offerings WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("off-2"))

	ids, err := repo.ListIDs(context.Background(), []string{"off-2", "off-gone"})
	require.NoError(t, err)
	assert.Equal(t, []string{"off-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryReadsRideTheLockingTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	commitment := models.TimeCommitment{StartDate: start, EndDate: start.AddDate(0, 0, 13), Weekdays: models.NewWeekdaySet(time.Monday), StartTime: 540, EndTime: 630}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("offering:off-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_offerings WHERE id = $1")).
		WithArgs("off-1").
		WillReturnRows(offeringRows().AddRow("off-1", "sub-1", "room-1", "ins-1", "Algebra", 20,
			start, start.AddDate(0, 0, 13), 2, 540, 630, 180, 0, true, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_offerings WHERE instructor_id = $1")).
		WillReturnRows(offeringRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_offerings WHERE completed = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, NewLockRepository().Acquire(ctx, tx, "offering:off-1"))
	offering, err := repo.FindByID(ctx, tx, "off-1")
	require.NoError(t, err)
	assert.True(t, offering.Completed)
	_, err = repo.FindInstructorOverlaps(ctx, tx, "ins-1", commitment, "off-1")
	require.NoError(t, err)
	_, err = repo.CountInstructorLoad(ctx, tx, "ins-1", commitment, "off-1")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryUpdateScheduleSkipsCompleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("AND completed = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSchedule(context.Background(), nil, &models.CourseOffering{ID: "off-1", RoomID: "room-1", Capacity: 10})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryMalformedIDIsValidationError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM course_offerings WHERE id = $1")).
		WithArgs("not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM course_offerings WHERE id = ANY($1)")).
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err := repo.FindByID(context.Background(), nil, "not-a-uuid")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = repo.ListIDs(context.Background(), []string{"not-a-uuid"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
