package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/studycenter-api/internal/models"
)

var offeringColumns = []string{
	"id", "subject_id", "room_id", "instructor_id", "title", "capacity",
	"start_date", "end_date", "weekdays", "start_minute", "end_minute",
	"contact_minutes", "total_mark", "completed", "created_at", "updated_at",
}

// OfferingRepository provides persistence for course offerings.
type OfferingRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewOfferingRepository creates a new offering repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *OfferingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns offerings with optional filtering and pagination.
func (r *OfferingRepository) List(ctx context.Context, filter models.OfferingFilter) ([]models.CourseOffering, int, error) {
	where := squirrel.Eq{}
	if filter.SubjectID != "" {
		where["subject_id"] = filter.SubjectID
	}
	if filter.RoomID != "" {
		where["room_id"] = filter.RoomID
	}
	if filter.InstructorID != "" {
		where["instructor_id"] = filter.InstructorID
	}
	if filter.Completed != nil {
		where["completed"] = *filter.Completed
	}

	allowedSorts := map[string]bool{
		"start_date": true,
		"end_date":   true,
		"title":      true,
		"created_at": true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := r.sb.Select(offeringColumns...).From("course_offerings").
		OrderBy(fmt.Sprintf("%s %s", sortBy, order), "id ASC").
		Limit(uint64(size)).
		Offset(uint64((page - 1) * size))
	countQuery := r.sb.Select("COUNT(*)").From("course_offerings")
	if len(where) > 0 {
		query = query.Where(where)
		countQuery = countQuery.Where(where)
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list offerings query: %w", err)
	}
	var offerings []models.CourseOffering
	if err := r.db.SelectContext(ctx, &offerings, sqlStr, args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", mapQueryError(err))
	}

	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count offerings query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", mapQueryError(err))
	}
	return offerings, total, nil
}

// FindByID loads an offering by id. Pass the locking transaction when the read must observe
// state serialised by an advisory lock.
func (r *OfferingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseOffering, error) {
	sqlStr, args, err := r.sb.Select(offeringColumns...).From("course_offerings").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find offering query: %w", err)
	}
	var offering models.CourseOffering
	if err := sqlx.GetContext(ctx, r.exec(exec), &offering, sqlStr, args...); err != nil {
		return nil, mapQueryError(err)
	}
	return &offering, nil
}

// ListIDs returns offering identifiers in creation order. A non-empty ids list restricts the result
// to offerings that still exist.
func (r *OfferingRepository) ListIDs(ctx context.Context, ids []string) ([]string, error) {
	query := `SELECT id FROM course_offerings ORDER BY created_at ASC`
	args := []interface{}{}
	if len(ids) > 0 {
		query = `SELECT id FROM course_offerings WHERE id = ANY($1) ORDER BY created_at ASC`
		args = append(args, pq.Array(ids))
	}
	var out []string
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list offering ids: %w", mapQueryError(err))
	}
	return out, nil
}

// FindRoomOverlaps returns offerings in the room whose stored pattern may overlap the commitment.
func (r *OfferingRepository) FindRoomOverlaps(ctx context.Context, exec sqlx.ExtContext, roomID string, commitment models.TimeCommitment, excludeID string) ([]models.CourseOffering, error) {
	return r.findOverlaps(ctx, exec, "room_id", roomID, commitment, excludeID)
}

// FindInstructorOverlaps returns offerings taught by the instructor whose pattern may overlap the commitment.
func (r *OfferingRepository) FindInstructorOverlaps(ctx context.Context, exec sqlx.ExtContext, instructorID string, commitment models.TimeCommitment, excludeID string) ([]models.CourseOffering, error) {
	return r.findOverlaps(ctx, exec, "instructor_id", instructorID, commitment, excludeID)
}

func (r *OfferingRepository) findOverlaps(ctx context.Context, exec sqlx.ExtContext, column, value string, c models.TimeCommitment, excludeID string) ([]models.CourseOffering, error) {
	query := r.sb.Select(offeringColumns...).From("course_offerings").
		Where(squirrel.Eq{column: value}).
		Where(dateRangeOverlap(c)).
		Where("(weekdays & ?) <> 0", int(c.Weekdays)).
		Where(squirrel.Lt{"start_minute": int(c.EndTime)}).
		Where(squirrel.Gt{"end_minute": int(c.StartTime)}).
		OrderBy("start_date ASC", "id ASC")
	if excludeID != "" {
		query = query.Where(squirrel.NotEq{"id": excludeID})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build overlap query: %w", err)
	}
	var offerings []models.CourseOffering
	if err := sqlx.SelectContext(ctx, r.exec(exec), &offerings, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("find %s overlaps: %w", strings.TrimSuffix(column, "_id"), mapQueryError(err))
	}
	return offerings, nil
}

// CountInstructorLoad counts the instructor's running offerings whose date range overlaps the commitment.
func (r *OfferingRepository) CountInstructorLoad(ctx context.Context, exec sqlx.ExtContext, instructorID string, commitment models.TimeCommitment, excludeID string) (int, error) {
	query := r.sb.Select("COUNT(*)").From("course_offerings").
		Where(squirrel.Eq{"instructor_id": instructorID, "completed": false}).
		Where(dateRangeOverlap(commitment))
	if excludeID != "" {
		query = query.Where(squirrel.NotEq{"id": excludeID})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build instructor load query: %w", err)
	}
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, sqlStr, args...); err != nil {
		return 0, fmt.Errorf("count instructor load: %w", mapQueryError(err))
	}
	return count, nil
}

// Both ranges carry inclusive end dates.
func dateRangeOverlap(c models.TimeCommitment) squirrel.And {
	return squirrel.And{
		squirrel.LtOrEq{"start_date": c.EndDate},
		squirrel.GtOrEq{"end_date": c.StartDate},
	}
}

// Create stores a new offering.
func (r *OfferingRepository) Create(ctx context.Context, exec sqlx.ExtContext, offering *models.CourseOffering) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if offering.CreatedAt.IsZero() {
		offering.CreatedAt = now
	}
	offering.UpdatedAt = now

	const query = `INSERT INTO course_offerings (id, subject_id, room_id, instructor_id, title, capacity, start_date, end_date, weekdays, start_minute, end_minute, contact_minutes, total_mark, completed, created_at, updated_at)
VALUES (:id, :subject_id, :room_id, :instructor_id, :title, :capacity, :start_date, :end_date, :weekdays, :start_minute, :end_minute, :contact_minutes, :total_mark, :completed, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, offering); err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

// UpdateSchedule rewrites placement, staffing and capacity of an offering.
func (r *OfferingRepository) UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, offering *models.CourseOffering) error {
	offering.UpdatedAt = time.Now().UTC()
	const query = `UPDATE course_offerings SET room_id = :room_id, instructor_id = :instructor_id, title = :title, capacity = :capacity,
start_date = :start_date, end_date = :end_date, weekdays = :weekdays, start_minute = :start_minute, end_minute = :end_minute,
contact_minutes = :contact_minutes, updated_at = :updated_at WHERE id = :id AND completed = FALSE`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, offering)
	if err != nil {
		return fmt.Errorf("update offering schedule: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateTotalMark stores the derived total mark.
func (r *OfferingRepository) UpdateTotalMark(ctx context.Context, exec sqlx.ExtContext, id string, totalMark int) error {
	const query = `UPDATE course_offerings SET total_mark = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, totalMark, time.Now().UTC()); err != nil {
		return fmt.Errorf("update offering total mark: %w", err)
	}
	return nil
}

// MarkCompleted flags the offering as completed.
func (r *OfferingRepository) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE course_offerings SET completed = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("complete offering: %w", err)
	}
	return nil
}

// Delete removes an offering; enrollments and graded work cascade.
func (r *OfferingRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM course_offerings WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	return nil
}
