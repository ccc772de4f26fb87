package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// ClassRepository manages persistence for class offerings. It is also the
// capacity ledger: ReserveSeat and ReleaseSeat are the only code paths that
// mutate seats_available, and they only run inside a registrar transaction.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns class offerings matching filter criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	base := "FROM classes c JOIN users u ON u.id = c.teacher_id WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Period > 0 {
		conditions = append(conditions, fmt.Sprintf("c.period = $%d", len(args)+1))
		args = append(args, filter.Period)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d)", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "c.name",
		"period":     "c.period",
		"created_at": "c.created_at",
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "c.period, c.name"
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
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.name, c.description, c.teacher_id, c.period, c.total_capacity, c.seats_available, c.created_at, c.updated_at, u.full_name AS teacher_name %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, orderBy, order, size, offset)
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class offering by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassOffering, error) {
	const query = `SELECT id, name, description, teacher_id, period, total_capacity, seats_available, created_at, updated_at FROM classes WHERE id = $1`
	var class models.ClassOffering
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDetailByID returns a class offering joined with the teacher name.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT c.id, c.name, c.description, c.teacher_id, c.period, c.total_capacity, c.seats_available, c.created_at, c.updated_at, u.full_name AS teacher_name FROM classes c JOIN users u ON u.id = c.teacher_id WHERE c.id = $1`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsTeacherPeriod checks whether the teacher already offers a class in
// the given period.
func (r *ClassRepository) ExistsTeacherPeriod(ctx context.Context, teacherID string, period int) (bool, error) {
	const query = `SELECT 1 FROM classes WHERE teacher_id = $1 AND period = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, period); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher period: %w", err)
	}
	return true, nil
}

// ListOpenForStudent returns offerings with free seats in periods the
// student is not already enrolled in. Advisory: the authoritative capacity
// check happens at accept time.
func (r *ClassRepository) ListOpenForStudent(ctx context.Context, studentID string) ([]models.ClassDetail, error) {
	const query = `SELECT c.id, c.name, c.description, c.teacher_id, c.period, c.total_capacity, c.seats_available, c.created_at, c.updated_at, u.full_name AS teacher_name
FROM classes c
JOIN users u ON u.id = c.teacher_id
WHERE c.seats_available > 0
AND c.period NOT IN (
	SELECT c2.period FROM enrollments e
	JOIN classes c2 ON c2.id = e.class_id
	WHERE e.student_id = $1
)
ORDER BY c.period ASC, c.name ASC`
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, studentID); err != nil {
		return nil, fmt.Errorf("list open classes: %w", err)
	}
	return classes, nil
}

// Create persists a class offering with a full complement of open seats.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassOffering) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	class.SeatsAvailable = class.TotalCapacity

	const query = `INSERT INTO classes (id, name, description, teacher_id, period, total_capacity, seats_available, created_at, updated_at) VALUES (:id, :name, :description, :teacher_id, :period, :total_capacity, :seats_available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrTeacherBooked
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// DeleteIfUnused removes a class offering unless it still has enrollments or
// pending requests. The checks and the delete share one transaction so a
// concurrent accept cannot slip an enrollment in between.
func (r *ClassRepository) DeleteIfUnused(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin class delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.GetContext(ctx, &exists, `SELECT 1 FROM classes WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock class: %w", err)
	}

	var inUse int
	const usageQuery = `SELECT (SELECT COUNT(*) FROM enrollments WHERE class_id = $1) + (SELECT COUNT(*) FROM enrollment_requests WHERE class_id = $1)`
	if err = tx.GetContext(ctx, &inUse, usageQuery, id); err != nil {
		return fmt.Errorf("count class usage: %w", err)
	}
	if inUse > 0 {
		err = appErrors.ErrClassInUse
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit class delete: %w", err)
	}
	return nil
}

// ReserveSeat atomically claims one seat inside the caller's transaction.
// The conditional update is what closes the oversell race: of two
// concurrent accepts against the last seat, exactly one observes
// seats_available > 0.
func (r *ClassRepository) ReserveSeat(ctx context.Context, ext sqlx.ExtContext, classID string) error {
	const query = `UPDATE classes SET seats_available = seats_available - 1, updated_at = $2 WHERE id = $1 AND seats_available > 0`
	res, err := ext.ExecContext(ctx, query, classID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reserve seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve seat result: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrNoCapacity
	}
	return nil
}

// ReleaseSeat returns one seat inside the caller's transaction, capped at
// total_capacity.
func (r *ClassRepository) ReleaseSeat(ctx context.Context, ext sqlx.ExtContext, classID string) error {
	const query = `UPDATE classes SET seats_available = seats_available + 1, updated_at = $2 WHERE id = $1 AND seats_available < total_capacity`
	if _, err := ext.ExecContext(ctx, query, classID, time.Now().UTC()); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}
