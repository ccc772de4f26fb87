package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// EnrollmentRepository handles persistence of confirmed seats. Mutations
// take an sqlx.ExtContext so registrar transactions can scope them together
// with the capacity ledger.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts a confirmed seat. The unique (class_id, student_id)
// constraint turns a stale accept into ErrAlreadyEnrolled.
func (r *EnrollmentRepository) Create(ctx context.Context, ext sqlx.ExtContext, classID, studentID string) error {
	const query = `INSERT INTO enrollments (id, class_id, student_id, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := ext.ExecContext(ctx, query, uuid.NewString(), classID, studentID, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrAlreadyEnrolled
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete removes a confirmed seat, failing with ErrNotEnrolled when the pair
// is absent.
func (r *EnrollmentRepository) Delete(ctx context.Context, ext sqlx.ExtContext, classID, studentID string) error {
	const query = `DELETE FROM enrollments WHERE class_id = $1 AND student_id = $2`
	res, err := ext.ExecContext(ctx, query, classID, studentID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment result: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrNotEnrolled
	}
	return nil
}

// Exists reports whether the student holds a confirmed seat in the class,
// read through ext so submit transactions see a locked-consistent view.
func (r *EnrollmentRepository) Exists(ctx context.Context, ext sqlx.ExtContext, classID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE class_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, ext, &exists, query, classID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// EnrolledPeriods returns the periods the student currently occupies,
// read through ext so accept transactions see a locked-consistent view.
func (r *EnrollmentRepository) EnrolledPeriods(ctx context.Context, ext sqlx.ExtContext, studentID string) ([]int, error) {
	const query = `SELECT c.period FROM enrollments e JOIN classes c ON c.id = e.class_id WHERE e.student_id = $1 ORDER BY c.period`
	rows, err := ext.QueryxContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled periods: %w", err)
	}
	defer rows.Close()

	var periods []int
	for rows.Next() {
		var period int
		if err := rows.Scan(&period); err != nil {
			return nil, fmt.Errorf("scan enrolled period: %w", err)
		}
		periods = append(periods, period)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrolled periods: %w", err)
	}
	return periods, nil
}

// StudentPeriods is the non-transactional read used by the schedule index.
func (r *EnrollmentRepository) StudentPeriods(ctx context.Context, studentID string) ([]int, error) {
	return r.EnrolledPeriods(ctx, r.db, studentID)
}

// CountForClass reports confirmed seats for a class. Used by capacity
// audits and tests, not on the accept path; the ledger is authoritative.
func (r *EnrollmentRepository) CountForClass(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE class_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// Roster returns enrolled students with display info for exports.
func (r *EnrollmentRepository) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.student_id, u.username, u.full_name AS student_name, e.created_at AS enrolled_at
FROM enrollments e
JOIN users u ON u.id = e.student_id
WHERE e.class_id = $1
ORDER BY u.full_name ASC`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return entries, nil
}
