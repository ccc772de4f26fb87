package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// RequestRepository stores pending add/drop intents. A request row exists
// only while pending; accept and decline delete it.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Insert persists a pending request. The unique (kind, class_id,
// student_id) constraint makes the duplicate check and the insert one
// atomic unit; a violation surfaces as ErrDuplicateRequest.
func (r *RequestRepository) Insert(ctx context.Context, ext sqlx.ExtContext, request *models.EnrollmentRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_requests (id, kind, class_id, student_id, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := ext.ExecContext(ctx, query, request.ID, request.Kind, request.ClassID, request.StudentID, request.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrDuplicateRequest
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// FindByIDForUpdate loads a request under a row lock so that concurrent
// accepts of the same id serialize; the loser observes the deleted row as
// sql.ErrNoRows.
func (r *RequestRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.EnrollmentRequest, error) {
	const query = `SELECT id, kind, class_id, student_id, created_at FROM enrollment_requests WHERE id = $1 FOR UPDATE`
	var request models.EnrollmentRequest
	if err := tx.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ListPending returns pending requests of a kind in insertion order, joined
// with display info for the admin view.
func (r *RequestRepository) ListPending(ctx context.Context, kind models.RequestKind) ([]models.RequestDetail, error) {
	const query = `SELECT r.id, r.kind, r.class_id, r.student_id, r.created_at, u.full_name AS student_name, c.name AS class_name, c.period
FROM enrollment_requests r
JOIN users u ON u.id = r.student_id
JOIN classes c ON c.id = r.class_id
WHERE r.kind = $1
ORDER BY r.created_at ASC`
	var requests []models.RequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, kind); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// Delete removes a request inside the caller's transaction. Zero rows means
// another transaction already settled it.
func (r *RequestRepository) Delete(ctx context.Context, ext sqlx.ExtContext, id string) error {
	res, err := ext.ExecContext(ctx, `DELETE FROM enrollment_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete request result: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	return nil
}
