package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// RegistrarRepository owns the transactional transitions of the enrollment
// workflow. Every method runs one serializable transaction: either all of
// its writes land or none do. Serialization aborts from the store come back
// as the retryable CONTENTION error; the repository never retries itself.
type RegistrarRepository struct {
	db          *sqlx.DB
	classes     *ClassRepository
	enrollments *EnrollmentRepository
	requests    *RequestRepository
}

// NewRegistrarRepository constructs the repository.
func NewRegistrarRepository(db *sqlx.DB, classes *ClassRepository, enrollments *EnrollmentRepository, requests *RequestRepository) *RegistrarRepository {
	return &RegistrarRepository{db: db, classes: classes, enrollments: enrollments, requests: requests}
}

// AcceptOutcome describes what an accepted request changed.
type AcceptOutcome struct {
	Request models.EnrollmentRequest
}

func (r *RegistrarRepository) begin(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin registrar transaction: %w", err)
	}
	return tx, nil
}

// SubmitAdd validates and stores a pending add intent in one transaction.
// The class row is locked so the advisory seat check and the period check
// read a consistent snapshot; the unique constraint on the request table
// closes the duplicate-submission race.
func (r *RegistrarRepository) SubmitAdd(ctx context.Context, classID, studentID string) (request *models.EnrollmentRequest, err error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = translateContention(err)
		}
	}()

	var class models.ClassOffering
	if err = tx.GetContext(ctx, &class, `SELECT id, name, description, teacher_id, period, total_capacity, seats_available, created_at, updated_at FROM classes WHERE id = $1 FOR SHARE`, classID); err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, err
	}

	// Advisory only: several students may queue against the last seat.
	// The authoritative reservation happens at accept time.
	if class.SeatsAvailable <= 0 {
		err = appErrors.ErrNoCapacity
		return nil, err
	}

	var periods []int
	if periods, err = r.enrollments.EnrolledPeriods(ctx, tx, studentID); err != nil {
		return nil, err
	}
	for _, period := range periods {
		if period == class.Period {
			err = appErrors.ErrPeriodConflict
			return nil, err
		}
	}

	request = &models.EnrollmentRequest{Kind: models.RequestKindAdd, ClassID: classID, StudentID: studentID}
	if err = r.requests.Insert(ctx, tx, request); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit add: %w", err)
	}
	return request, nil
}

// SubmitDrop validates and stores a pending drop intent in one transaction.
func (r *RegistrarRepository) SubmitDrop(ctx context.Context, classID, studentID string) (request *models.EnrollmentRequest, err error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = translateContention(err)
		}
	}()

	var exists int
	if err = tx.GetContext(ctx, &exists, `SELECT 1 FROM classes WHERE id = $1 LIMIT 1`, classID); err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, err
	}

	var enrolled bool
	if enrolled, err = r.enrollments.Exists(ctx, tx, classID, studentID); err != nil {
		return nil, err
	}
	if !enrolled {
		err = appErrors.ErrNotEnrolled
		return nil, err
	}

	request = &models.EnrollmentRequest{Kind: models.RequestKindDrop, ClassID: classID, StudentID: studentID}
	if err = r.requests.Insert(ctx, tx, request); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit drop: %w", err)
	}
	return request, nil
}

// Accept settles a pending request. The request row is loaded under a row
// lock, so a second accept of the same id serializes behind the first and
// observes the deleted row as RequestNotFound rather than applying twice.
//
// Add: reserve a seat on the class (the conditional decrement is the
// authoritative capacity check), re-verify schedule exclusivity under the
// same transaction, create the enrollment, delete the request.
// Drop: delete the enrollment, release the seat, delete the request.
func (r *RegistrarRepository) Accept(ctx context.Context, requestID string) (outcome *AcceptOutcome, err error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = translateContention(err)
		}
	}()

	request, err := r.requests.FindByIDForUpdate(ctx, tx, requestID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, err
	}

	switch request.Kind {
	case models.RequestKindAdd:
		if err = r.classes.ReserveSeat(ctx, tx, request.ClassID); err != nil {
			return nil, err
		}
		var class models.ClassOffering
		if err = tx.GetContext(ctx, &class, `SELECT id, name, description, teacher_id, period, total_capacity, seats_available, created_at, updated_at FROM classes WHERE id = $1`, request.ClassID); err != nil {
			return nil, err
		}
		var periods []int
		if periods, err = r.enrollments.EnrolledPeriods(ctx, tx, request.StudentID); err != nil {
			return nil, err
		}
		for _, period := range periods {
			if period == class.Period {
				err = appErrors.ErrPeriodConflict
				return nil, err
			}
		}
		if err = r.enrollments.Create(ctx, tx, request.ClassID, request.StudentID); err != nil {
			return nil, err
		}
	case models.RequestKindDrop:
		if err = r.enrollments.Delete(ctx, tx, request.ClassID, request.StudentID); err != nil {
			return nil, err
		}
		if err = r.classes.ReleaseSeat(ctx, tx, request.ClassID); err != nil {
			return nil, err
		}
	default:
		err = fmt.Errorf("unknown request kind %q", request.Kind)
		return nil, err
	}

	if err = r.requests.Delete(ctx, tx, request.ID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accept: %w", err)
	}
	return &AcceptOutcome{Request: *request}, nil
}

// Decline removes a pending request with no other side effect, freeing the
// pair so the student may resubmit. Declining an already-settled request
// yields RequestNotFound.
func (r *RegistrarRepository) Decline(ctx context.Context, requestID string) (request *models.EnrollmentRequest, err error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = translateContention(err)
		}
	}()

	request, err = r.requests.FindByIDForUpdate(ctx, tx, requestID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, err
	}

	if err = r.requests.Delete(ctx, tx, request.ID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decline: %w", err)
	}
	return request, nil
}
