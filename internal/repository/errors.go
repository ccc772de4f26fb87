package repository

import (
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// Postgres SQLSTATE codes the registrar cares about.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

// translateContention converts store-level serialization aborts into the
// retryable contention error; everything else passes through untouched.
func translateContention(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return appErrors.Wrap(err, appErrors.ErrContention.Code, appErrors.ErrContention.Status, appErrors.ErrContention.Message)
		}
	}
	return err
}
