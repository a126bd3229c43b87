package service

import (
	"context"
	"errors"

	dErrors "neighborly/pkg/domain-errors"
	"neighborly/pkg/platform/sentinel"
)

// translate maps store sentinels onto domain codes. Errors that already carry a domain
// code pass through untouched so validation messages survive.
func translate(err error, subject string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, subject+" not found")
	case errors.Is(err, sentinel.ErrNotAllowed):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "only the author may modify this "+subject)
	case errors.Is(err, sentinel.ErrInvalidState), errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, subject+" is not in a valid state for this operation")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, subject+" operation failed")
	}
}

// ignoreNotFound treats absence as success for idempotent cleanup.
func ignoreNotFound(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	return err
}
