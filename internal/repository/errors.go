package repository

import (
	stderrors "errors"

	"github.com/jwalitptl/referral-api/pkg/errors"
)

// ToAppError classifies a repository error for the HTTP layer. AppErrors pass through.
func ToAppError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, ErrNotFound):
		return errors.NotFound(resource, err)
	case stderrors.Is(err, ErrDuplicate):
		return errors.Conflict(resource+" already exists", err)
	case stderrors.Is(err, ErrForeignKey):
		return errors.Validation(resource + " references a record that does not exist")
	case stderrors.Is(err, ErrTooLong):
		return errors.Validation(resource + " has a value that is too long")
	}
	return errors.Internal(err)
}
