package auth

import (
	"errors"

	"github.com/pmhub/pmhub/internal/permission"
)

var (
	// ErrForbidden is returned when the caller lacks a required permission.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated is returned when a check is made without a caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidOldPassword is returned when the provided old password does not match the user's current password.
	ErrInvalidOldPassword = errors.New("invalid old password")

	// ErrUserAccountDisabled is returned when attempting to authenticate a disabled user account.
	ErrUserAccountDisabled = errors.New("user account is disabled")

	// ErrInvalidPassword is returned when the provided password is incorrect during authentication.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrUserNotFound is returned when a user cannot be found in the database.
	ErrUserNotFound = errors.New("user not found")
)

// ForbiddenError names the checks that failed. It never lists what the caller does hold.
type ForbiddenError struct {
	Checks []permission.Check
}

func (e *ForbiddenError) Error() string {
	msg := "forbidden:"
	for i, c := range e.Checks {
		if i > 0 {
			msg += ","
		}

		msg += " " + c.Key()
	}

	return msg
}

// Is makes errors.Is(err, ErrForbidden) hold.
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden //nolint:errorlint
}

func forbidden(checks ...permission.Check) error {
	return &ForbiddenError{Checks: checks}
}
