// Package login provides the session login endpoint.
package login

import "errors"

var (
	// ErrInvalidFormData is returned when the submitted credentials cannot be parsed.
	ErrInvalidFormData = errors.New("invalid form data")

	// ErrInvalidCredentials is returned for an unknown user, a wrong password or a disabled account.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInternalServerError is returned for unexpected failures during the login process.
	ErrInternalServerError = errors.New("internal server error")
)
