package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports bad caller input; nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

var (
	ErrEmailInUse = errors.New("email already in use")

	ErrMissingToken = errors.New("missing verification token")
	ErrInvalidToken = errors.New("invalid or expired verification token")
	ErrTokenExpired = fmt.Errorf("verification token expired: %w", ErrInvalidToken)

	ErrNotificationFailed = errors.New("failed to send verification email")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAccountInactive    = errors.New("account is not active")

	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
