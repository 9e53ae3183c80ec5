package auth

import "errors"

var (
	ErrNotFound              = errors.New("auth: not found")
	ErrConflict              = errors.New("auth: conflict")
	ErrInvalidInput          = errors.New("auth: invalid input")
	ErrUnauthorized          = errors.New("auth: unauthorized")
	ErrInvalidToken          = errors.New("auth: invalid token")
	ErrInvalidCredentials    = errors.New("auth: invalid credentials")
	ErrInvalidAPIKey         = errors.New("auth: invalid or inactive api key")
	ErrExternalLoginDisabled = errors.New("auth: external employee login disabled")
	ErrNoPassword            = errors.New("auth: employee has no password set")
)

// Unique fields reported by ConflictError.
const (
	FieldEmail      = "email"
	FieldCode       = "codigo"
	FieldNationalID = "dni"
)

// ConflictError reports a unique constraint violation on Field. It matches ErrConflict.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return ErrConflict.Error() + " on " + e.Field
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
