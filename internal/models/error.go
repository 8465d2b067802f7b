package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrStoreUnavailable marks an infrastructure fault talking to the
	// record store. It must never be reported to a caller as a credential
	// failure.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrInvalidEmail is returned when an email address fails format
	// validation.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrSessionInvalid is the single error surfaced for every persistent
	// session failure. Callers cannot distinguish expiry, rotation replay
	// or tampering.
	ErrSessionInvalid = errors.New("session invalid")
)
