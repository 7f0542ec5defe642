package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrRevisionConflict signals a lost race on a license record: the stored
	// revision no longer matches the one the caller read.
	ErrRevisionConflict = errors.New("revision conflict")
	// ErrRetryExhausted is returned when the conditional-commit loop gave up
	// after the configured attempt budget. The request is safe to retry.
	ErrRetryExhausted = errors.New("retry budget exhausted")
	// ErrInvalidCredentials hides which part of the admin login failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("rate limited")
)
