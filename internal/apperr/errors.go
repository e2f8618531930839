// Package apperr holds the error kinds shared by the token, generator and
// conversation layers. Call sites wrap them with fmt.Errorf("%w: ...") and
// callers match with errors.Is.
package apperr

import "errors"

var (
	// ErrInvalidInput is a caller error (empty content, bad request). Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means the referenced conversation or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTokenInvalid covers malformed, unsigned or tampered tokens.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired is a well-formed, correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrUpstreamUnavailable is returned by the generator once its attempts are
	// exhausted or a permanent backend error is seen.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPersistence wraps any storage failure. Always fatal to the operation.
	ErrPersistence = errors.New("persistence error")

	// ErrConflict is a uniqueness violation (e.g. email already registered).
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is returned for both unknown accounts and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden means the caller is authenticated but lacks the capability.
	ErrForbidden = errors.New("forbidden")
)
