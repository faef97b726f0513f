package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnavailable indicates the API could not be reached.
	ErrUnavailable = errors.New("api unavailable")
	// ErrUnauthorized indicates the API rejected the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the API refused the operation for this role.
	ErrForbidden = errors.New("forbidden")
	// ErrMalformedResponse indicates a 2xx response without the expected resource.
	ErrMalformedResponse = errors.New("malformed api response")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
