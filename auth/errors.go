package auth

import "errors"

// Sentinel errors for connection authentication.
var (
	// ErrMissingCredentials is returned when no token or key is present.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrInvalidCredentials is returned when a token or key does not resolve
	// to a known identity.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenExpired is returned when a session token has expired.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenMalformed is returned when a session token cannot be parsed.
	ErrTokenMalformed = errors.New("auth: token malformed")

	// ErrOriginDenied is returned when the declared origin is not allowed.
	ErrOriginDenied = errors.New("auth: origin denied")

	// ErrDirectoryUnavailable is returned when the user directory lookup
	// fails for reasons other than a missing record. Callers treat it as an
	// authentication failure, never as a retriable server error.
	ErrDirectoryUnavailable = errors.New("auth: directory unavailable")
)
