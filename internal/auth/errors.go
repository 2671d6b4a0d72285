package auth

import "errors"

// Authentication errors.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrNotConfigured      = errors.New("auth: admin account not configured")

	// ErrMalformedHash means a configured password_hash is not a PHC
	// Argon2id string.
	ErrMalformedHash = errors.New("auth: malformed password hash")

	ErrPasswordTooShort = errors.New("auth: password too short")
)
