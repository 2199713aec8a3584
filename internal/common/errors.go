// Package common defines shared sentinel errors used across TaskKeeper
// server layers. Callers should use errors.Is to match these values.
//
// Errors fall into two groups: the sentinels listed here describe caller-side
// failures (bad input, bad credentials, missing rows) and are safe to map to
// client responses; everything else bubbling out of repositories is a wrapped
// infrastructure failure and may be retried by the caller.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Input validation errors.
	ErrorValidation = errors.New("validation error")

	// Credential errors. Unknown email and wrong password intentionally map
	// to the same value so responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("inactive user")

	// Token and session validity errors.
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidSession = errors.New("invalid session")
)
