package services

import "errors"

var (
	// ErrAuthRejected covers every credential failure. Callers cannot tell a
	// malformed token from an expired or revoked one.
	ErrAuthRejected = errors.New("authentication rejected")

	ErrInvalidGroupName = errors.New("invalid group name")
)
