// Package common defines shared constants and sentinel errors used across
// the server and client layers of gophdrive. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrMisconfigured  = errors.New("server misconfigured")

	// Request validation errors.
	ErrValidation    = errors.New("validation error")
	ErrTokenInvalid  = errors.New("invalid or expired uploadId")
	ErrRangeInvalid  = errors.New("invalid content-range header")
	ErrRangeMismatch = errors.New("content-range total mismatch")

	// ErrChunkLength rejects a non-final chunk that is not a multiple of
	// 320 KiB, or any chunk above the 100 MiB ceiling.
	ErrChunkLength       = errors.New("invalid chunk length")
	ErrChunkSizeMismatch = errors.New("chunk size mismatch")
	ErrSizeMismatch      = errors.New("size mismatch")

	// Remote storage errors.
	ErrAuthentication   = errors.New("storage authentication failed")
	ErrDownloadDeclined = errors.New("download declined")

	// Token errors for delegated grants.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
