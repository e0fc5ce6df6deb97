// Package common defines shared constants and sentinel errors used across
// the server layers of MegaBackend. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrUserNotFound is an id that should resolve but does not. It is an
	// internal inconsistency, not a client error.
	ErrUserNotFound = errors.New("user not found")

	// Service-level errors.
	ErrorUnauthorized     = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Onboarding errors.
	ErrValidation           = errors.New("validation error")
	ErrConflict             = errors.New("user with email or username already exists")
	ErrAssetUploadFailed    = errors.New("asset upload failed")
	ErrAccountPersistFailed = errors.New("account persist failed")

	// Token lifecycle errors. All of them are authentication failures for
	// the caller; the distinction is diagnostic.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrTokenIssuanceFailed = errors.New("token issuance failed")
)

// ValidationError reports a missing or malformed request field. An empty
// Reason means the field was required and absent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AssetUploadError reports which asset failed to upload and why.
type AssetUploadError struct {
	Asset string
	Err   error
}

func (e *AssetUploadError) Error() string {
	return fmt.Sprintf("%s upload failed: %v", e.Asset, e.Err)
}

func (e *AssetUploadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAssetUploadFailed) match regardless of cause.
func (e *AssetUploadError) Is(target error) bool {
	return target == ErrAssetUploadFailed
}

// IsAuthFailure reports whether err is one of the token or credential
// failures that callers surface as a plain authentication error.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrorUnauthorized)
}
