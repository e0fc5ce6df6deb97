// Package services contains the server-side business logic: account
// onboarding, session tokens, login and profile maintenance.
package services

import (
	"context"
	"time"
)

// PasswordHasher hashes new passwords and checks candidates against a
// stored hash. cryptox.CredentialVerifier implements it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// withTimeout bounds ctx by d; a non-positive d leaves ctx as is.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
