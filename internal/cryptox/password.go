// Package cryptox holds the password hashing and verification primitives.
package cryptox

import "golang.org/x/crypto/bcrypt"

// DefaultCost is the bcrypt work factor used for new hashes.
const DefaultCost = 12

// ErrPasswordTooLong is returned for passwords bcrypt cannot hash (over 72 bytes).
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// CredentialVerifier hashes passwords and checks candidates against stored
// hashes. It is safe for concurrent use.
type CredentialVerifier struct {
	cost int
}

// NewCredentialVerifier returns a verifier hashing with cost, or DefaultCost
// when cost is out of bcrypt's range.
func NewCredentialVerifier(cost int) *CredentialVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &CredentialVerifier{cost: cost}
}

// Hash returns a salted bcrypt hash of password.
func (v *CredentialVerifier) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether password matches hash. The comparison inside
// bcrypt is constant-time; a malformed hash simply does not match.
func (v *CredentialVerifier) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
