// Package auth signs and verifies the HS256 JWTs used as access and refresh
// tokens. It knows nothing about storage; statefulness of refresh tokens is
// handled by the token service.
package auth

import (
	"errors"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the subject plus the standard registered claims. A random
// token id (jti) keeps two tokens minted in the same second distinct.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Signer mints and checks tokens of one kind (one secret, one lifetime).
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl, now: time.Now}
}

// TTL returns the validity duration of tokens minted by s.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Sign returns a signed token for userID valid for the signer's ttl.
func (s *Signer) Sign(userID string) (string, error) {
	return GenerateToken(userID, s.secret, s.ttl, s.now())
}

// Verify checks signature and expiry and returns the claims.
func (s *Signer) Verify(token string) (*Claims, error) {
	return ParseToken(token, s.secret, s.now)
}

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
	})

	return token.SignedString(secretKey)
}

// ParseToken returns common.ErrTokenExpired for a well-signed but expired
// token and common.ErrInvalidToken for anything else that fails.
func ParseToken(tokenString string, secretKey []byte, now func() time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
