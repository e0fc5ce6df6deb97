package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/server/auth"
	"github.com/deepesh-reddy/MegaBackend/internal/server/config"
	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
	"github.com/deepesh-reddy/MegaBackend/internal/server/repositories/users"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// TokenService owns the per-user refresh-token slot. A refresh token is
// valid only while it equals the value stored on the user record, so
// issuing a new one revokes the previous one and clearing the slot logs the
// user out. Nothing else writes that field.
type TokenService struct {
	users        users.Repository
	access       *auth.Signer
	refresh      *auth.Signer
	storeTimeout time.Duration
}

func NewTokenService(repo users.Repository, cfg *config.Config) *TokenService {
	return &TokenService{
		users:        repo,
		access:       auth.NewSigner([]byte(cfg.AccessTokenSecret), cfg.AccessTokenValidityDuration),
		refresh:      auth.NewSigner([]byte(cfg.RefreshTokenSecret), cfg.RefreshTokenValidityDuration),
		storeTimeout: cfg.StoreTimeout,
	}
}

// Within returns a copy of s that reads and writes through repo, typically a
// repository bound to an open transaction.
func (s *TokenService) Within(repo users.Repository) *TokenService {
	c := *s
	c.users = repo
	return &c
}

func (s *TokenService) mint(userID string) (*TokenPair, error) {
	access, err := s.access.Sign(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %w", common.ErrTokenIssuanceFailed, err)
	}
	refresh, err := s.refresh.Sign(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: sign refresh token: %w", common.ErrTokenIssuanceFailed, err)
	}
	return &TokenPair{
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    s.access.TTL(),
		RefreshTTL:   s.refresh.TTL(),
	}, nil
}

// Issue mints a fresh pair and stores the refresh token, overwriting any
// previous one.
func (s *TokenService) Issue(ctx context.Context, userID string) (*TokenPair, error) {
	pair, err := s.mint(userID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.UpdateRefreshToken(sctx, userID, pair.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("issue tokens for %s: %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrTokenIssuanceFailed, err)
	}

	return pair, nil
}

// VerifyRefresh checks a presented refresh token and, if it is the live
// one, rotates it. Signature and expiry are checked before the store is
// touched. The rotation is a compare-and-set on the stored value, so of two
// concurrent refreshes with the same token only one succeeds; the other
// gets common.ErrTokenRevoked.
func (s *TokenService) VerifyRefresh(ctx context.Context, presented string) (*TokenPair, error) {
	claims, err := s.refresh.Verify(presented)
	if err != nil {
		return nil, err
	}
	userID := claims.UserID

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		return nil, common.ErrTokenRevoked
	}

	pair, err := s.mint(userID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.ReplaceRefreshToken(sctx, userID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenRevoked
		}
		return nil, fmt.Errorf("%w: %w", common.ErrTokenIssuanceFailed, err)
	}

	return pair, nil
}

func (s *TokenService) load(ctx context.Context, userID string) (*models.User, error) {
	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.FindByID(sctx, userID, models.WithSecrets)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// the token's subject no longer exists
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("load token subject: %w", err)
	}
	return user, nil
}

// Revoke empties the user's refresh-token slot.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.UpdateRefreshToken(sctx, userID, ""); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("revoke tokens for %s: %w", userID, common.ErrUserNotFound)
		}
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

// VerifyAccess checks an access token by signature and expiry only and
// returns its subject.
func (s *TokenService) VerifyAccess(token string) (string, error) {
	claims, err := s.access.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
