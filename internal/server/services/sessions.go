package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/dbx"
	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
	"github.com/deepesh-reddy/MegaBackend/internal/server/repositories/repomanager"
)

// LoginInput identifies the account by email or username.
type LoginInput struct {
	Email    string
	Username string
	Password string
}

// Session is what a successful login or refresh hands back.
type Session struct {
	User   *models.User
	Tokens *TokenPair
}

// SessionService drives login, refresh, logout and password change on top
// of the token service.
type SessionService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	tokens       *TokenService
	hasher       PasswordHasher
	storeTimeout time.Duration
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService,
	hasher PasswordHasher, storeTimeout time.Duration) *SessionService {
	return &SessionService{
		db:           db,
		repomanager:  m,
		tokens:       tokens,
		hasher:       hasher,
		storeTimeout: storeTimeout,
	}
}

// Login checks the password and issues a new token pair. An unknown account
// and a wrong password are indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := strings.TrimSpace(in.Email)
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if email == "" && username == "" {
		return nil, &common.ValidationError{Field: "username or email"}
	}
	if in.Password == "" {
		return nil, &common.ValidationError{Field: "password"}
	}

	repo := s.repomanager.Users(s.db)

	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	user, err := repo.FindByEmailOrUsername(sctx, email, username, models.WithSecrets)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	sctx, cancel = withTimeout(ctx, s.storeTimeout)
	defer cancel()
	public, err := repo.FindByID(sctx, user.ID, models.Sanitized)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	return &Session{User: public, Tokens: pair}, nil
}

// Refresh exchanges a live refresh token for a new pair.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, common.ErrorUnauthorized
	}
	return s.tokens.VerifyRefresh(ctx, refreshToken)
}

func (s *SessionService) Logout(ctx context.Context, userID string) error {
	return s.tokens.Revoke(ctx, userID)
}

// ChangePassword replaces the password after checking the old one. The new
// hash and the refresh-token revocation commit together.
func (s *SessionService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return &common.ValidationError{Field: "oldPassword"}
	}
	if strings.TrimSpace(newPassword) == "" {
		return &common.ValidationError{Field: "newPassword"}
	}
	if err := checkPasswordLength("newPassword", newPassword); err != nil {
		return err
	}

	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	user, err := s.repomanager.Users(s.db).FindByID(sctx, userID, models.WithSecrets)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("find account: %w", err)
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return common.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		sctx, cancel := withTimeout(ctx, s.storeTimeout)
		defer cancel()
		if err := repo.UpdatePassword(sctx, userID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}

		return s.tokens.Within(repo).Revoke(ctx, userID)
	})
}
