package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/logging"
	"github.com/deepesh-reddy/MegaBackend/internal/server/assets"
	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
	"github.com/deepesh-reddy/MegaBackend/internal/server/repositories/users"
)

// RegistrationInput is a sign-up request. AvatarPath and CoverImagePath are
// local files (already received from the client); CoverImagePath is optional.
type RegistrationInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

func (in RegistrationInput) normalized() RegistrationInput {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.AvatarPath = strings.TrimSpace(in.AvatarPath)
	in.CoverImagePath = strings.TrimSpace(in.CoverImagePath)
	return in
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

func checkPasswordLength(field, password string) error {
	if len(password) > MaxPasswordBytes {
		return &common.ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)}
	}
	return nil
}

// Validate reports the first missing required field or a password too
// long to hash.
func (in RegistrationInput) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"fullName", in.FullName},
		{"email", in.Email},
		{"username", in.Username},
		{"password", in.Password},
		{common.AssetAvatar, in.AvatarPath},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &common.ValidationError{Field: f.name}
		}
	}
	return checkPasswordLength("password", in.Password)
}

// Step names a checkpoint of the onboarding saga.
type Step int

const (
	StepUploadAvatar Step = iota + 1
	StepUploadCoverImage
	StepPersist
	StepReload
)

func (s Step) String() string {
	switch s {
	case StepUploadAvatar:
		return "upload avatar"
	case StepUploadCoverImage:
		return "upload cover image"
	case StepPersist:
		return "persist account"
	case StepReload:
		return "reload account"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// compensates reports whether a failure at s must undo the uploads. After
// a reload failure the record may exist and reference them, so they stay.
func (s Step) compensates() bool {
	return s == StepUploadAvatar || s == StepUploadCoverImage || s == StepPersist
}

// StepOutcome is the result of running the saga steps: the last step
// reached, and either the created account or the error it failed with.
type StepOutcome struct {
	Step Step
	User *models.User
	Err  error
}

func failed(step Step, err error) StepOutcome {
	return StepOutcome{Step: step, Err: err}
}

// OnboardingSaga creates an account whose media lives in the asset store.
// Uploads happen first; if anything later fails they are deleted again.
type OnboardingSaga struct {
	users         users.Repository
	store         assets.Store
	hasher        PasswordHasher
	uploadTimeout time.Duration
	storeTimeout  time.Duration
	logger        logging.Logger
}

func NewOnboardingSaga(repo users.Repository, store assets.Store, hasher PasswordHasher,
	uploadTimeout, storeTimeout time.Duration, logger logging.Logger) *OnboardingSaga {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &OnboardingSaga{
		users:         repo,
		store:         store,
		hasher:        hasher,
		uploadTimeout: uploadTimeout,
		storeTimeout:  storeTimeout,
		logger:        logger,
	}
}

// Register validates in, checks that neither email nor username is taken,
// then uploads, persists and re-reads the account. The returned user is
// sanitized.
func (s *OnboardingSaga) Register(ctx context.Context, in RegistrationInput) (*models.User, error) {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, in); err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx, s.logger).With("username", in.Username)
	tx := assets.NewUploadTransaction(s.store, s.uploadTimeout, log)

	out := s.run(ctx, in, tx)
	if out.Err != nil {
		if out.Step.compensates() {
			n := tx.Rollback(ctx)
			log.Warn(ctx, "registration failed, uploads compensated",
				"step", out.Step.String(), "deleted", n, "error", out.Err)
		} else {
			tx.Commit()
			log.Error(ctx, "registration outcome unknown", "step", out.Step.String(), "error", out.Err)
		}
		return nil, out.Err
	}

	tx.Commit()
	log.Info(ctx, "user registered", "user_id", out.User.ID)
	return out.User, nil
}

func (s *OnboardingSaga) ensureAvailable(ctx context.Context, in RegistrationInput) error {
	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	_, err := s.users.FindByEmailOrUsername(sctx, in.Email, in.Username, models.Sanitized)
	switch {
	case err == nil:
		return common.ErrConflict
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return fmt.Errorf("check existing account: %w", err)
	}
}

func (s *OnboardingSaga) run(ctx context.Context, in RegistrationInput, tx *assets.UploadTransaction) StepOutcome {
	avatar, err := tx.Upload(ctx, common.AssetAvatar, in.AvatarPath)
	if err != nil {
		return failed(StepUploadAvatar, err)
	}

	var cover models.AssetReference
	if in.CoverImagePath != "" {
		cover, err = tx.Upload(ctx, common.AssetCoverImage, in.CoverImagePath)
		if err != nil {
			return failed(StepUploadCoverImage, err)
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return failed(StepPersist, fmt.Errorf("%w: hash password: %w", common.ErrAccountPersistFailed, err))
	}

	created, err := s.create(ctx, &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		Avatar:       avatar,
		CoverImage:   cover,
	})
	if err != nil {
		return failed(StepPersist, fmt.Errorf("%w: %w", common.ErrAccountPersistFailed, err))
	}

	user, err := s.reload(ctx, created.ID)
	if err != nil {
		return failed(StepReload, fmt.Errorf("%w: reload %s: %w", common.ErrAccountPersistFailed, created.ID, err))
	}

	return StepOutcome{Step: StepReload, User: user}
}

func (s *OnboardingSaga) create(ctx context.Context, u *models.User) (*models.User, error) {
	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.users.Create(sctx, u)
}

func (s *OnboardingSaga) reload(ctx context.Context, id string) (*models.User, error) {
	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.users.FindByID(sctx, id, models.Sanitized)
}
