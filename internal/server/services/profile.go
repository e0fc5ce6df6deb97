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

// ProfileService serves the authenticated user's own record and the public
// channel views.
type ProfileService struct {
	users         users.Repository
	store         assets.Store
	uploadTimeout time.Duration
	storeTimeout  time.Duration
	logger        logging.Logger
}

func NewProfileService(repo users.Repository, store assets.Store,
	uploadTimeout, storeTimeout time.Duration, logger logging.Logger) *ProfileService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &ProfileService{
		users:         repo,
		store:         store,
		uploadTimeout: uploadTimeout,
		storeTimeout:  storeTimeout,
		logger:        logger,
	}
}

func (s *ProfileService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.users.FindByID(sctx, userID, models.Sanitized)
}

// UpdateAccount sets full name and email; both are required.
func (s *ProfileService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" {
		return nil, &common.ValidationError{Field: "fullName"}
	}
	if email == "" {
		return nil, &common.ValidationError{Field: "email"}
	}

	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.users.UpdateProfileFields(sctx, userID, models.ProfileUpdate{FullName: &fullName, Email: &email})
}

func (s *ProfileService) UpdateAvatar(ctx context.Context, userID, localPath string) (*models.User, error) {
	return s.replaceAsset(ctx, userID, common.AssetAvatar, localPath)
}

func (s *ProfileService) UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.User, error) {
	return s.replaceAsset(ctx, userID, common.AssetCoverImage, localPath)
}

// replaceAsset uploads the new file, points the record at it and then drops
// the old object. If the record update fails the new object is deleted.
func (s *ProfileService) replaceAsset(ctx context.Context, userID, asset, localPath string) (*models.User, error) {
	if strings.TrimSpace(localPath) == "" {
		return nil, &common.ValidationError{Field: asset}
	}

	current, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx, s.logger).With("user_id", userID, "asset", asset)
	tx := assets.NewUploadTransaction(s.store, s.uploadTimeout, log)

	ref, err := tx.Upload(ctx, asset, localPath)
	if err != nil {
		tx.Rollback(ctx)
		return nil, err
	}

	upd := models.ProfileUpdate{}
	previous := current.Avatar
	if asset == common.AssetCoverImage {
		upd.CoverImage = &ref
		previous = current.CoverImage
	} else {
		upd.Avatar = &ref
	}

	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	updated, err := s.users.UpdateProfileFields(sctx, userID, upd)
	cancel()
	if err != nil {
		tx.Rollback(ctx)
		return nil, fmt.Errorf("save %s: %w", asset, err)
	}
	tx.Commit()

	if previous.ExternalID != "" && previous.ExternalID != ref.ExternalID {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), assets.DefaultCompensationTimeout)
		defer cancel()
		if err := s.store.Delete(dctx, previous.ExternalID); err != nil {
			log.Warn(ctx, "previous asset not deleted", "external_id", previous.ExternalID, "error", err)
		}
	}

	return updated, nil
}

// ChannelProfile returns the public view of username as seen by viewerID.
func (s *ProfileService) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &common.ValidationError{Field: "username"}
	}

	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	c, err := s.users.ChannelProfile(sctx, username, viewerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("channel %q: %w", username, common.ErrorNotFound)
		}
		return nil, err
	}
	return c, nil
}

func (s *ProfileService) WatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error) {
	sctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.users.WatchHistory(sctx, userID)
}
