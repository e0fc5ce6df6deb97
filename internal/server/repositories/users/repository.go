// Package users persists the account aggregate.
package users

import (
	"context"

	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
)

// Repository is the account store contract consumed by the services.
//
// Reads taking a models.Projection include or exclude the password hash and
// refresh token together. Lookups that match nothing return
// common.ErrorNotFound; writes that violate email or username uniqueness
// return common.ErrConflict.
type Repository interface {
	FindByEmailOrUsername(ctx context.Context, email, username string, p models.Projection) (*models.User, error)
	FindByID(ctx context.Context, id string, p models.Projection) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// UpdateRefreshToken overwrites the stored refresh token; "" clears it.
	UpdateRefreshToken(ctx context.Context, id, value string) error
	// ReplaceRefreshToken sets next only if the stored value still equals
	// current, as a single conditional update. It returns
	// common.ErrorNotFound when the stored value has moved on.
	ReplaceRefreshToken(ctx context.Context, id, current, next string) error

	UpdateProfileFields(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error)
}
