package services

import (
	"context"
	"errors"
	"testing"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileService() (*ProfileService, *memUsers, *fakeStore) {
	repo, store := newMemUsers(seedUser()), newFakeStore()
	cfg := testConfig()
	return NewProfileService(repo, store, cfg.UploadTimeout, cfg.StoreTimeout, nil), repo, store
}

func TestCurrentUser_IsSanitized(t *testing.T) {
	svc, _, _ := newProfileService()

	u, err := svc.CurrentUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "janedoe", u.Username)
	assert.Empty(t, u.PasswordHash)

	_, err = svc.CurrentUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateAccount(t *testing.T) {
	svc, repo, _ := newProfileService()

	u, err := svc.UpdateAccount(context.Background(), "u-1", " Jane Q ", "jq@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Q", u.FullName)
	assert.Equal(t, "jq@x.com", repo.stored("u-1").Email)

	_, err = svc.UpdateAccount(context.Background(), "u-1", "", "jq@x.com")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = svc.UpdateAccount(context.Background(), "u-1", "Jane", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUpdateAvatar_ReplacesAndDeletesPrevious(t *testing.T) {
	svc, repo, store := newProfileService()

	u, err := svc.UpdateAvatar(context.Background(), "u-1", "/tmp/new.png")
	require.NoError(t, err)
	assert.Equal(t, "users/obj-1", u.Avatar.ExternalID)
	assert.Equal(t, "users/obj-1", repo.stored("u-1").Avatar.ExternalID)
	assert.Equal(t, []string{"users/old-avatar"}, store.deleted)
}

func TestUpdateCoverImage_NoPreviousNothingDeleted(t *testing.T) {
	svc, _, store := newProfileService()

	u, err := svc.UpdateCoverImage(context.Background(), "u-1", "/tmp/cover.png")
	require.NoError(t, err)
	assert.Equal(t, "users/obj-1", u.CoverImage.ExternalID)
	assert.Equal(t, "users/old-avatar", u.Avatar.ExternalID)
	assert.Empty(t, store.deleted)
}

func TestUpdateAvatar_PersistFailureDeletesNewUpload(t *testing.T) {
	svc, repo, store := newProfileService()
	repo.updateErr = errors.New("db down")

	_, err := svc.UpdateAvatar(context.Background(), "u-1", "/tmp/new.png")
	require.Error(t, err)
	assert.Equal(t, []string{"users/obj-1"}, store.deleted)
	assert.Equal(t, "users/old-avatar", repo.stored("u-1").Avatar.ExternalID)
}

func TestUpdateAvatar_UploadFailure(t *testing.T) {
	svc, _, store := newProfileService()
	store.failOn["/tmp/new.png"] = errors.New("quota")

	_, err := svc.UpdateAvatar(context.Background(), "u-1", "/tmp/new.png")
	assert.ErrorIs(t, err, common.ErrAssetUploadFailed)

	_, err = svc.UpdateAvatar(context.Background(), "u-1", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUpdateAvatar_PreviousDeleteFailureIsIgnored(t *testing.T) {
	svc, _, store := newProfileService()
	store.delErr = errors.New("gone")

	_, err := svc.UpdateAvatar(context.Background(), "u-1", "/tmp/new.png")
	assert.NoError(t, err)
}

func TestChannelProfileAndHistory(t *testing.T) {
	svc, _, _ := newProfileService()

	c, err := svc.ChannelProfile(context.Background(), "JaneDoe", "viewer")
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.ID)

	_, err = svc.ChannelProfile(context.Background(), "ghost", "viewer")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.ChannelProfile(context.Background(), " ", "viewer")
	assert.ErrorIs(t, err, common.ErrValidation)

	h, err := svc.WatchHistory(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, "v-1", h[0].ID)
}
