package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/logging"
	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu           sync.Mutex
	n            int
	failOn       map[string]error
	delay        time.Duration
	deleted      []string
	deleteErr    error
	deleteCtxErr []error
}

func (m *memStore) Upload(ctx context.Context, localPath string) (models.AssetReference, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err := m.failOn[localPath]; err != nil {
		return models.AssetReference{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	id := fmt.Sprintf("obj-%d", m.n)
	return models.AssetReference{ExternalID: id, URL: "http://cdn/" + id}, nil
}

func (m *memStore) Delete(ctx context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCtxErr = append(m.deleteCtxErr, ctx.Err())
	m.deleted = append(m.deleted, externalID)
	return m.deleteErr
}

type recordingLogger struct {
	logging.Nop
	errors []string
}

func (r *recordingLogger) Error(_ context.Context, msg string, _ ...any) {
	r.errors = append(r.errors, msg)
}

func TestUploadTransaction_RollbackDeletesNewestFirst(t *testing.T) {
	store := &memStore{}
	tx := NewUploadTransaction(store, time.Second, nil)

	a, err := tx.Upload(context.Background(), common.AssetAvatar, "a.png")
	require.NoError(t, err)
	c, err := tx.Upload(context.Background(), common.AssetCoverImage, "c.png")
	require.NoError(t, err)

	n := tx.Rollback(context.Background())
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{c.ExternalID, a.ExternalID}, store.deleted)

	// a second rollback has nothing left to delete
	assert.Zero(t, tx.Rollback(context.Background()))
}

func TestUploadTransaction_FailureIsTypedAndNotTracked(t *testing.T) {
	store := &memStore{failOn: map[string]error{"c.png": errors.New("quota")}}
	tx := NewUploadTransaction(store, time.Second, nil)

	_, err := tx.Upload(context.Background(), common.AssetAvatar, "a.png")
	require.NoError(t, err)

	_, err = tx.Upload(context.Background(), common.AssetCoverImage, "c.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAssetUploadFailed)

	var ue *common.AssetUploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, common.AssetCoverImage, ue.Asset)

	assert.Equal(t, 1, tx.Rollback(context.Background()))
	assert.Equal(t, []string{"obj-1"}, store.deleted)
}

func TestUploadTransaction_TimeoutIsFailure(t *testing.T) {
	store := &memStore{delay: 30 * time.Millisecond}
	tx := NewUploadTransaction(store, 5*time.Millisecond, nil)

	_, err := tx.Upload(context.Background(), common.AssetAvatar, "a.png")
	assert.ErrorIs(t, err, common.ErrAssetUploadFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the late object is still cleaned up
	assert.Equal(t, 1, tx.Rollback(context.Background()))
	assert.Equal(t, []string{"obj-1"}, store.deleted)
}

func TestUploadTransaction_CommitDisablesRollback(t *testing.T) {
	store := &memStore{}
	tx := NewUploadTransaction(store, time.Second, nil)

	_, err := tx.Upload(context.Background(), common.AssetAvatar, "a.png")
	require.NoError(t, err)
	tx.Commit()

	assert.Zero(t, tx.Rollback(context.Background()))
	assert.Empty(t, store.deleted)
}

func TestUploadTransaction_RollbackSurvivesCancelledContextAndErrors(t *testing.T) {
	store := &memStore{deleteErr: errors.New("unreachable")}
	log := &recordingLogger{}
	tx := NewUploadTransaction(store, time.Second, log)

	_, err := tx.Upload(context.Background(), common.AssetAvatar, "a.png")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 1, tx.Rollback(ctx))
	require.Len(t, store.deleteCtxErr, 1)
	assert.NoError(t, store.deleteCtxErr[0])
	assert.Equal(t, []string{"asset compensation failed"}, log.errors)
}
