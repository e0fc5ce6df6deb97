package assets

import (
	"context"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/logging"
	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
)

// DefaultCompensationTimeout bounds each rollback delete.
const DefaultCompensationTimeout = 10 * time.Second

type uploaded struct {
	asset string
	ref   models.AssetReference
}

// UploadTransaction tracks the assets uploaded for one operation. Until
// Commit is called, Rollback deletes every one of them, newest first.
//
// It is not safe for concurrent use; one operation owns one transaction.
type UploadTransaction struct {
	store         Store
	uploadTimeout time.Duration
	deleteTimeout time.Duration
	logger        logging.Logger

	done      []uploaded
	committed bool
}

func NewUploadTransaction(store Store, uploadTimeout time.Duration, logger logging.Logger) *UploadTransaction {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &UploadTransaction{
		store:         store,
		uploadTimeout: uploadTimeout,
		deleteTimeout: DefaultCompensationTimeout,
		logger:        logger,
	}
}

// Upload pushes localPath as the named asset. Failures, including the
// upload timeout, come back as *common.AssetUploadError.
func (t *UploadTransaction) Upload(ctx context.Context, asset, localPath string) (models.AssetReference, error) {
	if t.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.uploadTimeout)
		defer cancel()
	}

	ref, err := t.store.Upload(ctx, localPath)
	if err == nil && ctx.Err() != nil {
		// Stored, but past the deadline. Track it so rollback removes it.
		t.done = append(t.done, uploaded{asset: asset, ref: ref})
		err = ctx.Err()
	}
	if err != nil {
		return models.AssetReference{}, &common.AssetUploadError{Asset: asset, Err: err}
	}

	t.done = append(t.done, uploaded{asset: asset, ref: ref})
	return ref, nil
}

// Commit hands ownership of the uploaded assets to the caller.
func (t *UploadTransaction) Commit() {
	t.committed = true
}

// Rollback deletes every uploaded asset. It runs even when ctx is already
// cancelled and never returns an error: failed deletes are logged and the
// object is left orphaned. It reports how many deletes were attempted.
func (t *UploadTransaction) Rollback(ctx context.Context) int {
	if t.committed {
		return 0
	}

	base := context.WithoutCancel(ctx)
	attempted := 0
	for i := len(t.done) - 1; i >= 0; i-- {
		u := t.done[i]
		if u.ref.ExternalID == "" {
			continue
		}
		attempted++
		dctx, cancel := context.WithTimeout(base, t.deleteTimeout)
		if err := t.store.Delete(dctx, u.ref.ExternalID); err != nil {
			t.logger.Error(ctx, "asset compensation failed",
				"asset", u.asset, "external_id", u.ref.ExternalID, "error", err)
		}
		cancel()
	}
	t.done = nil
	return attempted
}
