// Package assets stores user media in an object store and groups uploads
// that belong to one operation so they can be undone together.
package assets

import (
	"context"

	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
)

// Store is the object-store client. Upload pushes a local file and returns
// where it ended up; Delete removes an object by its external id.
type Store interface {
	Upload(ctx context.Context, localPath string) (models.AssetReference, error)
	Delete(ctx context.Context, externalID string) error
}
