package blob

import (
	"context"

	"github.com/mkrupp/inkspira/internal/domain"
)

// Repository stores opaque blobs by id.
type Repository interface {
	// Lock acquires a lock on the blob with the given id, exclusive for writers
	// and shared for readers. The returned function releases it.
	Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error)

	// Exists reports whether a blob with the given id is stored.
	Exists(ctx context.Context, id domain.BlobID) bool

	// Store persists blob, replacing any previous content.
	Store(ctx context.Context, blob *domain.Blob) error

	// Fetch loads a blob. Missing blobs yield an error wrapping os.ErrNotExist.
	Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error)

	// Delete removes the blob with the given id.
	Delete(ctx context.Context, id domain.BlobID) error

	// DeleteAll removes every blob whose id is id followed by a suffix matching
	// the glob pattern, e.g. all resized variants "<hash>_*".
	DeleteAll(ctx context.Context, id domain.BlobID, pattern string) error
}

// RepositoryFactory creates a repository for blobs of one kind, stored below
// name with the extension ext.
type RepositoryFactory func(
	ctx context.Context,
	name string,
	ext string,
) (Repository, error)
