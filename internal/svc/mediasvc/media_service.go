package mediasvc

import (
	"context"

	"github.com/mkrupp/inkspira/internal/domain"
)

// MediaService stores uploaded media, de-duplicating identical content.
type MediaService interface {
	// Store persists media. Content already stored by another upload is shared.
	// Returns ErrMediaTooLarge if the media exceeds MaxSize.
	Store(ctx context.Context, media domain.Media) error

	// Delete removes the media if the caller in ctx owns it. It reports
	// whether the shared content was pruned as well, and the content's blob id.
	Delete(ctx context.Context, mediaID domain.MediaID) (bool, domain.BlobID, error)

	// Fetch retrieves media by id. Media is public; no caller is required.
	Fetch(ctx context.Context, mediaID domain.MediaID) (domain.Media, error)

	// MaxSize returns the maximum allowed file size for uploaded media in bytes.
	MaxSize() int64
}
