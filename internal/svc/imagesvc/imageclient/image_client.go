package imageclient

import (
	"context"

	"github.com/mkrupp/inkspira/internal/domain"
)

// ImageClient is the remote API of the media service. Calls that need an
// identity forward the caller's access token from the context.
type ImageClient interface {
	// UploadImage stores data under filename and returns its upload result.
	UploadImage(ctx context.Context, filename string, data []byte) (domain.UploadResult, error)

	// DeleteImage removes an image owned by the caller.
	DeleteImage(ctx context.Context, mediaID string) error
}
