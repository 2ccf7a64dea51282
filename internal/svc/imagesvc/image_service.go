package imagesvc

import (
	"context"

	"github.com/mkrupp/inkspira/internal/domain"
)

// ImageService stores uploaded images and serves resized variants of them.
type ImageService interface {
	// Upload validates and stores an image on behalf of the caller in ctx.
	// Width and height are read from the image header.
	Upload(ctx context.Context, filename string, data []byte) (domain.MediaMeta, error)

	// Delete removes the image if the caller owns it, dropping cached
	// variants once the content is no longer shared.
	Delete(ctx context.Context, imageID domain.MediaID) error

	// Fetch retrieves the image, or a variant scaled to width if width is
	// non-zero. Variants are cached.
	Fetch(ctx context.Context, imageID domain.MediaID, width int) (domain.Media, error)

	// MaxSize returns the maximum allowed file size in bytes.
	MaxSize() int64

	// CheckUploadConstraints checks size and extension of a file and, if data
	// is non-nil, that its magic bytes match the extension. It returns the
	// MIME type of the image.
	CheckUploadConstraints(filename string, size int64, data []byte) (string, error)
}
