package artsvc

import (
	"context"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/svc/imagesvc/imageclient"
)

// MediaRepository uploads images to the media service on behalf of the caller.
type MediaRepository interface {
	UploadImage(ctx context.Context, filename string, data []byte) domain.Result[domain.UploadResult]
	DeleteImage(ctx context.Context, mediaID string) domain.Result[Empty]

	// ResizedURL rewrites secureURL to request a variant of the given width.
	ResizedURL(ctx context.Context, secureURL string, width int) domain.Result[string]
}

// RemoteMediaRepository implements MediaRepository with an ImageClient.
type RemoteMediaRepository struct {
	images imageclient.ImageClient
	log    logging.Logger
}

var _ MediaRepository = (*RemoteMediaRepository)(nil)

func NewRemoteMediaRepository(images imageclient.ImageClient) *RemoteMediaRepository {
	return &RemoteMediaRepository{
		images: images,
		log:    logging.GetLogger("svc.artsvc.media_repository"),
	}
}

func (r *RemoteMediaRepository) UploadImage(
	ctx context.Context,
	filename string,
	data []byte,
) domain.Result[domain.UploadResult] {
	log := r.log.With(logging.Group("media", "filename", filename, "size", len(data)))

	if _, err := requireUser(ctx); err != nil {
		return finish(ctx, log, entityMedia, "upload", domain.UploadResult{}, err)
	}

	res, err := r.images.UploadImage(ctx, filename, data)

	return finish(ctx, log, entityMedia, "upload", res, err)
}

// DeleteImage deletes an image. The media service checks ownership.
func (r *RemoteMediaRepository) DeleteImage(ctx context.Context, mediaID string) domain.Result[Empty] {
	log := r.log.With(logging.Group("media", "id", mediaID))

	_, err := requireUser(ctx)
	if err == nil {
		err = r.images.DeleteImage(ctx, mediaID)
	}

	return finish(ctx, log, entityMedia, "delete", Empty{}, err)
}

func (r *RemoteMediaRepository) ResizedURL(ctx context.Context, secureURL string, width int) domain.Result[string] {
	url, err := domain.ResizedURL(secureURL, width)

	return finish(ctx, r.log, entityMedia, "resize url", url, err)
}
