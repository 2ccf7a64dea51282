package imagesvc

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/mkrupp/inkspira/internal/domain"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/infra/metrics"
	"github.com/mkrupp/inkspira/internal/repo/blob"
	"github.com/mkrupp/inkspira/internal/svc/mediasvc"
)

// BlobImageService implements ImageService on top of a MediaService and
// keeps resized variants in a cache blob repository keyed by content hash and
// width.
type BlobImageService struct {
	cacheRepo blob.Repository
	mediaSvc  mediasvc.MediaService
	interpol  draw.Interpolator
	cfg       ImageConfig
	log       logging.Logger
}

var _ ImageService = (*BlobImageService)(nil)

// NewBlobImageService opens the variant cache through repoFactory.
func NewBlobImageService(
	ctx context.Context,
	repoFactory blob.RepositoryFactory,
	mediaSvc mediasvc.MediaService,
	cfg ImageConfig,
) (*BlobImageService, error) {
	interpol, err := getInterpolatorByName(cfg.Interpolator)
	if err != nil {
		return nil, err
	}

	cacheRepo, err := repoFactory(ctx, "cache", "bin")
	if err != nil {
		return nil, fmt.Errorf("new cache repository: %w", err)
	}

	return &BlobImageService{
		cacheRepo: cacheRepo,
		mediaSvc:  mediaSvc,
		interpol:  interpol,
		cfg:       cfg,
		log:       logging.GetLogger("svc.imagesvc.blob_image_service"),
	}, nil
}

func (imageSvc *BlobImageService) MaxSize() int64 {
	return imageSvc.mediaSvc.MaxSize()
}

func (imageSvc *BlobImageService) CheckUploadConstraints(filename string, size int64, data []byte) (string, error) {
	if size > imageSvc.MaxSize() {
		return "", fmt.Errorf("%w: %d exceeds %d", domain.ErrMediaTooLarge, size, imageSvc.MaxSize())
	}

	format, err := formatByFilename(filename)
	if err != nil {
		return "", err
	}

	if data != nil && !format.matches(data) {
		return "", fmt.Errorf("%w: %q", domain.ErrImageTypeMismatch, filename)
	}

	return format.mimeType, nil
}

func (imageSvc *BlobImageService) Upload(
	ctx context.Context,
	filename string,
	data []byte,
) (_ domain.MediaMeta, err error) {
	owner := context_.UserIDFromContext(ctx)
	log := imageSvc.log.With(logging.Group("image", "filename", filename, "owner", owner))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "image upload failed", "error", err)
		} else {
			log.DebugContext(ctx, "image uploaded")
		}
	}()

	if owner == "" {
		return domain.MediaMeta{}, domain.ErrNoAuthToken
	}

	mimeType, err := imageSvc.CheckUploadConstraints(filename, int64(len(data)), data)
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("check upload constraints: %w", err)
	}

	width, height, err := imageSize(data)
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("%w: %w", domain.ErrImageTypeMismatch, err)
	}

	//nolint:exhaustruct
	image := domain.NewMedia(data, domain.MediaMeta{
		Filename: filename,
		Owner:    owner,
		MIMEType: mimeType,
		Width:    width,
		Height:   height,
	})

	log = log.With(logging.Group("image", "id", image.ID(), "width", width, "height", height))

	if err := imageSvc.mediaSvc.Store(ctx, image); err != nil {
		return domain.MediaMeta{}, fmt.Errorf("store media: %w", err)
	}

	return image.Meta(), nil
}

func (imageSvc *BlobImageService) Delete(ctx context.Context, imageID domain.MediaID) (err error) {
	log := imageSvc.log.With(logging.Group("image", "id", imageID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "image delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "image deleted")
		}
	}()

	pruned, dataID, err := imageSvc.mediaSvc.Delete(ctx, imageID)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}

	log = log.With(logging.Group("image", "pruned", pruned))

	if !pruned {
		return nil
	}

	if err := imageSvc.cacheRepo.DeleteAll(ctx, dataID, "_*"); err != nil {
		return fmt.Errorf("delete cache: %w", err)
	}

	return nil
}

func (imageSvc *BlobImageService) Fetch(
	ctx context.Context,
	imageID domain.MediaID,
	width int,
) (_ domain.Media, err error) {
	log := imageSvc.log.With(logging.Group("image", "id", imageID, "width", width))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "image fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "image fetched")
		}
	}()

	if width < 0 || width > imageSvc.cfg.MaxWidth {
		return domain.Media{}, fmt.Errorf("%w: %d", domain.ErrInvalidWidth, width)
	}

	image, err := imageSvc.mediaSvc.Fetch(ctx, imageID)
	if err != nil {
		return domain.Media{}, fmt.Errorf("fetch media: %w", err)
	}

	// Variants are never upscaled.
	if width == 0 || (image.Meta().Width > 0 && width >= image.Meta().Width) {
		return image, nil
	}

	cacheID := domain.BlobID(image.Hash() + "_" + strconv.Itoa(width))

	unlock, err := imageSvc.cacheRepo.Lock(ctx, cacheID, true)
	if err != nil {
		return domain.Media{}, fmt.Errorf("lock cache: %w", err)
	}
	defer unlock()

	if imageSvc.cacheRepo.Exists(ctx, cacheID) {
		cacheBlob, err := imageSvc.cacheRepo.Fetch(ctx, cacheID)
		if err != nil {
			return domain.Media{}, fmt.Errorf("fetch cache: %w", err)
		}

		metrics.MediaVariantsTotal.WithLabelValues("hit").Inc()

		return image.WithData(cacheBlob.Bytes()), nil
	}

	metrics.MediaVariantsTotal.WithLabelValues("miss").Inc()

	format, err := formatByMIMEType(image.MIMEType())
	if err != nil {
		return domain.Media{}, err
	}

	resized, err := resizeImage(image.Bytes(), format, width, imageSvc.interpol)
	if err != nil {
		return domain.Media{}, fmt.Errorf("resize image: %w", err)
	}

	if err := imageSvc.cacheRepo.Store(ctx, domain.NewBlob(cacheID, resized)); err != nil {
		return domain.Media{}, fmt.Errorf("store cache: %w", err)
	}

	return image.WithData(resized), nil
}
