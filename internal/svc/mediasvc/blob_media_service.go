package mediasvc

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/mkrupp/inkspira/internal/domain"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/infra/metrics"
	"github.com/mkrupp/inkspira/internal/repo/blob"
)

// BlobMediaService implements MediaService on three blob repositories:
// content keyed by hash, metadata keyed by media id, and for every content
// blob the list of media ids referencing it.
type BlobMediaService struct {
	dataRepo blob.Repository
	metaRepo blob.Repository
	refsRepo blob.Repository
	cfg      MediaConfig
	log      logging.Logger
}

var _ MediaService = (*BlobMediaService)(nil)

// NewBlobMediaService opens the data, meta and refs repositories through repoFactory.
func NewBlobMediaService(
	ctx context.Context,
	repoFactory blob.RepositoryFactory,
	cfg MediaConfig,
) (*BlobMediaService, error) {
	dataRepo, err := repoFactory(ctx, "data", "bin")
	if err != nil {
		return nil, fmt.Errorf("new data repository: %w", err)
	}

	refsRepo, err := repoFactory(ctx, "data", "refs")
	if err != nil {
		return nil, fmt.Errorf("new refs repository: %w", err)
	}

	metaRepo, err := repoFactory(ctx, "meta", "json")
	if err != nil {
		return nil, fmt.Errorf("new meta repository: %w", err)
	}

	return &BlobMediaService{
		dataRepo: dataRepo,
		metaRepo: metaRepo,
		refsRepo: refsRepo,
		cfg:      cfg,
		log:      logging.GetLogger("svc.mediasvc.blob_media_service"),
	}, nil
}

func (svc *BlobMediaService) MaxSize() int64 {
	return svc.cfg.MaxSize
}

func (svc *BlobMediaService) Store(ctx context.Context, media domain.Media) (err error) {
	log := svc.log.With(logging.Group("media",
		"id", media.ID(),
		"size", media.Size(),
		"type", media.MIMEType(),
		"owner", media.Owner(),
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "media store failed", "error", err)
		} else {
			log.DebugContext(ctx, "media stored")
		}
	}()

	if media.Size() > svc.cfg.MaxSize {
		return fmt.Errorf("%w: %d exceeds %d", domain.ErrMediaTooLarge, media.Size(), svc.cfg.MaxSize)
	}

	metaBlob, err := media.Meta().AsBlob()
	if err != nil {
		return fmt.Errorf("convert meta to blob: %w", err)
	}

	unlockMeta, err := svc.metaRepo.Lock(ctx, metaBlob.ID, true)
	if err != nil {
		return fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	dataBlob := media.AsBlob()

	unlockData, err := svc.dataRepo.Lock(ctx, dataBlob.ID, true)
	if err != nil {
		return fmt.Errorf("lock data: %w", err)
	}
	defer unlockData()

	if !svc.dataRepo.Exists(ctx, dataBlob.ID) {
		if err := svc.dataRepo.Store(ctx, dataBlob); err != nil {
			return fmt.Errorf("store data: %w", err)
		}

		metrics.MediaUploadedBytes.Add(float64(dataBlob.Size()))
	}

	if svc.metaRepo.Exists(ctx, metaBlob.ID) {
		return nil
	}

	if err := svc.metaRepo.Store(ctx, metaBlob); err != nil {
		return fmt.Errorf("store meta: %w", err)
	}

	refs, err := svc.fetchRefs(ctx, dataBlob.ID)
	if err != nil {
		return fmt.Errorf("fetch refs: %w", err)
	}

	if err := svc.storeRefs(ctx, dataBlob.ID, append(refs, metaBlob.ID)); err != nil {
		return fmt.Errorf("store refs: %w", err)
	}

	return nil
}

func (svc *BlobMediaService) Delete(
	ctx context.Context,
	mediaID domain.MediaID,
) (pruned bool, dataID domain.BlobID, err error) {
	log := svc.log.With(logging.Group("media", "id", mediaID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "media delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "media deleted", "pruned", pruned)
		}
	}()

	unlockMeta, err := svc.metaRepo.Lock(ctx, mediaID, true)
	if err != nil {
		return false, "", fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	meta, err := svc.fetchMeta(ctx, mediaID)
	if err != nil {
		return false, "", err
	}

	dataID = domain.BlobID(meta.Hash)
	log = log.With(logging.Group("media", "dataId", dataID, "owner", meta.Owner))

	if userID := context_.UserIDFromContext(ctx); userID == "" || userID != meta.Owner {
		return false, "", fmt.Errorf("%w: user %q does not own media %s", domain.ErrUnauthorized, userID, mediaID)
	}

	unlockData, err := svc.dataRepo.Lock(ctx, dataID, true)
	if err != nil {
		return false, dataID, fmt.Errorf("lock data: %w", err)
	}
	defer unlockData()

	pruned, err = svc.release(ctx, dataID, mediaID)
	if err != nil {
		return false, dataID, fmt.Errorf("release data: %w", err)
	}

	if err := svc.metaRepo.Delete(ctx, mediaID); err != nil {
		return pruned, dataID, fmt.Errorf("delete meta: %w", err)
	}

	return pruned, dataID, nil
}

func (svc *BlobMediaService) Fetch(ctx context.Context, mediaID domain.MediaID) (_ domain.Media, err error) {
	log := svc.log.With(logging.Group("media", "id", mediaID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "media fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "media fetched")
		}
	}()

	unlockMeta, err := svc.metaRepo.Lock(ctx, mediaID, false)
	if err != nil {
		return domain.Media{}, fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	meta, err := svc.fetchMeta(ctx, mediaID)
	if err != nil {
		return domain.Media{}, err
	}

	dataID := domain.BlobID(meta.Hash)

	unlockData, err := svc.dataRepo.Lock(ctx, dataID, false)
	if err != nil {
		return domain.Media{}, fmt.Errorf("lock data: %w", err)
	}
	defer unlockData()

	dataBlob, err := svc.dataRepo.Fetch(ctx, dataID)
	if err != nil {
		return domain.Media{}, fmt.Errorf("fetch data: %w", err)
	}

	return domain.NewMedia(dataBlob.Bytes(), meta), nil
}

func (svc *BlobMediaService) fetchMeta(ctx context.Context, mediaID domain.MediaID) (domain.MediaMeta, error) {
	if !svc.metaRepo.Exists(ctx, mediaID) {
		return domain.MediaMeta{}, fmt.Errorf("%w: %s", domain.ErrMediaNotFound, mediaID)
	}

	metaBlob, err := svc.metaRepo.Fetch(ctx, mediaID)
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("fetch meta: %w", err)
	}

	meta, err := domain.NewMediaMetaFromBlob(metaBlob)
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("decode meta: %w", err)
	}

	return meta, nil
}

// fetchRefs returns the media ids referencing the content blob dataID.
func (svc *BlobMediaService) fetchRefs(ctx context.Context, dataID domain.BlobID) ([]domain.BlobID, error) {
	if !svc.refsRepo.Exists(ctx, dataID) {
		return nil, nil
	}

	refsBlob, err := svc.refsRepo.Fetch(ctx, dataID)
	if err != nil {
		return nil, fmt.Errorf("fetch refs blob: %w", err)
	}

	var refs []domain.BlobID

	for _, line := range bytes.Split(refsBlob.Bytes(), []byte("\n")) {
		if len(line) > 0 {
			refs = append(refs, domain.BlobID(line))
		}
	}

	return refs, nil
}

func (svc *BlobMediaService) storeRefs(ctx context.Context, dataID domain.BlobID, refs []domain.BlobID) error {
	var buf bytes.Buffer

	for _, ref := range refs {
		buf.WriteString(ref.String())
		buf.WriteByte('\n')
	}

	if err := svc.refsRepo.Store(ctx, domain.NewBlob(dataID, buf.Bytes())); err != nil {
		return fmt.Errorf("store refs blob: %w", err)
	}

	return nil
}

// release drops mediaID from the references of dataID and deletes the content
// once nothing references it.
func (svc *BlobMediaService) release(ctx context.Context, dataID domain.BlobID, mediaID domain.MediaID) (bool, error) {
	refs, err := svc.fetchRefs(ctx, dataID)
	if err != nil {
		return false, fmt.Errorf("fetch refs: %w", err)
	}

	refs = slices.DeleteFunc(refs, func(ref domain.BlobID) bool { return ref == mediaID })

	if len(refs) > 0 {
		if err := svc.storeRefs(ctx, dataID, refs); err != nil {
			return false, fmt.Errorf("store refs: %w", err)
		}

		return false, nil
	}

	if err := svc.dataRepo.Delete(ctx, dataID); err != nil {
		return false, fmt.Errorf("delete data: %w", err)
	}

	if err := svc.refsRepo.Delete(ctx, dataID); err != nil {
		return false, fmt.Errorf("delete refs: %w", err)
	}

	return true, nil
}
