package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/logging"
)

var ErrInvalidBlobID = fmt.Errorf("%w: invalid blob id", domain.ErrInvalidArgument)

const (
	dirPrefixLength = 2 // 32^2 = 1024 directories per level
	dirPrefixDepth  = 2
	idMinLength     = dirPrefixDepth * dirPrefixLength
)

// FileSystemBlobRepositoryConfig holds configuration for the filesystem blob repository.
type FileSystemBlobRepositoryConfig struct {
	Basedir string `env:"BASEDIR" default:"var/storage/blob"`
}

// FileSystemBlobRepositoryFactory returns a RepositoryFactory creating
// repositories below cfg.Basedir. All repositories created by one factory
// share a lock table, so the same id is locked consistently across them.
func FileSystemBlobRepositoryFactory(cfg FileSystemBlobRepositoryConfig) RepositoryFactory {
	locks := newLockTable()

	return func(ctx context.Context, subdir string, ext string) (Repository, error) {
		return newFileSystemBlobRepository(ctx, subdir, ext, cfg, locks)
	}
}

// NewFileSystemBlobRepository creates a repository storing blobs as
// <basedir>/<subdir>/<ab>/<cd>/<id>.<ext>.
func NewFileSystemBlobRepository(
	ctx context.Context,
	subdir string,
	ext string,
	cfg FileSystemBlobRepositoryConfig,
) (*FileSystemRepository, error) {
	return newFileSystemBlobRepository(ctx, subdir, ext, cfg, newLockTable())
}

func newFileSystemBlobRepository(
	ctx context.Context,
	subdir string,
	ext string,
	cfg FileSystemBlobRepositoryConfig,
	locks *lockTable,
) (*FileSystemRepository, error) {
	log := logging.GetLogger("repo.blob.filesystem_repository").With(
		logging.Group("repo",
			"basedir", cfg.Basedir,
			"subdir", subdir,
			"ext", ext,
		),
	)

	repo := &FileSystemRepository{
		subdir: subdir,
		ext:    ext,
		cfg:    cfg,
		log:    log,
		locks:  locks,
	}

	if err := os.MkdirAll(filepath.Join(cfg.Basedir, subdir), 0o755); err != nil {
		log.ErrorContext(ctx, "init storage failed", "error", err)

		return nil, fmt.Errorf("init repo: mkdir all: %w", err)
	}

	log.DebugContext(ctx, "storage initialized")

	return repo, nil
}

// FileSystemRepository implements Repository on the local filesystem, sharding
// blobs into nested directories by id prefix.
type FileSystemRepository struct {
	subdir string
	ext    string
	cfg    FileSystemBlobRepositoryConfig
	log    logging.Logger
	locks  *lockTable
}

var _ Repository = (*FileSystemRepository)(nil)

// Lock implements Repository.Lock.
func (fsRepo *FileSystemRepository) Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error) {
	if err := validateID(id); err != nil {
		return func() {}, err
	}

	log := fsRepo.log.With(logging.Group("blob", "id", id, "exclusive", exclusive))
	release := fsRepo.locks.acquire(fsRepo.subdir+"/"+id.String(), exclusive)

	log.DebugContext(ctx, "lock acquired")

	return func() {
		release()
		log.DebugContext(ctx, "lock released")
	}, nil
}

// Exists implements Repository.Exists.
func (fsRepo *FileSystemRepository) Exists(_ context.Context, id domain.BlobID) bool {
	if validateID(id) != nil {
		return false
	}

	_, err := os.Stat(fsRepo.GetFilename(id))

	return err == nil
}

// Store implements Repository.Store. The content is written to a temporary
// file and renamed into place, so readers never observe a partial blob.
func (fsRepo *FileSystemRepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	filename := fsRepo.GetFilename(blob.ID)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blob.ID, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	if err := validateID(blob.ID); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(blob.Bytes()); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// Fetch implements Repository.Fetch.
func (fsRepo *FileSystemRepository) Fetch(ctx context.Context, id domain.BlobID) (blob *domain.Blob, err error) {
	filename := fsRepo.GetFilename(id)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob fetched", "size", blob.Size())
		}
	}()

	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return domain.NewBlob(id, data), nil
}

// Delete implements Repository.Delete.
func (fsRepo *FileSystemRepository) Delete(ctx context.Context, id domain.BlobID) (err error) {
	filename := fsRepo.GetFilename(id)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted")
		}
	}()

	if err := validateID(id); err != nil {
		return err
	}

	if err := os.Remove(filename); err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	return nil
}

// DeleteAll implements Repository.DeleteAll.
func (fsRepo *FileSystemRepository) DeleteAll(ctx context.Context, id domain.BlobID, pattern string) (err error) {
	var deleted int

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "pattern", pattern, "deleted", deleted))
		if err != nil {
			log.ErrorContext(ctx, "blob delete pattern failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob pattern deleted")
		}
	}()

	if err := validateID(id); err != nil {
		return err
	}

	matches, err := filepath.Glob(fsRepo.getBasename(id) + pattern + "." + fsRepo.ext)
	if err != nil {
		return fmt.Errorf("glob: %w", err)
	}

	for _, filename := range matches {
		if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove: %w", err)
		}

		deleted++
	}

	return nil
}

// GetFilename returns the full filesystem path for a blob with the given id.
func (fsRepo *FileSystemRepository) GetFilename(id domain.BlobID) string {
	return fsRepo.getBasename(id) + "." + fsRepo.ext
}

// getBasename shards by the first characters of the id, left-padded with
// zeros for short ids:
//
//	<basedir>/<subdir>/5f/56/5f56692f0df9ff68.
func (fsRepo *FileSystemRepository) getBasename(id domain.BlobID) string {
	basename := id.String()
	padded := strings.Repeat("0", max(0, idMinLength-len(basename))) + basename

	parts := []string{fsRepo.cfg.Basedir, fsRepo.subdir}
	for i := 0; i < idMinLength; i += dirPrefixLength {
		parts = append(parts, padded[i:i+dirPrefixLength])
	}

	return filepath.Join(append(parts, basename)...)
}

func validateID(id domain.BlobID) error {
	s := id.String()
	if s == "" || strings.ContainsAny(s, `/\*?[`) || strings.HasPrefix(s, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidBlobID, s)
	}

	return nil
}
