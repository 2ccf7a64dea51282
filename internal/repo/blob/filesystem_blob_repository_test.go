package blob_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mkrupp/inkspira/internal/domain"

	. "github.com/mkrupp/inkspira/internal/repo/blob"
)

func setupFileSystemBlobTestRepo(t *testing.T) *FileSystemRepository {
	t.Helper()

	repo, err := NewFileSystemBlobRepository(context.Background(), "test", "bin", FileSystemBlobRepositoryConfig{
		Basedir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	return repo
}

func storeBlob(t *testing.T, repo Repository, blob *domain.Blob) {
	t.Helper()

	unlock, err := repo.Lock(context.Background(), blob.ID, true)
	if err != nil {
		t.Fatalf("failed to lock blob: %v", err)
	}
	defer unlock()

	if err := repo.Store(context.Background(), blob); err != nil {
		t.Fatalf("failed to store blob: %v", err)
	}
}

func TestFileSystemBlobRepository_Store(t *testing.T) {
	t.Parallel()

	repo := setupFileSystemBlobTestRepo(t)

	tests := []struct {
		name     string
		blobs    []*domain.Blob
		wantBody []byte
	}{
		{
			name:     "handles new blob",
			blobs:    []*domain.Blob{domain.NewBlob("newblob", []byte("original content"))},
			wantBody: []byte("original content"),
		},
		{
			name: "replaces existing blob",
			blobs: []*domain.Blob{
				domain.NewBlob("existingblob", []byte("original content")),
				domain.NewBlob("existingblob", []byte("new")),
			},
			wantBody: []byte("new"),
		},
		{
			name:     "handles empty blob",
			blobs:    []*domain.Blob{domain.NewBlob("emptyblob", []byte{})},
			wantBody: []byte{},
		},
		{
			name:     "handles short id",
			blobs:    []*domain.Blob{domain.NewBlob("a", []byte("short"))},
			wantBody: []byte("short"),
		},
		{
			name:     "handles large blob",
			blobs:    []*domain.Blob{domain.NewBlob("largeblob", make([]byte, 8<<20))},
			wantBody: make([]byte, 8<<20),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for _, blob := range tt.blobs {
				storeBlob(t, repo, blob)
			}

			content, err := os.ReadFile(repo.GetFilename(tt.blobs[0].ID))
			if err != nil {
				t.Fatalf("failed to read stored file: %v", err)
			}

			if !bytes.Equal(tt.wantBody, content) {
				t.Errorf("content mismatch: want %d bytes, got %d bytes", len(tt.wantBody), len(content))
			}
		})
	}
}

func TestFileSystemBlobRepository_Fetch(t *testing.T) {
	t.Parallel()

	repo := setupFileSystemBlobTestRepo(t)
	storeBlob(t, repo, domain.NewBlob("existingblob", []byte("test content")))

	blob, err := repo.Fetch(context.Background(), "existingblob")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if string(blob.Bytes()) != "test content" {
		t.Errorf("Fetch() = %q", blob.Bytes())
	}

	_, err = repo.Fetch(context.Background(), "missingblob")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Fetch(missing) error = %v, want os.ErrNotExist", err)
	}

	if domain.CodeOf(err) != domain.CodeNotFound {
		t.Errorf("CodeOf(Fetch(missing)) = %q", domain.CodeOf(err))
	}

	if _, err := repo.Fetch(context.Background(), "../escape"); !errors.Is(err, ErrInvalidBlobID) {
		t.Errorf("Fetch(../escape) error = %v", err)
	}
}

func TestFileSystemBlobRepository_Delete(t *testing.T) {
	t.Parallel()

	repo := setupFileSystemBlobTestRepo(t)
	ctx := context.Background()

	storeBlob(t, repo, domain.NewBlob("existingblob", []byte("test content")))

	if err := repo.Delete(ctx, "existingblob"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if repo.Exists(ctx, "existingblob") {
		t.Error("expected blob to be deleted, but it still exists")
	}

	if err := repo.Delete(ctx, "missingblob"); err == nil {
		t.Error("Delete(missing) succeeded")
	}
}

func TestFileSystemBlobRepository_DeleteAll(t *testing.T) {
	t.Parallel()

	repo := setupFileSystemBlobTestRepo(t)
	ctx := context.Background()

	for _, id := range []domain.BlobID{"hash_100", "hash_200", "hash", "hashother_100"} {
		storeBlob(t, repo, domain.NewBlob(id, []byte(id)))
	}

	if err := repo.DeleteAll(ctx, "hash", "_*"); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}

	tests := map[domain.BlobID]bool{
		"hash_100":      false,
		"hash_200":      false,
		"hash":          true,
		"hashother_100": true,
	}

	for id, want := range tests {
		if got := repo.Exists(ctx, id); got != want {
			t.Errorf("Exists(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestFileSystemBlobRepository_Lock(t *testing.T) {
	t.Parallel()

	repo := setupFileSystemBlobTestRepo(t)
	ctx := context.Background()

	t.Run("shared lock allows multiple readers", func(t *testing.T) {
		t.Parallel()

		unlock1, _ := repo.Lock(ctx, "sharedlock", false)
		defer unlock1()

		done := make(chan struct{})

		go func() {
			unlock2, _ := repo.Lock(ctx, "sharedlock", false)
			unlock2()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("second shared lock blocked")
		}
	})

	t.Run("exclusive lock blocks other locks", func(t *testing.T) {
		t.Parallel()

		unlock1, _ := repo.Lock(ctx, "exclusivelock", true)

		var (
			mu       sync.Mutex
			acquired bool
		)

		done := make(chan struct{})

		go func() {
			unlock2, _ := repo.Lock(ctx, "exclusivelock", false)
			mu.Lock()
			acquired = true
			mu.Unlock()
			unlock2()
			close(done)
		}()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		if acquired {
			t.Error("lock acquired while exclusively held")
		}
		mu.Unlock()

		unlock1()
		<-done
	})

	t.Run("can reacquire after release", func(t *testing.T) {
		t.Parallel()

		unlock1, _ := repo.Lock(ctx, "relock", true)
		unlock1()
		unlock1() // releasing twice is a no-op

		unlock2, err := repo.Lock(ctx, "relock", true)
		if err != nil {
			t.Fatalf("failed to reacquire lock: %v", err)
		}
		unlock2()
	})
}
