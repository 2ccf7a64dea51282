package mediasvc_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mkrupp/inkspira/internal/domain"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/repo/blob"
	"github.com/mkrupp/inkspira/internal/svc/mediasvc"
)

var errStore = errors.New("store failed")

type mockRepository struct {
	m        sync.Mutex
	blobs    map[domain.BlobID][]byte
	storeErr error
}

func newMockRepo() *mockRepository {
	return &mockRepository{blobs: make(map[domain.BlobID][]byte)}
}

func (m *mockRepository) Lock(context.Context, domain.BlobID, bool) (func(), error) {
	return func() {}, nil
}

func (m *mockRepository) Store(_ context.Context, b *domain.Blob) error {
	if m.storeErr != nil {
		return m.storeErr
	}

	m.m.Lock()
	defer m.m.Unlock()

	m.blobs[b.ID] = b.Body

	return nil
}

func (m *mockRepository) Fetch(_ context.Context, id domain.BlobID) (*domain.Blob, error) {
	m.m.Lock()
	defer m.m.Unlock()

	data, ok := m.blobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return domain.NewBlob(id, data), nil
}

func (m *mockRepository) Delete(_ context.Context, id domain.BlobID) error {
	m.m.Lock()
	defer m.m.Unlock()

	delete(m.blobs, id)

	return nil
}

func (m *mockRepository) DeleteAll(context.Context, domain.BlobID, string) error {
	return nil
}

func (m *mockRepository) Exists(_ context.Context, id domain.BlobID) bool {
	m.m.Lock()
	defer m.m.Unlock()

	_, ok := m.blobs[id]

	return ok
}

type repos struct {
	data, meta, refs *mockRepository
}

func setupMediaService(t *testing.T) (*mediasvc.BlobMediaService, repos) {
	t.Helper()

	r := repos{data: newMockRepo(), meta: newMockRepo(), refs: newMockRepo()}

	factory := func(_ context.Context, name, ext string) (blob.Repository, error) {
		switch {
		case name == "data" && ext == "bin":
			return r.data, nil
		case name == "meta":
			return r.meta, nil
		default:
			return r.refs, nil
		}
	}

	svc, err := mediasvc.NewBlobMediaService(context.Background(), factory, mediasvc.MediaConfig{MaxSize: 1 << 20})
	if err != nil {
		t.Fatalf("NewBlobMediaService() error = %v", err)
	}

	return svc, r
}

func asUser(userID string) context.Context {
	if userID == "" {
		return context.Background()
	}

	return context_.WithPrincipal(context.Background(), domain.Principal{UserID: userID})
}

func newMedia(data, owner string) domain.Media {
	return domain.NewMedia([]byte(data), domain.MediaMeta{
		Filename: "art.png",
		MIMEType: "image/png",
		Owner:    owner,
	})
}

func TestBlobMediaService_Store(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		media   domain.Media
		setup   func(r repos)
		wantErr error
	}{
		{name: "stores new media", media: newMedia("pixels", "alice")},
		{
			name:    "data store error",
			media:   newMedia("pixels", "alice"),
			setup:   func(r repos) { r.data.storeErr = errStore },
			wantErr: errStore,
		},
		{
			name:    "media too large",
			media:   domain.NewMedia(make([]byte, 2<<20), domain.MediaMeta{Filename: "large.png", Owner: "alice"}),
			wantErr: domain.ErrMediaTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, r := setupMediaService(t)
			if tt.setup != nil {
				tt.setup(r)
			}

			ctx := asUser("alice")

			err := svc.Store(ctx, tt.media)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Store() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				return
			}

			if !r.data.Exists(ctx, domain.BlobID(tt.media.Hash())) {
				t.Error("data blob was not stored")
			}

			if !r.meta.Exists(ctx, tt.media.ID()) {
				t.Error("meta blob was not stored")
			}
		})
	}
}

func TestBlobMediaService_FetchIsPublic(t *testing.T) {
	t.Parallel()

	svc, _ := setupMediaService(t)
	media := newMedia("pixels", "alice")

	if err := svc.Store(asUser("alice"), media); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	for _, user := range []string{"alice", "bob", ""} {
		got, err := svc.Fetch(asUser(user), media.ID())
		if err != nil {
			t.Fatalf("Fetch() as %q error = %v", user, err)
		}

		if string(got.Bytes()) != "pixels" || got.Owner() != "alice" {
			t.Errorf("Fetch() as %q = %q owned by %q", user, got.Bytes(), got.Owner())
		}
	}

	if _, err := svc.Fetch(context.Background(), "nonexistent"); !errors.Is(err, domain.ErrMediaNotFound) {
		t.Errorf("Fetch() nonexistent error = %v, want %v", err, domain.ErrMediaNotFound)
	}
}

func TestBlobMediaService_Delete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		user    string
		mediaID func(domain.Media) domain.MediaID
		wantErr error
	}{
		{name: "owner deletes", user: "alice"},
		{name: "other user", user: "bob", wantErr: domain.ErrUnauthorized},
		{name: "anonymous", user: "", wantErr: domain.ErrUnauthorized},
		{
			name:    "nonexistent media",
			user:    "alice",
			mediaID: func(domain.Media) domain.MediaID { return "nonexistent" },
			wantErr: domain.ErrMediaNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, r := setupMediaService(t)
			media := newMedia("pixels", "alice")

			if err := svc.Store(asUser("alice"), media); err != nil {
				t.Fatalf("Store() error = %v", err)
			}

			id := media.ID()
			if tt.mediaID != nil {
				id = tt.mediaID(media)
			}

			ctx := asUser(tt.user)

			pruned, dataID, err := svc.Delete(ctx, id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				if !r.meta.Exists(ctx, media.ID()) {
					t.Error("meta blob deleted on failure")
				}

				return
			}

			if !pruned || r.data.Exists(ctx, dataID) {
				t.Errorf("Delete() pruned = %v, data exists = %v", pruned, r.data.Exists(ctx, dataID))
			}

			if r.meta.Exists(ctx, id) {
				t.Error("meta blob was not deleted")
			}
		})
	}
}

func TestBlobMediaService_SharedContent(t *testing.T) {
	t.Parallel()

	svc, r := setupMediaService(t)
	first := newMedia("same pixels", "alice")
	second := newMedia("same pixels", "bob")

	if first.ID() == second.ID() {
		t.Fatal("uploads of different owners share a media id")
	}

	if err := svc.Store(asUser("alice"), first); err != nil {
		t.Fatalf("Store() first error = %v", err)
	}

	if err := svc.Store(asUser("bob"), second); err != nil {
		t.Fatalf("Store() second error = %v", err)
	}

	pruned, dataID, err := svc.Delete(asUser("alice"), first.ID())
	if err != nil {
		t.Fatalf("Delete() first error = %v", err)
	}

	if pruned || !r.data.Exists(context.Background(), dataID) {
		t.Fatalf("shared content pruned while still referenced")
	}

	if _, err := svc.Fetch(context.Background(), second.ID()); err != nil {
		t.Fatalf("Fetch() second error = %v", err)
	}

	pruned, _, err = svc.Delete(asUser("bob"), second.ID())
	if err != nil {
		t.Fatalf("Delete() second error = %v", err)
	}

	if !pruned || r.data.Exists(context.Background(), dataID) {
		t.Error("content not pruned after last reference was deleted")
	}
}
