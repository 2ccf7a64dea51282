package artsvc_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/clock"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/repo/tree"
	"github.com/mkrupp/inkspira/internal/svc/artsvc"
)

type mockAccount struct {
	id       string
	password string
}

// mockAuthClient issues access tokens of the form "token-<userID>".
type mockAuthClient struct {
	mu       sync.Mutex
	accounts map[string]mockAccount
	deleted  []string
	resets   []string
}

func newMockAuthClient() *mockAuthClient {
	return &mockAuthClient{accounts: make(map[string]mockAccount)}
}

func (m *mockAuthClient) Validate(_ context.Context, token string) (domain.Principal, error) {
	userID, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return domain.Principal{}, domain.ErrInvalidAuthToken
	}

	return domain.Principal{UserID: userID}, nil
}

func (m *mockAuthClient) Register(_ context.Context, email, password string) (domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[email]; ok {
		return domain.Principal{}, domain.ErrUserAlreadyExists
	}

	id := fmt.Sprintf("user%d", len(m.accounts)+1)
	m.accounts[email] = mockAccount{id: id, password: password}

	return domain.Principal{UserID: id, Email: email}, nil
}

func (m *mockAuthClient) Login(_ context.Context, email, password string) (domain.AuthTokenResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[email]
	if !ok || account.password != password {
		return domain.AuthTokenResponse{}, domain.ErrInvalidCredentials
	}

	return domain.AuthTokenResponse{
		UserID:       account.id,
		Email:        email,
		AccessToken:  "token-" + account.id,
		RefreshToken: "refresh-" + account.id,
		ExpiresIn:    3600,
	}, nil
}

func (m *mockAuthClient) Logout(context.Context, string) error {
	return nil
}

func (m *mockAuthClient) Refresh(_ context.Context, refreshToken string) (domain.AuthTokenResponse, error) {
	userID, ok := strings.CutPrefix(refreshToken, "refresh-")
	if !ok {
		return domain.AuthTokenResponse{}, domain.ErrInvalidSession
	}

	//nolint:exhaustruct
	return domain.AuthTokenResponse{UserID: userID, AccessToken: "token-" + userID, RefreshToken: refreshToken}, nil
}

func (m *mockAuthClient) RequestPasswordReset(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resets = append(m.resets, email)

	return nil
}

func (m *mockAuthClient) ConfirmPasswordReset(_ context.Context, token, _ string) error {
	if token != "reset-token" {
		return domain.ErrInvalidResetToken
	}

	return nil
}

func (m *mockAuthClient) DeleteAccount(_ context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleted = append(m.deleted, accessToken)

	return nil
}

// mockImageClient records uploads and answers with sequential media ids.
type mockImageClient struct {
	mu      sync.Mutex
	uploads []string
	deleted []string
	err     error
}

func (m *mockImageClient) UploadImage(_ context.Context, filename string, data []byte) (domain.UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return domain.UploadResult{}, m.err
	}

	m.uploads = append(m.uploads, filename)
	id := fmt.Sprintf("media%d", len(m.uploads))

	return domain.UploadResult{
		ID:        id,
		Filename:  filename,
		SecureURL: "https://cdn.example.com/media/" + id,
		Format:    "png",
		Bytes:     int64(len(data)),
		Width:     640,
		Height:    480,
	}, nil
}

func (m *mockImageClient) DeleteImage(_ context.Context, mediaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleted = append(m.deleted, mediaID)

	return nil
}

func (m *mockImageClient) uploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.uploads)
}

type testEnv struct {
	repos  *artsvc.Repositories
	store  *tree.SQLiteTreeRepository
	auth   *mockAuthClient
	images *mockImageClient
	clock  *clock.MockClock
	cfg    artsvc.ArtConfig
}

//nolint:gochecknoglobals
var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := tree.NewSQLiteTreeRepository(tree.SQLiteTreeRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "artsvc.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteTreeRepository() error = %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store:  store,
		auth:   newMockAuthClient(),
		images: &mockImageClient{},
		clock:  clock.NewMockClock(testNow),
		cfg: artsvc.ArtConfig{
			TrendingWindow:   7 * 24 * time.Hour,
			DefaultLimit:     20,
			MaxLimit:         100,
			ThumbnailWidth:   400,
			FetchConcurrency: 4,
		},
	}

	env.repos = artsvc.NewRepositories(store, env.auth, env.images, env.clock, env.cfg)

	return env
}

// signUp registers a user and returns a context authenticated as that user.
func (env *testEnv) signUp(t *testing.T, email, displayName string) context.Context {
	t.Helper()

	res := env.repos.Auth.SignUp(context.Background(), email, "secret123", displayName)
	if !res.IsSuccess() {
		t.Fatalf("SignUp(%q) = %s", email, res.MessageOr(""))
	}

	session := res.ValueOr(artsvc.AuthSession{})

	return asUser(session.UserID)
}

func asUser(userID string) context.Context {
	ctx := context_.WithPrincipal(context.Background(), domain.Principal{UserID: userID})

	return context_.WithAccessToken(ctx, "token-"+userID)
}

// createArtwork creates a public artwork of the caller of ctx.
func (env *testEnv) createArtwork(t *testing.T, ctx context.Context, title string) domain.Artwork {
	t.Helper()

	//nolint:exhaustruct
	res := env.repos.Artworks.CreateArtwork(ctx, domain.Artwork{
		Title:    title,
		Category: "Digital Art",
		ImageURL: "https://cdn.example.com/media/" + title,
		IsPublic: true,
	})
	if !res.IsSuccess() {
		t.Fatalf("CreateArtwork(%q) = %s", title, res.MessageOr(""))
	}

	return res.ValueOr(domain.Artwork{})
}

func mustValue[T any](t *testing.T, res domain.Result[T]) T {
	t.Helper()

	var zero T

	if !res.IsSuccess() {
		t.Fatalf("result is not a success: %q (%s)", res.MessageOr(""), res.Code())
	}

	return res.ValueOr(zero)
}
