package authsvc_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/repo/account"
)

// barrierAccountRepository holds every GetSession call until parties callers
// have read the session, so that all of them see it active.
type barrierAccountRepository struct {
	*account.SQLiteAccountRepository

	arrived sync.WaitGroup
}

func (r *barrierAccountRepository) GetSession(ctx context.Context, tokenHash []byte) (*domain.Session, bool, error) {
	session, found, err := r.SQLiteAccountRepository.GetSession(ctx, tokenHash)

	r.arrived.Done()
	r.arrived.Wait()

	return session, found, err
}

func TestAuthService_ConcurrentRefreshIsSingleUse(t *testing.T) {
	t.Parallel()

	const parties = 4

	repo, err := account.NewSQLiteAccountRepository(account.SQLiteAccountRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "authsvc.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteAccountRepository() error = %v", err)
	}

	t.Cleanup(func() { _ = repo.Close() })

	env := setupTestService(t)
	ctx := context.Background()

	svc := *env.svc
	svc.Accounts = repo

	if _, err := svc.Register(ctx, "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tokens, err := svc.Login(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	barrier := &barrierAccountRepository{SQLiteAccountRepository: repo}
	barrier.arrived.Add(parties)
	svc.Accounts = barrier

	errs := make([]error, parties)

	var wg sync.WaitGroup

	for i := range parties {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = svc.Refresh(ctx, tokens.RefreshToken)
		}()
	}

	wg.Wait()

	var succeeded int

	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, domain.ErrInvalidSession):
			t.Errorf("Refresh() error = %v, want %v", err, domain.ErrInvalidSession)
		}
	}

	if succeeded != 1 {
		t.Errorf("refresh token accepted %d times, want 1", succeeded)
	}
}
