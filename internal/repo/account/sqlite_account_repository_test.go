package account_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/repo/account"
)

func newRepo(t *testing.T) *account.SQLiteAccountRepository {
	t.Helper()

	repo, err := account.NewSQLiteAccountRepository(account.SQLiteAccountRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "authsvc.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteAccountRepository() error = %v", err)
	}

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func seedAccount(t *testing.T, repo account.Repository, id, email string) domain.Account {
	t.Helper()

	acc := domain.Account{
		ID:           id,
		Email:        email,
		PasswordHash: []byte("hash-" + id),
		CreatedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := repo.CreateAccount(context.Background(), acc); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	return acc
}

func TestSQLiteAccountRepository_Accounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)
	want := seedAccount(t, repo, "acc-1", "ada@example.com")

	if err := repo.CreateAccount(ctx, want); !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Errorf("CreateAccount(duplicate) error = %v, want %v", err, domain.ErrUserAlreadyExists)
	}

	got, found, err := repo.GetAccountByEmail(ctx, "ada@example.com")
	if err != nil || !found {
		t.Fatalf("GetAccountByEmail() = %v, %v", found, err)
	}

	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("GetAccountByEmail() mismatch (-want +got):\n%s", diff)
	}

	if _, found, _ := repo.GetAccountByID(ctx, "missing"); found {
		t.Error("GetAccountByID(missing) found an account")
	}

	if err := repo.UpdatePassword(ctx, "acc-1", []byte("new-hash")); err != nil {
		t.Fatal(err)
	}

	got, _, _ = repo.GetAccountByID(ctx, "acc-1")
	if string(got.PasswordHash) != "new-hash" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}

	if err := repo.UpdatePassword(ctx, "missing", nil); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("UpdatePassword(missing) error = %v", err)
	}

	if err := repo.DeleteAccount(ctx, "acc-1"); err != nil {
		t.Fatal(err)
	}

	if _, found, _ := repo.GetAccountByID(ctx, "acc-1"); found {
		t.Error("account still present after DeleteAccount")
	}
}

func TestSQLiteAccountRepository_Sessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seedAccount(t, repo, "acc-1", "ada@example.com")

	for _, id := range []string{"s1", "s2"} {
		if err := repo.CreateSession(ctx, domain.Session{
			ID:        id,
			AccountID: "acc-1",
			TokenHash: []byte("token-" + id),
			ExpiresAt: now.Add(time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
	}

	session, found, err := repo.GetSession(ctx, []byte("token-s1"))
	if err != nil || !found {
		t.Fatalf("GetSession() = %v, %v", found, err)
	}

	if !session.Active(now) || session.Active(now.Add(2*time.Hour)) {
		t.Errorf("Active() wrong for %+v", session)
	}

	if err := repo.RevokeSession(ctx, "s1", now); err != nil {
		t.Fatal(err)
	}

	if err := repo.RevokeSession(ctx, "s1", now.Add(time.Minute)); !errors.Is(err, domain.ErrInvalidSession) {
		t.Errorf("RevokeSession() twice error = %v, want %v", err, domain.ErrInvalidSession)
	}

	session, _, _ = repo.GetSession(ctx, []byte("token-s1"))
	if session.RevokedAt == nil || !session.RevokedAt.Equal(now) {
		t.Errorf("RevokedAt = %v, want %v", session.RevokedAt, now)
	}

	if err := repo.RevokeAccountSessions(ctx, "acc-1", now); err != nil {
		t.Fatal(err)
	}

	session, _, _ = repo.GetSession(ctx, []byte("token-s2"))
	if session.Active(now) {
		t.Error("session still active after RevokeAccountSessions")
	}

	if _, found, _ := repo.GetSession(ctx, []byte("unknown")); found {
		t.Error("GetSession(unknown) found a session")
	}
}

func TestSQLiteAccountRepository_PasswordResets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seedAccount(t, repo, "acc-1", "ada@example.com")

	for _, reset := range []domain.PasswordReset{
		{TokenHash: []byte("valid"), AccountID: "acc-1", ExpiresAt: now.Add(time.Hour)},
		{TokenHash: []byte("expired"), AccountID: "acc-1", ExpiresAt: now.Add(-time.Second)},
	} {
		if err := repo.CreatePasswordReset(ctx, reset); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid token", token: "valid"},
		{name: "token used twice", token: "valid", wantErr: domain.ErrInvalidResetToken},
		{name: "expired token", token: "expired", wantErr: domain.ErrInvalidResetToken},
		{name: "unknown token", token: "unknown", wantErr: domain.ErrInvalidResetToken},
	}

	for _, tt := range tests {
		reset, err := repo.ConsumePasswordReset(ctx, []byte(tt.token), now)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.wantErr)

			continue
		}

		if tt.wantErr == nil && (reset.AccountID != "acc-1" || reset.UsedAt == nil) {
			t.Errorf("%s: reset = %+v", tt.name, reset)
		}
	}
}
