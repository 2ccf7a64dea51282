package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/logging"
)

// SQLiteAccountRepositoryConfig holds configuration for the SQLite account repository.
type SQLiteAccountRepositoryConfig struct {
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/authsvc.db"`
}

// SQLiteAccountRepository implements Repository using SQLite.
type SQLiteAccountRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteAccountRepository)(nil)

// SQLiteAccountRepositoryFactory returns a RepositoryFactory for cfg.
func SQLiteAccountRepositoryFactory(cfg SQLiteAccountRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteAccountRepository(cfg)
	}
}

// NewSQLiteAccountRepository opens the database and creates the schema if needed.
func NewSQLiteAccountRepository(cfg SQLiteAccountRepositoryConfig) (*SQLiteAccountRepository, error) {
	log := logging.GetLogger("repo.account.sqlite_account_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", "file:"+cfg.DatabasePath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLiteAccountRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT    PRIMARY KEY,
			email         TEXT    UNIQUE NOT NULL,
			password_hash BLOB    NOT NULL,
			created_at    INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT    PRIMARY KEY,
			account_id TEXT    NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
			token_hash BLOB    UNIQUE NOT NULL,
			expires_at INTEGER NOT NULL,
			revoked_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS sessions_account ON sessions (account_id);
		CREATE TABLE IF NOT EXISTS password_resets (
			token_hash BLOB    PRIMARY KEY,
			account_id TEXT    NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
			expires_at INTEGER NOT NULL,
			used_at    INTEGER
		);
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

func (r *SQLiteAccountRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	//nolint:wrapcheck
	return r.db.ExecContext(ctx, query, args...)
}

func isConstraintViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}

	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}

func toTime(nanos sql.NullInt64) *time.Time {
	if !nanos.Valid {
		return nil
	}

	t := time.Unix(0, nanos.Int64).UTC()

	return &t
}

// CreateAccount implements Repository.CreateAccount.
func (r *SQLiteAccountRepository) CreateAccount(ctx context.Context, account domain.Account) error {
	_, err := r.exec(ctx,
		"INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		account.ID,
		account.Email,
		account.PasswordHash,
		account.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			err = errors.Join(domain.ErrUserAlreadyExists, err)
		}

		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

func (r *SQLiteAccountRepository) getAccount(
	ctx context.Context,
	where string,
	arg any,
) (*domain.Account, bool, error) {
	var (
		account   domain.Account
		createdAt int64
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM accounts WHERE "+where+" = ?",
		arg,
	).Scan(&account.ID, &account.Email, &account.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("query account: %w", err)
	}

	account.CreatedAt = time.Unix(0, createdAt).UTC()

	return &account, true, nil
}

// GetAccountByEmail implements Repository.GetAccountByEmail.
func (r *SQLiteAccountRepository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, bool, error) {
	return r.getAccount(ctx, "email", email)
}

// GetAccountByID implements Repository.GetAccountByID.
func (r *SQLiteAccountRepository) GetAccountByID(ctx context.Context, id string) (*domain.Account, bool, error) {
	return r.getAccount(ctx, "id", id)
}

// UpdatePassword implements Repository.UpdatePassword.
func (r *SQLiteAccountRepository) UpdatePassword(ctx context.Context, accountID string, passwordHash []byte) error {
	res, err := r.exec(ctx, "UPDATE accounts SET password_hash = ? WHERE id = ?", passwordHash, accountID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update password: %w", domain.ErrUserNotFound)
	}

	return nil
}

// DeleteAccount implements Repository.DeleteAccount.
func (r *SQLiteAccountRepository) DeleteAccount(ctx context.Context, accountID string) error {
	res, err := r.exec(ctx, "DELETE FROM accounts WHERE id = ?", accountID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete account: %w", domain.ErrUserNotFound)
	}

	return nil
}

// CreateSession implements Repository.CreateSession.
func (r *SQLiteAccountRepository) CreateSession(ctx context.Context, session domain.Session) error {
	if _, err := r.exec(ctx,
		"INSERT INTO sessions (id, account_id, token_hash, expires_at) VALUES (?, ?, ?, ?)",
		session.ID,
		session.AccountID,
		session.TokenHash,
		session.ExpiresAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetSession implements Repository.GetSession.
func (r *SQLiteAccountRepository) GetSession(ctx context.Context, tokenHash []byte) (*domain.Session, bool, error) {
	var (
		session   domain.Session
		expiresAt int64
		revokedAt sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT id, account_id, token_hash, expires_at, revoked_at FROM sessions WHERE token_hash = ?",
		tokenHash,
	).Scan(&session.ID, &session.AccountID, &session.TokenHash, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("query session: %w", err)
	}

	session.ExpiresAt = time.Unix(0, expiresAt).UTC()
	session.RevokedAt = toTime(revokedAt)

	return &session, true, nil
}

// RevokeSession implements Repository.RevokeSession.
func (r *SQLiteAccountRepository) RevokeSession(ctx context.Context, sessionID string, at time.Time) error {
	res, err := r.exec(ctx,
		"UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL",
		at.UnixNano(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	revoked, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	if revoked == 0 {
		return fmt.Errorf("%w: %s already revoked", domain.ErrInvalidSession, sessionID)
	}

	return nil
}

// RevokeAccountSessions implements Repository.RevokeAccountSessions.
func (r *SQLiteAccountRepository) RevokeAccountSessions(ctx context.Context, accountID string, at time.Time) error {
	if _, err := r.exec(ctx,
		"UPDATE sessions SET revoked_at = ? WHERE account_id = ? AND revoked_at IS NULL",
		at.UnixNano(), accountID,
	); err != nil {
		return fmt.Errorf("revoke account sessions: %w", err)
	}

	return nil
}

// CreatePasswordReset implements Repository.CreatePasswordReset.
func (r *SQLiteAccountRepository) CreatePasswordReset(ctx context.Context, reset domain.PasswordReset) error {
	if _, err := r.exec(ctx,
		"INSERT INTO password_resets (token_hash, account_id, expires_at) VALUES (?, ?, ?)",
		reset.TokenHash,
		reset.AccountID,
		reset.ExpiresAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}

	return nil
}

// ConsumePasswordReset implements Repository.ConsumePasswordReset.
func (r *SQLiteAccountRepository) ConsumePasswordReset(
	ctx context.Context,
	tokenHash []byte,
	now time.Time,
) (*domain.PasswordReset, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	var (
		reset     domain.PasswordReset
		expiresAt int64
	)

	err := r.db.QueryRowContext(ctx,
		"UPDATE password_resets SET used_at = ? "+
			"WHERE token_hash = ? AND used_at IS NULL AND expires_at > ? "+
			"RETURNING token_hash, account_id, expires_at",
		now.UnixNano(), tokenHash, now.UnixNano(),
	).Scan(&reset.TokenHash, &reset.AccountID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvalidResetToken
	} else if err != nil {
		return nil, fmt.Errorf("consume password reset: %w", err)
	}

	usedAt := now.UTC()
	reset.ExpiresAt = time.Unix(0, expiresAt).UTC()
	reset.UsedAt = &usedAt

	return &reset, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteAccountRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
