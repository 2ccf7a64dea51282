package tree

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/logging"
)

// SQLiteTreeRepositoryConfig holds configuration for the SQLite tree store.
type SQLiteTreeRepositoryConfig struct {
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/artsvc.db"`
}

// SQLiteTreeRepository stores every node with a value as one row keyed by its
// full path. Nodes without a value exist only through their descendants.
type SQLiteTreeRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteTreeRepository)(nil)

// NewSQLiteTreeRepository opens the database and creates the schema if needed.
func NewSQLiteTreeRepository(cfg SQLiteTreeRepositoryConfig) (*SQLiteTreeRepository, error) {
	log := logging.GetLogger("repo.tree.sqlite_tree_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", dsn(cfg.DatabasePath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.DatabasePath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS nodes (
			path   TEXT PRIMARY KEY,
			parent TEXT NOT NULL,
			key    TEXT NOT NULL,
			value  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS nodes_parent ON nodes (parent);
	`); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteTreeRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}

	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// descendantRange returns the half-open key range [lo, hi) holding every path
// below path. '0' is the byte after '/'.
func descendantRange(path string) (string, string) {
	return path + "/", path + "0"
}

func splitPath(path string) (string, string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}

	return path[:i], path[i+1:]
}

func ancestors(path string) []any {
	var out []any

	for parent, _ := splitPath(path); parent != ""; parent, _ = splitPath(parent) {
		out = append(out, parent)
	}

	return out
}

func (r *SQLiteTreeRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// put writes value at path, dropping any value held by an ancestor.
func put(ctx context.Context, tx *sql.Tx, path string, value []byte) error {
	if anc := ancestors(path); len(anc) > 0 {
		query := "DELETE FROM nodes WHERE path IN (?" + strings.Repeat(", ?", len(anc)-1) + ")"
		if _, err := tx.ExecContext(ctx, query, anc...); err != nil {
			return fmt.Errorf("delete ancestors: %w", err)
		}
	}

	parent, key := splitPath(path)

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO nodes (path, parent, key, value) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT (path) DO UPDATE SET value = excluded.value",
		path, parent, key, string(value),
	); err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}

	return nil
}

// Set implements Repository.Set.
func (r *SQLiteTreeRepository) Set(ctx context.Context, path string, v any) (err error) {
	log := r.log.With(logging.Group("node", "path", path))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "set node failed", "error", err)
		} else {
			log.DebugContext(ctx, "node set")
		}
	}()

	if path, err = CleanPath(path); err != nil {
		return err
	}

	value, err := json.Marshal(v)
	if err != nil {
		return errors.Join(domain.ErrInvalidArgument, fmt.Errorf("marshal value: %w", err))
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		lo, hi := descendantRange(path)
		if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE path >= ? AND path < ?", lo, hi); err != nil {
			return fmt.Errorf("delete descendants: %w", err)
		}

		return put(ctx, tx, path, value)
	})
}

// Update implements Repository.Update. A nil field value removes the field.
func (r *SQLiteTreeRepository) Update(ctx context.Context, path string, fields map[string]any) (err error) {
	log := r.log.With(logging.Group("node", "path", path, "fields", len(fields)))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "update node failed", "error", err)
		} else {
			log.DebugContext(ctx, "node updated")
		}
	}()

	if path, err = CleanPath(path); err != nil {
		return err
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		object := make(map[string]json.RawMessage)

		var current string

		err := tx.QueryRowContext(ctx, "SELECT value FROM nodes WHERE path = ?", path).Scan(&current)

		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("query node: %w", err)
		default:
			if err := json.Unmarshal([]byte(current), &object); err != nil {
				return errors.Join(domain.ErrInvalidArgument, fmt.Errorf("node is not an object: %w", err))
			}
		}

		for key, v := range fields {
			if v == nil {
				delete(object, key)

				continue
			}

			raw, err := json.Marshal(v)
			if err != nil {
				return errors.Join(domain.ErrInvalidArgument, fmt.Errorf("marshal field %q: %w", key, err))
			}

			object[key] = raw
		}

		value, err := json.Marshal(object)
		if err != nil {
			return fmt.Errorf("marshal node: %w", err)
		}

		return put(ctx, tx, path, value)
	})
}

// Delete implements Repository.Delete.
func (r *SQLiteTreeRepository) Delete(ctx context.Context, path string) (err error) {
	log := r.log.With(logging.Group("node", "path", path))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete node failed", "error", err)
		} else {
			log.DebugContext(ctx, "node deleted")
		}
	}()

	if path, err = CleanPath(path); err != nil {
		return err
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		lo, hi := descendantRange(path)

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM nodes WHERE path = ? OR (path >= ? AND path < ?)", path, lo, hi,
		); err != nil {
			return fmt.Errorf("delete nodes: %w", err)
		}

		return nil
	})
}

// Get implements Repository.Get.
func (r *SQLiteTreeRepository) Get(ctx context.Context, path string, dst any) (bool, error) {
	path, err := CleanPath(path)
	if err != nil {
		return false, err
	}

	var value string

	err = r.db.QueryRowContext(ctx, "SELECT value FROM nodes WHERE path = ?", path).Scan(&value)

	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(value), dst); err != nil {
			return false, fmt.Errorf("unmarshal node: %w", err)
		}

		return true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("query node: %w", err)
	}

	children, err := r.subtree(ctx, path)
	if err != nil || children == nil {
		return false, err
	}

	raw, err := json.Marshal(children)
	if err != nil {
		return false, fmt.Errorf("marshal subtree: %w", err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("unmarshal subtree: %w", err)
	}

	return true, nil
}

// subtree assembles the descendants of path into nested objects. It returns
// nil if path has no descendants.
func (r *SQLiteTreeRepository) subtree(ctx context.Context, path string) (map[string]any, error) {
	lo, hi := descendantRange(path)

	rows, err := r.db.QueryContext(ctx,
		"SELECT path, value FROM nodes WHERE path >= ? AND path < ? ORDER BY path", lo, hi,
	)
	if err != nil {
		return nil, fmt.Errorf("query subtree: %w", err)
	}
	defer rows.Close()

	var root map[string]any

	for rows.Next() {
		var nodePath, value string
		if err := rows.Scan(&nodePath, &value); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}

		if root == nil {
			root = make(map[string]any)
		}

		segments := strings.Split(strings.TrimPrefix(nodePath, lo), "/")
		node := root

		for _, segment := range segments[:len(segments)-1] {
			next, ok := node[segment].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[segment] = next
			}

			node = next
		}

		node[segments[len(segments)-1]] = json.RawMessage(value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subtree: %w", err)
	}

	return root, nil
}

// Increment implements Repository.Increment.
func (r *SQLiteTreeRepository) Increment(
	ctx context.Context,
	path string,
	field string,
	delta int64,
) (value int64, err error) {
	log := r.log.With(logging.Group("node", "path", path, "field", field, "delta", delta))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "increment failed", "error", err)
		} else {
			log.DebugContext(ctx, "incremented", "value", value)
		}
	}()

	if path, err = CleanPath(path); err != nil {
		return 0, err
	}

	if !fieldPattern.MatchString(field) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOrderBy, field)
	}

	jsonPath := "$." + field

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"UPDATE nodes SET value = json_set(value, ?, COALESCE(json_extract(value, ?), 0) + ?) "+
				"WHERE path = ? AND json_type(value) = 'object' "+
				"RETURNING json_extract(value, ?)",
			jsonPath, jsonPath, delta, path, jsonPath,
		).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, path)
		} else if err != nil {
			return fmt.Errorf("increment field: %w", err)
		}

		return nil
	})

	return value, err
}

// Query implements Repository.Query.
func (r *SQLiteTreeRepository) Query(ctx context.Context, path string, q Query) ([]Child, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	if err := validateQuery(q); err != nil {
		return nil, err
	}

	field := "json_extract(value, '$." + q.OrderBy + "')"
	query := "SELECT key, value FROM nodes WHERE parent = ?"
	args := []any{path}

	if q.EqualTo != nil {
		query += " AND " + field + " = ?"
		args = append(args, sqlValue(q.EqualTo))
	}

	if q.StartAt != nil {
		query += " AND " + field + " >= ?"
		args = append(args, sqlValue(q.StartAt))
	}

	if q.EndAt != nil {
		query += " AND " + field + " <= ?"
		args = append(args, sqlValue(q.EndAt))
	}

	if q.LimitToLast > 0 {
		query += " ORDER BY " + field + " DESC, key DESC LIMIT ?"
		args = append(args, q.LimitToLast)
	} else {
		query += " ORDER BY " + field + " ASC, key ASC"

		if q.LimitToFirst > 0 {
			query += " LIMIT ?"
			args = append(args, q.LimitToFirst)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	var children []Child

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}

		children = append(children, Child{Key: key, Value: []byte(value)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}

	if q.LimitToLast > 0 {
		slices.Reverse(children)
	}

	return children, nil
}

// sqlValue converts v to what json_extract yields for the same JSON value.
func sqlValue(v any) any {
	switch v := v.(type) {
	case bool:
		if v {
			return 1
		}

		return 0
	case time.Time:
		raw, _ := json.Marshal(v)

		return strings.Trim(string(raw), `"`)
	default:
		return v
	}
}

// Close implements Repository.Close.
func (r *SQLiteTreeRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
