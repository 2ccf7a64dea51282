package tree

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mkrupp/inkspira/internal/domain"
)

var (
	ErrInvalidPath    = fmt.Errorf("%w: invalid path", domain.ErrInvalidArgument)
	ErrInvalidOrderBy = fmt.Errorf("%w: invalid order-by field", domain.ErrInvalidArgument)
	ErrNodeNotFound   = fmt.Errorf("%w: node", domain.ErrNotFound)
)

//nolint:gochecknoglobals
var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Query selects direct children of a node ordered by one of their fields.
// EqualTo, StartAt and EndAt compare against that field; bounds are inclusive.
// At most one of LimitToFirst and LimitToLast should be set.
type Query struct {
	OrderBy      string
	EqualTo      any
	StartAt      any
	EndAt        any
	LimitToFirst int
	LimitToLast  int
}

// Child is one result of a Query.
type Child struct {
	Key   string
	Value []byte
}

// Repository is a path-addressed JSON document store.
type Repository interface {
	// Set replaces the node at path, and its descendants, with v.
	Set(ctx context.Context, path string, v any) error

	// Update shallow-merges fields into the object at path, creating it if absent.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the node at path and all its descendants. Deleting a
	// missing node is not an error.
	Delete(ctx context.Context, path string) error

	// Get decodes the node at path into dst. A node without a value of its own
	// decodes as an object of its children. Returns false if nothing exists at path.
	Get(ctx context.Context, path string, dst any) (bool, error)

	// Increment adds delta to the numeric field of the object at path and
	// returns the new value. A missing field counts as 0.
	Increment(ctx context.Context, path string, field string, delta int64) (int64, error)

	// Query returns the children of path selected by q.
	Query(ctx context.Context, path string, q Query) ([]Child, error)

	// Close releases the underlying storage.
	Close() error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// CleanPath validates path and returns it without leading or trailing slashes.
func CleanPath(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}

		if strings.ContainsAny(segment, ".#$[]") {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, segment)
		}
	}

	return path, nil
}

func validateQuery(q Query) error {
	if !fieldPattern.MatchString(q.OrderBy) {
		return fmt.Errorf("%w: %q", ErrInvalidOrderBy, q.OrderBy)
	}

	if q.LimitToFirst < 0 || q.LimitToLast < 0 || (q.LimitToFirst > 0 && q.LimitToLast > 0) {
		return fmt.Errorf("%w: invalid limit", domain.ErrInvalidArgument)
	}

	return nil
}
