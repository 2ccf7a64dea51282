package tree_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/repo/tree"
)

type item struct {
	Name  string `json:"name"`
	Score int64  `json:"score"`
	Ok    bool   `json:"ok"`
}

func newRepo(t *testing.T) *tree.SQLiteTreeRepository {
	t.Helper()

	repo, err := tree.NewSQLiteTreeRepository(tree.SQLiteTreeRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "tree.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteTreeRepository() error = %v", err)
	}

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestCleanPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "users/abc", want: "users/abc"},
		{path: "/users/abc/", want: "users/abc"},
		{path: "", wantErr: true},
		{path: "users//abc", wantErr: true},
		{path: "users/a.b", wantErr: true},
		{path: "users/a#b", wantErr: true},
		{path: "users/$a", wantErr: true},
		{path: "users/[0]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			got, err := tree.CleanPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CleanPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}

			if err != nil && !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("error %v is not invalid argument", err)
			}

			if got != tt.want {
				t.Errorf("CleanPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestSQLiteTreeRepository_SetGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)

	if err := repo.Set(ctx, "things/a", item{Name: "a", Score: 1}); err != nil {
		t.Fatal(err)
	}

	var got item

	found, err := repo.Get(ctx, "things/a", &got)
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v", found, err)
	}

	if diff := cmp.Diff(item{Name: "a", Score: 1}, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	found, err = repo.Get(ctx, "things/missing", &got)
	if err != nil || found {
		t.Errorf("Get(missing) = %v, %v", found, err)
	}

	if err := repo.Delete(ctx, "things/a"); err != nil {
		t.Fatal(err)
	}

	if found, _ := repo.Get(ctx, "things/a", &got); found {
		t.Error("node still present after Delete")
	}

	if err := repo.Delete(ctx, "things/a"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestSQLiteTreeRepository_GetChildren(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)

	for _, key := range []string{"a", "b"} {
		if err := repo.Set(ctx, tree.Join("favorites", "u1", key), item{Name: key}); err != nil {
			t.Fatal(err)
		}
	}

	if err := repo.Set(ctx, "favorites/u10/c", item{Name: "c"}); err != nil {
		t.Fatal(err)
	}

	var got map[string]item

	found, err := repo.Get(ctx, "favorites/u1", &got)
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v", found, err)
	}

	want := map[string]item{"a": {Name: "a"}, "b": {Name: "b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	var nested map[string]map[string]item
	if _, err := repo.Get(ctx, "favorites", &nested); err != nil {
		t.Fatal(err)
	}

	if len(nested) != 2 || len(nested["u10"]) != 1 {
		t.Errorf("nested = %v", nested)
	}

	if err := repo.Delete(ctx, "favorites/u1"); err != nil {
		t.Fatal(err)
	}

	if found, _ := repo.Get(ctx, "favorites/u1/a", &item{}); found {
		t.Error("descendant still present after Delete of parent")
	}

	if found, _ := repo.Get(ctx, "favorites/u10/c", &item{}); !found {
		t.Error("sibling with common prefix was deleted")
	}
}

func TestSQLiteTreeRepository_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)

	if err := repo.Update(ctx, "things/a", map[string]any{"name": "created"}); err != nil {
		t.Fatal(err)
	}

	if err := repo.Update(ctx, "things/a", map[string]any{"score": 5, "ok": true}); err != nil {
		t.Fatal(err)
	}

	var got item
	if _, err := repo.Get(ctx, "things/a", &got); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(item{Name: "created", Score: 5, Ok: true}, got); diff != "" {
		t.Errorf("Update() mismatch (-want +got):\n%s", diff)
	}

	if err := repo.Update(ctx, "things/a", map[string]any{"name": nil}); err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if _, err := repo.Get(ctx, "things/a", &raw); err != nil {
		t.Fatal(err)
	}

	if _, ok := raw["name"]; ok {
		t.Error("nil field was not removed")
	}
}

func TestSQLiteTreeRepository_Increment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)

	if _, err := repo.Increment(ctx, "things/missing", "score", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Increment(missing) error = %v", err)
	}

	if err := repo.Set(ctx, "things/a", map[string]any{"name": "a"}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := repo.Increment(ctx, "things/a", "score", 1); err != nil {
				t.Error(err)
			}
		}()
	}

	wg.Wait()

	got, err := repo.Increment(ctx, "things/a", "score", -5)
	if err != nil {
		t.Fatal(err)
	}

	if got != 15 {
		t.Errorf("Increment() = %d, want 15", got)
	}

	if _, err := repo.Increment(ctx, "things/a", "bad field", 1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Increment(bad field) error = %v", err)
	}
}

func TestSQLiteTreeRepository_Query(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)

	items := []item{
		{Name: "a", Score: 3, Ok: true},
		{Name: "b", Score: 1, Ok: false},
		{Name: "c", Score: 2, Ok: true},
		{Name: "d", Score: 5, Ok: true},
	}

	for _, it := range items {
		if err := repo.Set(ctx, tree.Join("things", it.Name), it); err != nil {
			t.Fatal(err)
		}
	}

	if err := repo.Set(ctx, "other/x", item{Name: "x", Score: 9, Ok: true}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		q       tree.Query
		want    []string
		wantErr bool
	}{
		{name: "order by score", q: tree.Query{OrderBy: "score"}, want: []string{"b", "c", "a", "d"}},
		{name: "equal to bool", q: tree.Query{OrderBy: "ok", EqualTo: true}, want: []string{"a", "c", "d"}},
		{name: "range", q: tree.Query{OrderBy: "score", StartAt: 2, EndAt: 3}, want: []string{"c", "a"}},
		{name: "limit to first", q: tree.Query{OrderBy: "score", LimitToFirst: 2}, want: []string{"b", "c"}},
		{name: "limit to last", q: tree.Query{OrderBy: "score", LimitToLast: 2}, want: []string{"a", "d"}},
		{name: "equal to string", q: tree.Query{OrderBy: "name", EqualTo: "c"}, want: []string{"c"}},
		{name: "invalid order by", q: tree.Query{OrderBy: "score; DROP TABLE nodes"}, wantErr: true},
		{name: "both limits", q: tree.Query{OrderBy: "score", LimitToFirst: 1, LimitToLast: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			children, err := repo.Query(ctx, "things", tt.q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Query() error = %v, wantErr %v", err, tt.wantErr)
			}

			var got []string
			for _, child := range children {
				got = append(got, child.Key)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Query() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
