package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mkrupp/inkspira/internal/domain"
)

func variants[T any](r domain.Result[T]) int {
	n := 0

	r.Match(
		func(T) { n++ },
		func(string, domain.ResultCode) { n++ },
		func() { n++ },
	)

	return n
}

func TestResult_ExactlyOneVariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		result      domain.Result[int]
		wantSuccess bool
		wantError   bool
		wantLoading bool
	}{
		{name: "success", result: domain.Success(42), wantSuccess: true},
		{name: "failure", result: domain.Failure[int](domain.ErrArtworkNotFound), wantError: true},
		{name: "failure code", result: domain.FailureCode[int](domain.CodeInternal, "boom"), wantError: true},
		{name: "loading", result: domain.Loading[int](), wantLoading: true},
		{name: "zero value", result: domain.Result[int]{}, wantLoading: true},
		{name: "result of error", result: domain.ResultOf(1, errors.New("x")), wantError: true},
		{name: "result of value", result: domain.ResultOf(1, nil), wantSuccess: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := variants(tt.result); got != 1 {
				t.Fatalf("Match() called %d handlers, want 1", got)
			}

			if tt.result.IsSuccess() != tt.wantSuccess ||
				tt.result.IsError() != tt.wantError ||
				tt.result.IsLoading() != tt.wantLoading {
				t.Errorf("variant = (%v,%v,%v), want (%v,%v,%v)",
					tt.result.IsSuccess(), tt.result.IsError(), tt.result.IsLoading(),
					tt.wantSuccess, tt.wantError, tt.wantLoading)
			}
		})
	}
}

func TestResult_Accessors(t *testing.T) {
	t.Parallel()

	ok := domain.Success("art")
	if got := ok.ValueOr("def"); got != "art" {
		t.Errorf("ValueOr() = %q, want %q", got, "art")
	}

	if got := ok.MessageOr("none"); got != "none" {
		t.Errorf("MessageOr() = %q, want %q", got, "none")
	}

	if ok.Err() != nil {
		t.Errorf("Err() = %v, want nil", ok.Err())
	}

	failed := domain.Failure[string](domain.ErrNotArtworkOwner)
	if got := failed.ValueOr("def"); got != "def" {
		t.Errorf("ValueOr() = %q, want %q", got, "def")
	}

	if got := failed.Code(); got != domain.CodeForbidden {
		t.Errorf("Code() = %q, want %q", got, domain.CodeForbidden)
	}

	if !errors.Is(failed.Err(), domain.ErrNotArtworkOwner) {
		t.Errorf("Err() = %v, want %v", failed.Err(), domain.ErrNotArtworkOwner)
	}

	if got := failed.MessageOr(""); got != domain.ErrNotArtworkOwner.Error() {
		t.Errorf("MessageOr() = %q", got)
	}

	coded := domain.FailureCode[string](domain.CodeUnavailable, "offline")
	if !errors.Is(coded.Err(), domain.ErrResultFailed) {
		t.Errorf("Err() = %v, want ErrResultFailed", coded.Err())
	}
}

func TestMapResult(t *testing.T) {
	t.Parallel()

	double := func(v int) int { return v * 2 }

	if got := domain.MapResult(domain.Success(21), double).ValueOr(0); got != 42 {
		t.Errorf("MapResult(success) = %d, want 42", got)
	}

	mapped := domain.MapResult(domain.Failure[int](domain.ErrUserNotFound), double)
	if mapped.Code() != domain.CodeNotFound {
		t.Errorf("MapResult(error) code = %q, want %q", mapped.Code(), domain.CodeNotFound)
	}

	if !domain.MapResult(domain.Loading[int](), double).IsLoading() {
		t.Error("MapResult(loading) is not loading")
	}
}

func TestStream(t *testing.T) {
	t.Parallel()

	ch := domain.Stream(context.Background(), func(context.Context) domain.Result[int] {
		return domain.Success(7)
	})

	var got []domain.Result[int]
	for res := range ch {
		got = append(got, res)
	}

	if len(got) != 2 {
		t.Fatalf("Stream() yielded %d results, want 2", len(got))
	}

	if !got[0].IsLoading() {
		t.Error("first result is not loading")
	}

	if got[1].ValueOr(0) != 7 {
		t.Errorf("terminal result = %v, want 7", got[1].ValueOr(0))
	}
}

func TestStream_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	ch := domain.Stream(ctx, func(context.Context) domain.Result[int] {
		<-release

		return domain.Success(1)
	})

	cancel()

	res := domain.Await(ch)
	if res.Code() != domain.CodeUnavailable {
		t.Errorf("Await() code = %q, want %q", res.Code(), domain.CodeUnavailable)
	}
}
