package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkrupp/inkspira/internal/domain"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	http_ "github.com/mkrupp/inkspira/internal/infra/transport/http"
)

type mockValidator struct {
	principal domain.Principal
	err       error
}

func (m *mockValidator) Validate(_ context.Context, token string) (domain.Principal, error) {
	if m.err != nil {
		return domain.Principal{}, m.err
	}

	if token != "good" {
		return domain.Principal{}, domain.ErrInvalidAuthToken
	}

	return m.principal, nil
}

func whoami(w http.ResponseWriter, r *http.Request) {
	if principal, ok := context_.PrincipalFromContext(r.Context()); ok {
		_, _ = w.Write([]byte(principal.UserID + ":" + context_.AccessTokenFromContext(r.Context())))

		return
	}

	_, _ = w.Write([]byte("anonymous"))
}

func TestAuthorizingMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		required   bool
		header     string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "required without token", required: true, wantStatus: http.StatusUnauthorized},
		{name: "optional without token", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "bearer token", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "user-1:good"},
		{name: "bare token", required: true, header: "good", wantStatus: http.StatusOK, wantBody: "user-1:good"},
		{name: "invalid token on optional route", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{
			name:       "auth service unavailable",
			header:     "Bearer good",
			err:        errors.Join(domain.ErrUnavailable, errors.New("connection refused")),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			validator := &mockValidator{principal: domain.Principal{UserID: "user-1"}, err: tt.err}
			handler := http_.AuthorizingMiddleware(validator, logging.NewNopLogger(), tt.required)(http.HandlerFunc(whoami))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	var seen string

	handler := http_.TracingMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = context_.TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(http_.TraceIDHeader, "abc")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "abc" || rec.Header().Get(http_.TraceIDHeader) != "abc" {
		t.Errorf("trace id = %q, header = %q", seen, rec.Header().Get(http_.TraceIDHeader))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" || seen == "abc" {
		t.Errorf("generated trace id = %q", seen)
	}
}

func TestRescueingMiddleware(t *testing.T) {
	t.Parallel()

	handler := http_.RescueingMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), logging.NewNopLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), `"code":"internal"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestWriteResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			write:      func(w http.ResponseWriter) { http_.WriteResult(w, domain.Success("ok"), http.StatusCreated) },
			wantStatus: http.StatusCreated,
			wantBody:   `"ok"`,
		},
		{
			name: "not found",
			write: func(w http.ResponseWriter) {
				http_.WriteResult(w, domain.Failure[string](domain.ErrArtworkNotFound), http.StatusOK)
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `"code":"not_found"`,
		},
		{
			name: "forbidden",
			write: func(w http.ResponseWriter) {
				http_.WriteResult(w, domain.Failure[string](domain.ErrNotArtworkOwner), http.StatusOK)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "loading",
			write:      func(w http.ResponseWriter) { http_.WriteResult(w, domain.Loading[string](), http.StatusOK) },
			wantStatus: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			tt.write(rec)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorFromResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coded":
			http_.WriteError(w, domain.ErrUserAlreadyExists)
		case "/plain":
			http.Error(w, "nope", http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	tests := []struct {
		path string
		want domain.ResultCode
	}{
		{path: "/coded", want: domain.CodeAlreadyExists},
		{path: "/plain", want: domain.CodeForbidden},
		{path: "/ok", want: domain.CodeNone},
	}

	for _, tt := range tests {
		req, err := http_.NewRequest(context.Background(), http.MethodGet, srv.URL+tt.path, nil)
		if err != nil {
			t.Fatal(err)
		}

		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}

		got := domain.CodeOf(http_.ErrorFromResponse(resp))
		resp.Body.Close()

		if got != tt.want {
			t.Errorf("%s: code = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	t.Parallel()

	r := http_.NewRouter("test")
	r.Get("/things/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/1", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `route="/things/{id}"`) {
		t.Errorf("metrics output lacks route label")
	}
}
