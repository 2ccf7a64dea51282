package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/mkrupp/inkspira/internal/domain"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
)

func TestConsoleHandler_PkgLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		logger string
		level  slog.Level
		want   bool
	}{
		{name: "default level admits info", logger: "authsvc", level: slog.LevelInfo, want: true},
		{name: "default level drops debug", logger: "authsvc", level: slog.LevelDebug, want: false},
		{name: "override admits debug", logger: "artsvc.repo", level: slog.LevelDebug, want: true},
		{name: "override applies to children", logger: "artsvc.repo.artwork", level: slog.LevelDebug, want: true},
		{name: "more specific override wins", logger: "artsvc.repo.tree", level: slog.LevelInfo, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			//nolint:exhaustruct
			handler := &logging.ConsoleHandler{
				Output: &buf,
				Level:  slog.LevelInfo,
				PkgLevels: map[string]slog.Level{
					"artsvc.repo":      slog.LevelDebug,
					"artsvc.repo.tree": slog.LevelWarn,
				},
				NoSource: true,
			}

			logger := slog.New(handler).With("logger", tt.logger)
			logger.Log(context.Background(), tt.level, "hello")

			if got := strings.Contains(buf.String(), "hello"); got != tt.want {
				t.Errorf("logged = %v, want %v (output %q)", got, tt.want, buf.String())
			}
		})
	}
}

func TestContextHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	//nolint:exhaustruct
	inner := &logging.ConsoleHandler{Output: &buf, Level: slog.LevelDebug, NoSource: true}
	logger := slog.New(logging.NewContextHandler(inner))

	ctx := context_.WithTraceID(context.Background(), "trace-1")
	ctx = context_.WithPrincipal(ctx, domain.Principal{UserID: "user-1", Email: "a@b.co"})

	logger.With(logging.Group("artwork", "id", "art-1")).InfoContext(ctx, "artwork uploaded")

	out := buf.String()
	for _, want := range []string{"artwork uploaded", "trace.id=", "trace-1", "auth.userId=", "user-1", "artwork.id="} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}
