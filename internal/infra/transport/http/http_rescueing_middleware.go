package http

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/logging"
)

// RescueingMiddleware recovers handler panics, logs them with the stack and
// answers 500 with an internal error body.
func RescueingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}

			if p == http.ErrAbortHandler { //nolint:errorlint,err113
				panic(p)
			}

			log.ErrorContext(r.Context(), "request panic", slog.Group("http",
				"uri", r.RequestURI,
				"method", r.Method,
			), slog.Group("error",
				"panic", p,
				"stack", string(debug.Stack()),
			))

			WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error: http.StatusText(http.StatusInternalServerError),
				Code:  domain.CodeInternal,
			})
		}()

		next.ServeHTTP(w, r)
	})
}
