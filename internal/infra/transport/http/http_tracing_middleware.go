package http

import (
	"net/http"

	"github.com/google/uuid"

	context_ "github.com/mkrupp/inkspira/internal/infra/context"
)

const TraceIDHeader = "X-Request-ID"

// TracingMiddleware puts a trace id into the request context and echoes it in
// the response. It uses the X-Request-ID header if present, otherwise a new UUIDv7.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := getTraceID(r)

		w.Header().Set(TraceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(context_.WithTraceID(r.Context(), traceID)))
	})
}

func getTraceID(r *http.Request) string {
	if traceID := r.Header.Get(TraceIDHeader); traceID != "" {
		return traceID
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
