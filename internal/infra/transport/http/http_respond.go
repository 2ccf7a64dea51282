package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mkrupp/inkspira/internal/domain"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string            `json:"error"`
	Code  domain.ResultCode `json:"code"`
}

// StatusForCode maps a result code to its HTTP status.
func StatusForCode(code domain.ResultCode) int {
	switch code {
	case domain.CodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeAlreadyExists:
		return http.StatusConflict
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeNone, domain.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// CodeForStatus is the inverse of StatusForCode for responses that carry no code.
func CodeForStatus(status int) domain.ResultCode {
	switch status {
	case http.StatusUnauthorized:
		return domain.CodeUnauthenticated
	case http.StatusForbidden:
		return domain.CodeForbidden
	case http.StatusNotFound:
		return domain.CodeNotFound
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return domain.CodeInvalidArgument
	case http.StatusConflict:
		return domain.CodeAlreadyExists
	case http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusGatewayTimeout:
		return domain.CodeUnavailable
	default:
		return domain.CodeInternal
	}
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an ErrorResponse with the status derived from its code.
func WriteError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)

	WriteJSON(w, StatusForCode(code), ErrorResponse{Error: err.Error(), Code: code})
}

// WriteResult writes a terminal result: the value with status on success, an
// ErrorResponse otherwise. A Loading result is answered with 202 and no body.
func WriteResult[T any](w http.ResponseWriter, res domain.Result[T], status int) {
	res.Match(
		func(v T) {
			if status == http.StatusNoContent {
				w.WriteHeader(status)

				return
			}

			WriteJSON(w, status, v)
		},
		func(message string, code domain.ResultCode) {
			WriteJSON(w, StatusForCode(code), ErrorResponse{Error: message, Code: code})
		},
		func() {
			w.WriteHeader(http.StatusAccepted)
		},
	)
}

// NewRequest builds an outgoing request that carries the trace id of ctx.
func NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	return req, nil
}

// ErrorFromResponse turns a non-2xx response into a domain error, keeping the
// remote code when the body is an ErrorResponse. It returns nil for 2xx.
func ErrorFromResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var body ErrorResponse

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	if body.Code == domain.CodeNone {
		body.Code = CodeForStatus(resp.StatusCode)
	}

	return domain.ErrorForCode(body.Code, body.Error)
}

// DecodeJSON decodes a JSON response body into v.
func DecodeJSON(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Join(domain.ErrUnavailable, fmt.Errorf("decode response: %w", err))
	}

	return nil
}
