package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkrupp/inkspira/internal/infra/metrics"
)

func TestOutcome(t *testing.T) {
	t.Parallel()

	if got := metrics.Outcome(nil); got != "success" {
		t.Errorf("Outcome(nil) = %q", got)
	}

	if got := metrics.Outcome(errors.New("boom")); got != "error" {
		t.Errorf("Outcome(err) = %q", got)
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	metrics.AuthEventsTotal.WithLabelValues("login", "success").Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "inkspira_auth_events_total") {
		t.Errorf("metrics output does not contain inkspira_auth_events_total")
	}
}
