package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smazurov/tracknode/internal/metrics"
)

func TestHTTPHandler(t *testing.T) {
	handler := HTTPHandler()
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}

	metrics.SetEncoderFPS("http-test-session", 25.0)
	defer metrics.DeleteEncoderMetrics("http-test-session")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "tracknode_encoder_fps") {
		t.Error("expected encoder metrics in response")
	}
}

func TestHandlerForCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "scrape_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	handler := HandlerFor(reg, reg)
	for range 2 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "scrape_test_total 3") {
			t.Errorf("missing registered counter:\n%s", body)
		}
		if !strings.Contains(body, "promhttp_metric_handler_requests_total") {
			t.Errorf("missing scrape counter:\n%s", body)
		}
	}
}
