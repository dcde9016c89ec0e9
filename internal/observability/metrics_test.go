package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	metricsBody := metricsRR.Body.String()
	if !strings.Contains(metricsBody, "apotek_ops_requests_total{code=\"418\",method=\"GET\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "apotek_ops_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestMetricsExposeRuntimeCollectors(t *testing.T) {
	metrics := NewMetrics()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	for _, name := range []string{"go_goroutines", "apotek_ops_requests_in_flight 0"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %q in metrics output, got: %s", name, body)
		}
	}
}

func TestMetricsUnmatchedRoute(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.NotFoundHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/nope", nil))

	if got := testutil.ToFloat64(metrics.requestsTotal.WithLabelValues(http.MethodPost, "unmatched", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}

func TestNilMetricsHandlerUnavailable(t *testing.T) {
	var metrics *Metrics
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestFIFOMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewFIFOMetrics(registry)

	metrics.ObserveCalculation(true, false)
	metrics.ObserveCalculation(true, true)
	metrics.ObserveCalculation(false, false)
	metrics.SetPendingProducts(3)

	if got := testutil.ToFloat64(metrics.calculations.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful calculations, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.calculations.WithLabelValues("failure")); got != 1 {
		t.Fatalf("expected 1 failed calculation, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.negativeInventory); got != 1 {
		t.Fatalf("expected 1 negative inventory observation, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.pendingProducts); got != 3 {
		t.Fatalf("expected pending gauge 3, got %v", got)
	}

	var nilMetrics *FIFOMetrics
	nilMetrics.ObserveCalculation(true, true)
	nilMetrics.SetPendingProducts(1)
}
