package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

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

	body := scrape(t, metrics)
	if !strings.Contains(body, "console_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "console_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestObserveAPICall(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveAPICall(http.MethodGet, "/employees", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveAPICall(http.MethodGet, "/employees", 0, time.Second)

	body := scrape(t, metrics)
	if !strings.Contains(body, `console_api_calls_total{code="200",method="GET",route="/employees"} 1`) {
		t.Fatalf("expected api call counter, got: %s", body)
	}
	if !strings.Contains(body, `console_api_calls_total{code="error",method="GET",route="/employees"} 1`) {
		t.Fatalf("expected transport error counter, got: %s", body)
	}
}

func TestRecordStoreOp(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordStoreOp("create", true)
	metrics.RecordStoreOp("create", false)
	metrics.RecordStoreOp("create", false)

	body := scrape(t, metrics)
	if !strings.Contains(body, `console_store_operations_total{op="create",outcome="error"} 2`) {
		t.Fatalf("expected store op counter, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveAPICall(http.MethodGet, "/employees", 200, time.Millisecond)
	metrics.RecordStoreOp("list", true)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}
