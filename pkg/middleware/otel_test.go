package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestOpenTelemetryMiddleware_PassesThrough(t *testing.T) {
	var sawSpanContext bool
	mw := OpenTelemetry(
		WithTracerName("philjs-test"),
		WithAttributeExtractor(func(r *http.Request) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The span context is injected even with the noop provider.
		_ = trace.SpanFromContext(r.Context())
		sawSpanContext = true
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))

	if !sawSpanContext {
		t.Fatal("wrapped handler did not run")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Fatal("response headers were not preserved")
	}
}

func TestOpenTelemetryMiddleware_Filter(t *testing.T) {
	mw := OpenTelemetry(
		WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz"
		}),
	)
	var hits int
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if hits != 1 {
		t.Fatalf("filtered request did not reach handler, hits=%d", hits)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestOpenTelemetryMiddleware_ErrorStatus(t *testing.T) {
	mw := OpenTelemetry()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
