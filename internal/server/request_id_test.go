package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipstream/internal/observability/logging"
)

func TestRequestIDMiddlewarePreservesIncomingID(t *testing.T) {
	t.Parallel()

	handler := requestIDMiddlewareWithGenerator(slog.Default(), func() string { return "generated" }, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, _ := logging.RequestIDFromContext(r.Context())
		if requestID != "incoming" {
			t.Fatalf("expected request id to be preserved, got %q", requestID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "incoming")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-Id") != "incoming" {
		t.Fatalf("expected response header to carry request id, got %q", rr.Header().Get("X-Request-Id"))
	}
}

func TestRequestIDMiddlewareGeneratesWhenAbsent(t *testing.T) {
	t.Parallel()

	handler := requestIDMiddlewareWithGenerator(slog.Default(), func() string { return "generated-id" }, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, _ := logging.RequestIDFromContext(r.Context())
		if requestID != "generated-id" {
			t.Fatalf("expected generated request id, got %q", requestID)
		}
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Header().Get("X-Request-Id") != "generated-id" {
		t.Fatalf("expected generated id on response, got %q", rr.Header().Get("X-Request-Id"))
	}
}

func TestNewRequestIDProducesUniqueValues(t *testing.T) {
	t.Parallel()

	first := newRequestID()
	second := newRequestID()
	if first == "" || second == "" {
		t.Fatal("expected non-empty request ids")
	}
	if first == second {
		t.Fatalf("expected unique ids, got %q twice", first)
	}
}
