package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"clipstream/internal/api"
	"clipstream/internal/auth"
	"clipstream/internal/media"
	"clipstream/internal/storage"
)

func newTestHandler(t *testing.T) (*api.Handler, *storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStorage(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("NewStorage error: %v", err)
	}
	codec, err := auth.NewCodec("server-test-secret")
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	sessions := auth.NewSessionManager(store, codec, auth.WithRefreshStore(store))
	mediaStore, err := media.NewLocalStore(filepath.Join(dir, "media"), "/media")
	if err != nil {
		t.Fatalf("NewLocalStore error: %v", err)
	}
	return api.NewHandler(store, sessions, mediaStore, nil), store
}

func loginTestAccount(t *testing.T, handler *api.Handler, store *storage.Storage) auth.TokenPair {
	t.Helper()
	_, err := store.CreateAccount(context.Background(), storage.CreateAccountParams{
		Handle:      "tester",
		Email:       "tester@example.com",
		DisplayName: "Tester",
		Password:    "correct horse battery",
	})
	if err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}
	_, pair, err := handler.Sessions.Login(context.Background(), "tester", "correct horse battery")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	return pair
}

func TestAuthMiddlewareAttachesIdentityFromBearerToken(t *testing.T) {
	handler, store := newTestHandler(t)
	pair := loginTestAccount(t, handler, store)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		identity, ok := api.IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.Handle != "tester" {
			t.Fatalf("expected handle tester, got %q", identity.Handle)
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()

	authMiddleware(handler, next).ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatal("expected middleware to call next handler")
	}
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	handler, _ := newTestHandler(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected call to next handler")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()

	authMiddleware(handler, next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] == "" {
		t.Fatal("expected error message in response")
	}
}

func TestAuthMiddlewarePassesThroughWithoutToken(t *testing.T) {
	handler, _ := newTestHandler(t)
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		if _, ok := api.IdentityFromContext(r.Context()); ok {
			t.Fatal("expected no identity for anonymous request")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rec := httptest.NewRecorder()

	authMiddleware(handler, next).ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatal("expected anonymous request to reach next handler")
	}
}

func TestAuthMiddlewareIgnoresNonAPIRoutes(t *testing.T) {
	handler, _ := newTestHandler(t)
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()

	authMiddleware(handler, next).ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatal("expected non-api route to bypass auth")
	}
}

func TestServerHealthEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv, err := New(handler, Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health check, got %d", rec.Code)
	}
}

func TestServerProtectedRouteRequiresAuth(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv, err := New(handler, Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestRateLimitMiddlewareThrottlesLogin(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{LoginLimit: 2})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := rateLimitMiddleware(rl, nil, next)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		chain.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
}

func TestRateLimitMiddlewareTracksClientsSeparately(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{LoginLimit: 1})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := rateLimitMiddleware(rl, nil, next)

	first := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	first.RemoteAddr = "203.0.113.7:4000"
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first client: expected 200, got %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	second.RemoteAddr = "203.0.113.8:4000"
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client: expected 200, got %d", rec.Code)
	}
}

func TestExtractClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	if ip := extractClientIP(req); ip != "198.51.100.4" {
		t.Fatalf("expected forwarded ip, got %q", ip)
	}

	req.Header.Del("X-Forwarded-For")
	if ip := extractClientIP(req); ip != "10.0.0.1" {
		t.Fatalf("expected remote addr host, got %q", ip)
	}
}
