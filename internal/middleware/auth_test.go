package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/action_layer/pkg/action"
)

var testSecret = []byte("test-secret")

func generateTestToken(t *testing.T, secret []byte, userID string, ttl time.Duration, caps ...string) string {
	t.Helper()
	token, err := IssueToken(secret, userID, caps, ttl)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func captureCaller(captured *action.Caller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = CallerFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewAuthMiddleware(t *testing.T) {
	middleware := NewAuthMiddleware(testSecret, nil, []string{"/healthz", "/metrics"})

	if middleware == nil {
		t.Fatal("NewAuthMiddleware() returned nil")
	}
	if len(middleware.skipPaths) != 2 {
		t.Errorf("skipPaths length = %d, want 2", len(middleware.skipPaths))
	}
	if !middleware.skipPaths["/healthz"] {
		t.Error("skipPaths does not contain /healthz")
	}
	if middleware.logger == nil {
		t.Error("logger should default when nil")
	}
}

func TestAuthMiddleware_Handler_SkipPaths(t *testing.T) {
	middleware := NewAuthMiddleware(testSecret, nil, []string{"/healthz"})
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Handler_MissingAuthHeaderIsGuest(t *testing.T) {
	middleware := NewAuthMiddleware(testSecret, nil, nil)

	var caller action.Caller
	handler := middleware.Handler(captureCaller(&caller))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/users", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if caller.Authenticated {
		t.Errorf("expected guest caller, got %+v", caller)
	}
}

func TestAuthMiddleware_Handler_InvalidAuthHeaderFormat(t *testing.T) {
	middleware := NewAuthMiddleware(testSecret, nil, nil)
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"wrong prefix", "Basic token123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/users", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_Handler_ValidToken(t *testing.T) {
	middleware := NewAuthMiddleware(testSecret, nil, nil)

	var caller action.Caller
	handler := middleware.Handler(captureCaller(&caller))

	token := generateTestToken(t, testSecret, "user-123", time.Hour, "users.create", "users.view")
	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if !caller.Authenticated || caller.ID != "user-123" {
		t.Errorf("caller = %+v, want authenticated user-123", caller)
	}
	if !caller.Can("users.create") || caller.Can("users.delete") {
		t.Errorf("unexpected capabilities %v", caller.Capabilities())
	}
}

func TestAuthMiddleware_Handler_RejectedTokens(t *testing.T) {
	middleware := NewAuthMiddleware(testSecret, nil, nil)
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", generateTestToken(t, testSecret, "user-123", -time.Hour)},
		{"wrong secret", generateTestToken(t, []byte("other"), "user-123", time.Hour)},
		{"missing user id", generateTestToken(t, testSecret, "", time.Hour)},
		{"unsigned", noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/users", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestCallerFromDefaultsToGuest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if CallerFrom(req.Context()).Authenticated {
		t.Error("expected guest caller when none is stored")
	}
}
