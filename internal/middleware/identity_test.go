package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"provider_gateway/internal/auth"
)

func testStore() *auth.InMemoryServiceKeyStore {
	store := auth.NewInMemoryServiceKeyStore()
	store.Add("sk-alice", auth.CallerRecord{ID: "user-1", Name: "Alice"})
	store.Add("sk-revoked", auth.CallerRecord{ID: "user-2", Name: "Bob", Revoked: true})
	return store
}

func TestServiceKeyMiddleware_Success(t *testing.T) {
	middleware := ServiceKeyMiddleware(testStore())

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := GetCaller(r.Context())
		if !ok {
			t.Error("caller not found in context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if caller.ID != "user-1" {
			t.Errorf("unexpected caller ID: %s", caller.ID)
		}
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware(nextHandler)

	t.Run("with X-API-Key header", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/provider/completion", nil)
		req.Header.Set("X-API-Key", "sk-alice")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("with Bearer token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/provider/completion", nil)
		req.Header.Set("Authorization", "Bearer sk-alice")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})
}

func TestServiceKeyMiddleware_Rejections(t *testing.T) {
	middleware := ServiceKeyMiddleware(testStore())

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware(nextHandler)

	tests := []struct {
		name   string
		header string
		value  string
	}{
		{"missing key", "", ""},
		{"unknown key", "X-API-Key", "sk-nope"},
		{"revoked key", "X-API-Key", "sk-revoked"},
		{"different auth scheme", "Authorization", "Basic abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/provider/completion", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})
	}
}

func TestJWTMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	middleware := JWTMiddleware(secret)

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := GetCaller(r.Context())
		if !ok || caller.ID != "user-1" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware(nextHandler)

	t.Run("valid token", func(t *testing.T) {
		token, _, err := auth.GenerateJWT("user-1", "Alice", secret)
		if err != nil {
			t.Fatalf("GenerateJWT() error = %v", err)
		}

		req := httptest.NewRequest("POST", "/provider/playground/completion", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/provider/playground/completion", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/provider/playground/completion", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
	})
}

func TestGetCaller_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), CallerKey, "not-a-record")
	if _, ok := GetCaller(ctx); ok {
		t.Error("expected type assertion to fail for wrong type")
	}
}
