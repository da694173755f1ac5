package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gameportal/portal-api/internal/pkg/jwt"
)

func TestAuthMiddlewareAllowsValidAccessToken(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	userID := uuid.New()
	token, err := jwtSvc.GenerateAccessToken(userID, "user")
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}

	var gotID uuid.UUID
	protected := Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotID != userID {
		t.Errorf("context user id = %s, want %s", gotID, userID)
	}
}

func TestAuthMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	protected := Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			protected.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req = req.WithContext(context.WithValue(req.Context(), RoleKey, "user"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("user role: expected 403, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req = req.WithContext(context.WithValue(req.Context(), RoleKey, "admin"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("admin role: expected 200, got %d", w.Code)
	}
}
