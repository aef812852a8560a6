package middlewarectx_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/jwt"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	validToken, err := maker.GenerateToken("billing-portal", "admin")
	assert.NoError(t, err)

	otherMaker := jwt.NewJWTMaker("wrong-secret", time.Hour)
	foreignToken, err := otherMaker.GenerateToken("billing-portal", "admin")
	assert.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "missing Authorization header",
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "invalid Authorization header prefix",
			authHeader:     "Basic sometoken",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "token signed with another key",
			authHeader:     "Bearer " + foreignToken,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "valid token",
			authHeader:     "Bearer " + validToken,
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				assert.Equal(t, "billing-portal", r.Context().Value(middlewarectx.Client))
				assert.Equal(t, "admin", r.Context().Value(middlewarectx.Role))
				w.WriteHeader(http.StatusOK)
			})
			handler := middlewarectx.JWTMiddleware(maker, newNoopLogger())(nextHandler)

			req := httptest.NewRequest(http.MethodGet, "/plans", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
		})
	}
}

func TestRequireRole(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	serviceToken, err := maker.GenerateToken("usage-reporter", "service")
	assert.NoError(t, err)

	handlerCalled := false
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})
	log := newNoopLogger()
	handler := middlewarectx.JWTMiddleware(maker, log)(
		middlewarectx.RequireRole("admin", log)(nextHandler))

	req := httptest.NewRequest(http.MethodPost, "/plans", nil)
	req.Header.Set("Authorization", "Bearer "+serviceToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, handlerCalled)
}
