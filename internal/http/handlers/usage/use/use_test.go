package use

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// MockService реализует интерфейс use.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) UseFeature(ctx context.Context, subscriptionSlug string, req models.UseFeatureRequest) (*models.FeatureUsage, error) {
	args := m.Called(ctx, subscriptionSlug, req)
	if res := args.Get(0); res != nil {
		return res.(*models.FeatureUsage), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestUseHandler(t *testing.T) {
	endsAt := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		slug           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешный расход юнитов",
			slug: "s-1",
			body: `{"feature_slug":"api-calls","units":30}`,
			setupMock: func(m *MockService) {
				usage := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
					Used: 70, Active: true, EndsAt: &endsAt}
				m.On("UseFeature", mock.Anything, "s-1",
					models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 30}).
					Return(usage, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"used":70`,
		},
		{
			name:           "некорректный JSON",
			slug:           "s-1",
			body:           `{feature`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
		{
			name:           "пропущен slug фичи",
			slug:           "s-1",
			body:           `{"units":30}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `FeatureSlug`,
		},
		{
			name: "фича не входит в план",
			slug: "s-1",
			body: `{"feature_slug":"ghost","units":1}`,
			setupMock: func(m *MockService) {
				m.On("UseFeature", mock.Anything, "s-1",
					models.UseFeatureRequest{FeatureSlug: "ghost", Units: 1}).
					Return(nil, &models.FeatureNotFoundError{FeatureSlug: "ghost"})
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `does not grant access`,
		},
		{
			name: "нехватка остатка",
			slug: "s-1",
			body: `{"feature_slug":"api-calls","units":500}`,
			setupMock: func(m *MockService) {
				m.On("UseFeature", mock.Anything, "s-1",
					models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 500}).
					Return(nil, &models.CannotUseFeatureError{
						Reason:      models.ReasonInsufficientBalance,
						FeatureSlug: "api-calls",
						Units:       500,
					})
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `insufficient-balance`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodPost, "/subscriptions/"+tt.slug+"/usage",
				strings.NewReader(tt.body))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("slug", tt.slug)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
