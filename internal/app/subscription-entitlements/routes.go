// Package subscriptionentitlements предоставляет маршруты для основного приложения.
package subscriptionentitlements

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	featureattach "github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/feature/attach"
	featurecreate "github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/feature/create"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/health"
	plancreate "github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/plan/create"
	planlist "github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/plan/list"
	planread "github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/plan/read"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/changeplan"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/reactivate"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/renew"
	subscriptionread "github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/subscribe"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/usage/canuse"
	usageset "github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/usage/set"
	usageuse "github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/usage/use"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/catalog"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/entitlement"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker,
	catalogService *catalog.Service, subscriptionService *subscription.Service,
	entitlementService *entitlement.Service) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New().ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			// Изменение каталога доступно только администраторам.
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole("admin", logger))
				r.Post("/plans", plancreate.New(logger, catalogService).ServeHTTP)
				r.Post("/features", featurecreate.New(logger, catalogService).ServeHTTP)
				r.Post("/plans/{slug}/features", featureattach.New(logger, catalogService).ServeHTTP)
			})

			r.Get("/plans", planlist.New(logger, catalogService).ServeHTTP)
			r.Get("/plans/{slug}", planread.New(logger, catalogService).ServeHTTP)

			r.Post("/subscriptions", subscribe.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/{slug}", subscriptionread.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/{slug}/cancel", cancel.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/{slug}/renew", renew.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/{slug}/reactivate", reactivate.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/{slug}/change-plan", changeplan.New(logger, subscriptionService).ServeHTTP)

			r.Post("/subscriptions/{slug}/usage", usageuse.New(logger, entitlementService).ServeHTTP)
			r.Put("/subscriptions/{slug}/usage", usageset.New(logger, entitlementService).ServeHTTP)
			r.Post("/subscriptions/{slug}/usage/check", canuse.New(logger, entitlementService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
}
