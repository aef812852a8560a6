// Package use реализует HTTP-обработчик расхода юнитов фичи по подписке.
//
// Типизированные отказы движка учёта транслируются в HTTP-статусы:
// фича вне плана — 404, выключенная фича, деактивированная запись
// или нехватка остатка — 409 с кодом причины.
package use

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/response"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/entitlement"
)

// Handler управляет HTTP-запросами на расход юнитов фичи.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс движка учёта использования.
type Service interface {
	UseFeature(ctx context.Context, subscriptionSlug string, req models.UseFeatureRequest) (*models.FeatureUsage, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.use"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	slug := chi.URLParam(r, "slug")
	if slug == "" {
		log.Error("missing subscription slug")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing subscription slug"))
		return
	}

	var req models.UseFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	usage, err := h.service.UseFeature(r.Context(), slug, req)
	if err != nil {
		var notFound *models.FeatureNotFoundError
		var cannotUse *models.CannotUseFeatureError
		switch {
		case errors.Is(err, entitlement.ErrSubscriptionNotFound):
			log.Error("subscription not found", slog.String("slug", slug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
		case errors.As(err, &notFound):
			log.Error("feature not granted", slog.String("feature", notFound.FeatureSlug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.As(err, &cannotUse):
			log.Error("feature use rejected", slog.String("reason", string(cannotUse.Reason)))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			log.Error("failed to use feature", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not use feature"))
		}
		return
	}

	log.Info("feature used", slog.String("subscription", slug),
		slog.String("feature", req.FeatureSlug), slog.Int64("units", req.Units))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"usage": usage,
	}))
}
