// Package canuse реализует HTTP-обработчик проверки доступности фичи
// для подписки без изменения записей учёта.
package canuse

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

// Handler управляет HTTP-запросами на проверку доступности фичи.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс движка учёта использования.
type Service interface {
	CanUseFeature(ctx context.Context, subscriptionSlug string, req models.CanUseFeatureRequest) (bool, error)
	RemainingUnits(ctx context.Context, subscriptionSlug, featureSlug string) (int64, error)
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
	const op = "handlers.usage.canuse"
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

	var req models.CanUseFeatureRequest
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

	canUse, err := h.service.CanUseFeature(r.Context(), slug, req)
	if err != nil {
		if errors.Is(err, entitlement.ErrSubscriptionNotFound) {
			log.Error("subscription not found", slog.String("slug", slug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
			return
		}
		log.Error("failed to check feature", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not check feature"))
		return
	}

	data := map[string]any{
		"can_use": canUse,
	}
	if canUse {
		remaining, err := h.service.RemainingUnits(r.Context(), slug, req.FeatureSlug)
		if err == nil {
			data["remaining_units"] = remaining
		}
	}

	render.JSON(w, r, response.OKWithData(data))
}
