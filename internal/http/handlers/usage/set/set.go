// Package set реализует HTTP-обработчик перезаписи счётчика
// использованных юнитов фичи. В отличие от расхода, счётчик
// устанавливается в заданное значение, а не прибавляется.
package set

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

// Handler управляет HTTP-запросами на перезапись счётчика юнитов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс движка учёта использования.
type Service interface {
	SetUsedUnits(ctx context.Context, subscriptionSlug, featureSlug string, units int64) (*models.FeatureUsage, error)
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
	const op = "handlers.usage.set"
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

	usage, err := h.service.SetUsedUnits(r.Context(), slug, req.FeatureSlug, req.Units)
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
			log.Error("set usage rejected", slog.String("reason", string(cannotUse.Reason)))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			log.Error("failed to set used units", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not set used units"))
		}
		return
	}

	log.Info("used units set", slog.String("subscription", slug),
		slog.String("feature", req.FeatureSlug), slog.Int64("units", req.Units))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"usage": usage,
	}))
}
