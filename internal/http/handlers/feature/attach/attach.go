// Package attach реализует HTTP-обработчик для подключения фичи к плану
// с поюнитной квотой. Повторное подключение обновляет квоту.
package attach

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
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/catalog"
)

// Handler управляет HTTP-запросами на подключение фичи к плану.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики подключения фичи.
type Service interface {
	AttachFeature(ctx context.Context, planSlug string, req models.AttachFeatureRequest) error
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
	const op = "handlers.feature.attach"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	planSlug := chi.URLParam(r, "slug")
	if planSlug == "" {
		log.Error("missing plan slug")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing plan slug"))
		return
	}

	var req models.AttachFeatureRequest
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

	if err := h.service.AttachFeature(r.Context(), planSlug, req); err != nil {
		switch {
		case errors.Is(err, catalog.ErrPlanNotFound):
			log.Error("plan not found", slog.String("slug", planSlug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("plan not found"))
		case errors.Is(err, catalog.ErrFeatureNotFound):
			log.Error("feature not found", slog.String("slug", req.FeatureSlug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("feature not found"))
		default:
			log.Error("failed to attach feature", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not attach feature"))
		}
		return
	}

	log.Info("feature attached", slog.String("plan", planSlug), slog.String("feature", req.FeatureSlug))
	render.JSON(w, r, response.OK())
}
