// Package changeplan реализует HTTP-обработчик перевода подписки
// на другой план с опциональной синхронизацией записей учёта.
package changeplan

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
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
)

// Handler управляет HTTP-запросами на смену плана подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики смены плана.
type Service interface {
	ChangePlan(ctx context.Context, slug string, newPlanSlug string, sync bool) (bool, error)
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
	const op = "handlers.subscription.changeplan"
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

	var req models.ChangePlanRequest
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

	sync := req.Sync == nil || *req.Sync

	ok, err := h.service.ChangePlan(r.Context(), slug, req.PlanSlug, sync)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrSubscriptionNotFound):
			log.Error("subscription not found", slog.String("slug", slug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
		case errors.Is(err, subscription.ErrPlanNotFound):
			log.Error("plan not found", slog.String("slug", req.PlanSlug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("plan not found"))
		default:
			log.Error("failed to change plan", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not change plan"))
		}
		return
	}
	if !ok {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("plan cannot be changed"))
		return
	}

	log.Info("plan changed", slog.String("slug", slug), slog.String("new_plan", req.PlanSlug))
	render.JSON(w, r, response.OK())
}
