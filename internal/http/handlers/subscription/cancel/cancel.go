// Package cancel реализует HTTP-обработчик отмены подписки.
//
// Без флага immediately отмена назначается на заданную дату, период
// подписки не изменяется. С флагом immediately период схлопывается
// к дате отмены. Тело запроса необязательно.
package cancel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/response"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
)

// Handler управляет HTTP-запросами на отмену подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Cancel(ctx context.Context, slug string, cancelDate *time.Time, immediately bool) (bool, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
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

	var req models.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	var cancelDate *time.Time
	if req.CancelsAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.CancelsAt)
		if err != nil {
			log.Error("invalid cancels_at", sl.Err(err))
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("cancels_at must be an RFC3339 timestamp"))
			return
		}
		cancelDate = &parsed
	}

	ok, err := h.service.Cancel(r.Context(), slug, cancelDate, req.Immediately)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			log.Error("subscription not found", slog.String("slug", slug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
			return
		}
		log.Error("failed to cancel subscription", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not cancel subscription"))
		return
	}
	if !ok {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("subscription cannot be cancelled"))
		return
	}

	log.Info("subscription cancelled", slog.String("slug", slug), slog.Bool("immediately", req.Immediately))
	render.JSON(w, r, response.OK())
}
