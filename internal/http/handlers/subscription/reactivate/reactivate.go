// Package reactivate реализует HTTP-обработчик снятия запланированной
// отмены подписки. Работает только для отменённой и ещё не закончившейся
// подписки; иначе возвращает 409 Conflict.
package reactivate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/response"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
)

// Handler управляет HTTP-запросами на реактивацию подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики реактивации подписки.
type Service interface {
	Reactivate(ctx context.Context, slug string) (bool, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.reactivate"
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

	ok, err := h.service.Reactivate(r.Context(), slug)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			log.Error("subscription not found", slog.String("slug", slug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
			return
		}
		log.Error("failed to reactivate subscription", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reactivate subscription"))
		return
	}
	if !ok {
		log.Info("reactivate rejected", slog.String("slug", slug))
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("subscription is not cancelled or has already ended"))
		return
	}

	log.Info("subscription reactivated", slog.String("slug", slug))
	render.JSON(w, r, response.OK())
}
