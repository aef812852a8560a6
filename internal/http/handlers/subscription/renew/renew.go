// Package renew реализует HTTP-обработчик продления подписки.
//
// Продлевается только закончившаяся подписка; попытка продлить
// действующую возвращает 409 Conflict. Тело запроса необязательно:
// без явной даты окончания новый период вычисляется по каденции плана.
package renew

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

// Handler управляет HTTP-запросами на продление подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики продления подписки.
type Service interface {
	Renew(ctx context.Context, slug string, endDate *time.Time) (bool, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.renew"
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

	var req models.RenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	var endDate *time.Time
	if req.EndsAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			log.Error("invalid ends_at", sl.Err(err))
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("ends_at must be an RFC3339 timestamp"))
			return
		}
		endDate = &parsed
	}

	ok, err := h.service.Renew(r.Context(), slug, endDate)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			log.Error("subscription not found", slog.String("slug", slug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
			return
		}
		log.Error("failed to renew subscription", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not renew subscription"))
		return
	}
	if !ok {
		log.Info("renew rejected, subscription has not ended", slog.String("slug", slug))
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("subscription has not ended yet"))
		return
	}

	log.Info("subscription renewed", slog.String("slug", slug))
	render.JSON(w, r, response.OK())
}
