// Package scheduler периодически сканирует подписки и публикует
// напоминания о скором окончании периода. Просроченные подписки
// логируются для внешней переоценки, жизненный цикл они не меняют.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// SubscriptionLister описывает выборки подписок по датам окончания.
type SubscriptionLister interface {
	ListEndingWithin(ctx context.Context, window time.Duration) ([]*models.Subscription, error)
	ListOverdue(ctx context.Context) ([]*models.Subscription, error)
}

// EventSink принимает доменные события.
type EventSink interface {
	Publish(event models.Event)
}

// Service публикует события о подписках, период которых скоро закончится.
type Service struct {
	subs   SubscriptionLister
	events EventSink
	log    *slog.Logger
	window time.Duration
}

// New создает новый экземпляр Service. window задаёт горизонт
// напоминаний: подписки, заканчивающиеся внутри окна, попадают в выборку.
func New(subs SubscriptionLister, events EventSink, log *slog.Logger, window time.Duration) *Service {
	return &Service{
		subs:   subs,
		events: events,
		log:    log,
		window: window,
	}
}

// Run запускает периодическое сканирование до отмены контекста.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.scan(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Service) scan(ctx context.Context) {
	s.log.Info("scanning subscriptions ending soon")
	ending, err := s.subs.ListEndingWithin(ctx, s.window)
	if err != nil {
		s.log.Error("failed to list ending subscriptions", sl.Err(err))
		return
	}
	for _, sub := range ending {
		s.events.Publish(models.SubscriptionExpiring{
			SubscriptionSlug: sub.Slug,
			Subscriber:       sub.Subscriber,
			EndsAt:           sub.EndsAt,
		})
	}
	if len(ending) > 0 {
		s.log.Info("published expiring reminders", slog.Int("count", len(ending)))
	}

	overdue, err := s.subs.ListOverdue(ctx)
	if err != nil {
		s.log.Error("failed to list overdue subscriptions", sl.Err(err))
		return
	}
	if len(overdue) > 0 {
		s.log.Info("found overdue subscriptions", slog.Int("count", len(overdue)))
	}
}
