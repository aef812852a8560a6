// Package subscription содержит бизнес-логику жизненного цикла подписок:
// оформление, запуск, продление, отмену, реактивацию и смену плана.
// Статус подписки не хранится, а выводится из дат; операции, изменяющие
// даты, сохраняют их через репозиторий и публикуют доменные события.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// Ошибки уровня сервиса подписок.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found")
)

// Repository определяет методы для работы с подписками в хранилище.
type Repository interface {
	// CreateSubscription добавляет новую подписку и возвращает её ID.
	CreateSubscription(ctx context.Context, sub *models.Subscription) (int64, error)
	// FindSubscriptionBySlug возвращает подписку по slug или nil, если её нет.
	FindSubscriptionBySlug(ctx context.Context, slug string) (*models.Subscription, error)
	// UpdateSubscriptionDates сохраняет даты подписки.
	UpdateSubscriptionDates(ctx context.Context, sub *models.Subscription) (int64, error)
	// ListSubscriptionsBySubscriber возвращает все подписки владельца.
	ListSubscriptionsBySubscriber(ctx context.Context, ref models.SubscriberRef) ([]*models.Subscription, error)
	// ListOverdueSubscriptions возвращает просроченные подписки.
	ListOverdueSubscriptions(ctx context.Context, asOf time.Time) ([]*models.Subscription, error)
	// ListSubscriptionsEndingBetween возвращает подписки с окончанием в окне.
	ListSubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error)
	// ChangePlan атомарно переводит подписку на новый план.
	ChangePlan(ctx context.Context, sub *models.Subscription, newPlan *models.Plan, sync bool) error
}

// PlanRepository определяет методы для чтения планов.
type PlanRepository interface {
	FindPlanBySlug(ctx context.Context, slug string) (*models.Plan, error)
	FindPlanByID(ctx context.Context, id int64) (*models.Plan, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// EventSink принимает доменные события. Доставка best-effort:
// ошибки публикации не влияют на результат операции.
type EventSink interface {
	Publish(event models.Event)
}

// Service реализует операции жизненного цикла подписок.
type Service struct {
	repo   Repository
	plans  PlanRepository
	cache  Cache
	events EventSink
	clock  clock.Clock
	log    *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, plans PlanRepository, cache Cache, events EventSink,
	clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		plans:  plans,
		cache:  cache,
		events: events,
		clock:  clk,
		log:    log,
	}
}

// NewSubscription конструирует подписку на план, не сохраняя её.
// Дата начала по умолчанию — сейчас; дата окончания — конец первого
// биллингового периода. Триальный и льготный дедлайны вычисляются
// из интервалов плана, если не пропущены. Возвращает InvalidPeriodError,
// если обе даты заданы и начало позже окончания.
func (s *Service) NewSubscription(plan *models.Plan, name string, subscriber models.SubscriberRef,
	timezone string, startsAt, endsAt *time.Time, skipTrial, skipGrace bool) (*models.Subscription, error) {
	if startsAt != nil && endsAt != nil && startsAt.After(*endsAt) {
		return nil, &models.InvalidPeriodError{StartsAt: *startsAt, EndsAt: *endsAt}
	}

	start := s.clock.Now()
	if startsAt != nil {
		start = *startsAt
	}

	var end time.Time
	if endsAt != nil {
		end = *endsAt
	} else {
		var err error
		end, err = plan.CalculateNextRecurrenceEnd(start)
		if err != nil {
			return nil, err
		}
	}

	if timezone == "" {
		timezone = "UTC"
	}

	sub := &models.Subscription{
		Slug:       uuid.NewString(),
		PlanID:     plan.ID,
		Subscriber: subscriber,
		Name:       name,
		Timezone:   timezone,
		StartsAt:   &start,
		EndsAt:     &end,
	}

	if plan.HasTrialPeriod() && !skipTrial {
		trialEnd, err := plan.CalculateTrialPeriodEnd(start)
		if err != nil {
			return nil, err
		}
		sub.TrialEndsAt = trialEnd
	}
	if plan.HasGracePeriod() && !skipGrace {
		graceEnd, err := plan.CalculateGracePeriodEnd(end)
		if err != nil {
			return nil, err
		}
		sub.GraceEndsAt = graceEnd
	}

	return sub, nil
}

// SubscribeTo оформляет подписку на план: конструирует, сохраняет
// и публикует события в порядке Created, затем Started (если подписка
// уже началась), затем TrialStarted (если идёт триал и подписка началась).
func (s *Service) SubscribeTo(ctx context.Context, req models.SubscribeRequest) (*models.Subscription, error) {
	plan, err := s.plans.FindPlanBySlug(ctx, req.PlanSlug)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}

	startsAt, err := parseOptionalTime(req.StartsAt)
	if err != nil {
		return nil, fmt.Errorf("invalid starts_at: %w", err)
	}
	endsAt, err := parseOptionalTime(req.EndsAt)
	if err != nil {
		return nil, fmt.Errorf("invalid ends_at: %w", err)
	}

	subscriber := models.SubscriberRef{Kind: req.SubscriberKind, ID: req.SubscriberID}
	sub, err := s.NewSubscription(plan, req.Name, subscriber, req.Timezone,
		startsAt, endsAt, req.SkipTrial, req.SkipGrace)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	s.log.Info("created new subscription",
		slog.String("slug", sub.Slug), slog.String("plan", plan.Slug))

	now := s.clock.Now()
	s.events.Publish(models.SubscriptionCreated{
		SubscriptionSlug: sub.Slug,
		PlanSlug:         plan.Slug,
		Subscriber:       subscriber,
		StartsAt:         sub.StartsAt,
		EndsAt:           sub.EndsAt,
	})
	if sub.Started(now) {
		s.events.Publish(models.SubscriptionStarted{
			SubscriptionSlug: sub.Slug,
			Subscriber:       subscriber,
			StartsAt:         sub.StartsAt,
		})
		if sub.OnTrial(now) {
			s.events.Publish(models.SubscriptionTrialStarted{
				SubscriptionSlug: sub.Slug,
				TrialEndsAt:      sub.TrialEndsAt,
			})
		}
	}

	s.cacheSubscription(sub)
	return sub, nil
}

// Start запускает подписку с заданной даты (по умолчанию — сейчас).
// Если дата окончания не задана или раньше даты начала, вычисляется
// свежий период по каденции плана. Публикует Started для текущего
// или прошедшего старта и Scheduled для будущего.
func (s *Service) Start(ctx context.Context, slug string, startDate, endDate *time.Time) (bool, error) {
	sub, err := s.mustFindSubscription(ctx, slug)
	if err != nil {
		return false, err
	}

	start := s.clock.Now()
	if startDate != nil {
		start = *startDate
	}

	if endDate == nil || start.After(*endDate) {
		plan, err := s.mustFindPlan(ctx, sub.PlanID)
		if err != nil {
			return false, err
		}
		if err := sub.SetNewPeriod(plan.Interval.Type, plan.Interval.Count, start); err != nil {
			return false, err
		}
	} else {
		sub.StartsAt = &start
		sub.EndsAt = endDate
	}

	if _, err := s.repo.UpdateSubscriptionDates(ctx, sub); err != nil {
		return false, err
	}

	if start.After(s.clock.Now()) {
		s.events.Publish(models.SubscriptionScheduled{
			SubscriptionSlug: sub.Slug,
			StartsAt:         sub.StartsAt,
		})
	} else {
		s.events.Publish(models.SubscriptionStarted{
			SubscriptionSlug: sub.Slug,
			Subscriber:       sub.Subscriber,
			StartsAt:         sub.StartsAt,
		})
	}

	s.cacheSubscription(sub)
	return true, nil
}

// Renew продлевает закончившуюся подписку. Продление действующей
// подписки запрещено: продление не должно молча расширять неистёкший
// период. Просроченная подписка продлевается от текущего момента,
// только что истёкшая — встык от прежней даты окончания.
// Запланированная отмена снимается.
func (s *Service) Renew(ctx context.Context, slug string, endDate *time.Time) (bool, error) {
	sub, err := s.mustFindSubscription(ctx, slug)
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	if !sub.IsEnded(now) {
		return false, nil
	}

	if endDate != nil {
		start := *sub.EndsAt
		sub.StartsAt = &start
		sub.EndsAt = endDate
	} else {
		plan, err := s.mustFindPlan(ctx, sub.PlanID)
		if err != nil {
			return false, err
		}
		anchor := *sub.EndsAt
		if sub.IsOverdue(now) {
			anchor = now
		}
		if err := sub.SetNewPeriod(plan.Interval.Type, plan.Interval.Count, anchor); err != nil {
			return false, err
		}
	}
	sub.CancelsAt = nil

	if _, err := s.repo.UpdateSubscriptionDates(ctx, sub); err != nil {
		return false, err
	}

	s.events.Publish(models.SubscriptionRenewed{
		SubscriptionSlug: sub.Slug,
		EndsAt:           sub.EndsAt,
	})
	s.cacheSubscription(sub)
	return true, nil
}

// Cancel отменяет подписку. Без флага immediately отмена назначается
// на заданную дату (по умолчанию — сейчас), период не трогается.
// С флагом immediately дата окончания схлопывается к дате отмены.
func (s *Service) Cancel(ctx context.Context, slug string, cancelDate *time.Time, immediately bool) (bool, error) {
	sub, err := s.mustFindSubscription(ctx, slug)
	if err != nil {
		return false, err
	}

	cancelsAt := s.clock.Now()
	if cancelDate != nil {
		cancelsAt = *cancelDate
	}
	sub.CancelsAt = &cancelsAt
	if immediately {
		sub.EndsAt = &cancelsAt
	}

	if _, err := s.repo.UpdateSubscriptionDates(ctx, sub); err != nil {
		return false, err
	}

	s.events.Publish(models.SubscriptionCancelled{
		SubscriptionSlug: sub.Slug,
		CancelsAt:        sub.CancelsAt,
		Immediately:      immediately,
	})
	s.cacheSubscription(sub)
	return true, nil
}

// CancelImmediately отменяет подписку немедленно.
func (s *Service) CancelImmediately(ctx context.Context, slug string, cancelDate *time.Time) (bool, error) {
	return s.Cancel(ctx, slug, cancelDate, true)
}

// Reactivate снимает запланированную отмену. Действует только для
// отменённой и ещё не закончившейся подписки, иначе возвращает false.
func (s *Service) Reactivate(ctx context.Context, slug string) (bool, error) {
	sub, err := s.mustFindSubscription(ctx, slug)
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	if !sub.IsCancelled() || sub.IsEnded(now) {
		return false, nil
	}

	sub.CancelsAt = nil
	if _, err := s.repo.UpdateSubscriptionDates(ctx, sub); err != nil {
		return false, err
	}

	s.events.Publish(models.SubscriptionReactivated{SubscriptionSlug: sub.Slug})
	s.cacheSubscription(sub)
	return true, nil
}

// ChangePlan переводит подписку на другой план. Несовпадение каденции
// списания означает новый биллинговый цикл от текущего момента.
// Даты, синхронизация записей учёта и переназначение плана сохраняются
// одной транзакцией.
func (s *Service) ChangePlan(ctx context.Context, slug string, newPlanSlug string, sync bool) (bool, error) {
	sub, err := s.mustFindSubscription(ctx, slug)
	if err != nil {
		return false, err
	}

	oldPlan, err := s.mustFindPlan(ctx, sub.PlanID)
	if err != nil {
		return false, err
	}
	newPlan, err := s.plans.FindPlanBySlug(ctx, newPlanSlug)
	if err != nil {
		return false, err
	}
	if newPlan == nil {
		return false, ErrPlanNotFound
	}

	if !newPlan.SameRecurrence(oldPlan) {
		if err := sub.SetNewPeriod(newPlan.Interval.Type, newPlan.Interval.Count, s.clock.Now()); err != nil {
			return false, err
		}
	}

	if err := s.repo.ChangePlan(ctx, sub, newPlan, sync); err != nil {
		return false, err
	}
	s.log.Info("subscription plan changed", slog.String("slug", sub.Slug),
		slog.String("old_plan", oldPlan.Slug), slog.String("new_plan", newPlan.Slug))

	s.events.Publish(models.SubscriptionPlanChanged{
		SubscriptionSlug: sub.Slug,
		OldPlanSlug:      oldPlan.Slug,
		NewPlanSlug:      newPlan.Slug,
	})
	s.cacheSubscription(sub)
	return true, nil
}

// Read возвращает подписку по slug, используя кеш или репозиторий.
func (s *Service) Read(ctx context.Context, slug string) (*models.Subscription, error) {
	var result *models.Subscription
	cacheKey := fmt.Sprintf("subscription:%s", slug)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		return nil, err
	}
	if found {
		return result, nil
	}

	result, err = s.repo.FindSubscriptionBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrSubscriptionNotFound
	}

	if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
		s.log.Warn("failed to add to cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return result, nil
}

// List возвращает все подписки владельца.
func (s *Service) List(ctx context.Context, ref models.SubscriberRef) ([]*models.Subscription, error) {
	return s.repo.ListSubscriptionsBySubscriber(ctx, ref)
}

// ListOverdue возвращает просроченные подписки. Вызывается внешними
// планировщиками для периодической переоценки.
func (s *Service) ListOverdue(ctx context.Context) ([]*models.Subscription, error) {
	return s.repo.ListOverdueSubscriptions(ctx, s.clock.Now())
}

// ListEndingWithin возвращает подписки, период которых закончится
// в ближайшем окне. Используется планировщиками напоминаний.
func (s *Service) ListEndingWithin(ctx context.Context, window time.Duration) ([]*models.Subscription, error) {
	now := s.clock.Now()
	return s.repo.ListSubscriptionsEndingBetween(ctx, now, now.Add(window))
}

// Status возвращает производный статус подписки.
func (s *Service) Status(ctx context.Context, slug string) (models.Status, error) {
	sub, err := s.Read(ctx, slug)
	if err != nil {
		return "", err
	}
	return sub.Status(s.clock.Now()), nil
}

func (s *Service) mustFindSubscription(ctx context.Context, slug string) (*models.Subscription, error) {
	sub, err := s.repo.FindSubscriptionBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) mustFindPlan(ctx context.Context, id int64) (*models.Plan, error) {
	plan, err := s.plans.FindPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) cacheSubscription(sub *models.Subscription) {
	cacheKey := fmt.Sprintf("subscription:%s", sub.Slug)
	if err := s.cache.Set(cacheKey, sub, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey), slog.Any("err", err))
	}
}

func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
