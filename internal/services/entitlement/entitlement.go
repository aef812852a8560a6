// Package entitlement реализует учёт использования фич по подпискам:
// ленивое создание записей учёта, проверку прав и квот, расход юнитов
// с перекатыванием окна сброса и включение/выключение фич для подписки.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// Ошибки уровня сервиса учёта использования.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found")
)

// unitsConsumed считает израсходованные юниты по slug фичи.
var unitsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "entitlements_feature_units_consumed_total",
	Help: "Total number of feature units consumed, per feature slug.",
}, []string{"feature"})

// UsageRepository определяет методы для работы с записями учёта в хранилище.
type UsageRepository interface {
	// FindUsage возвращает запись учёта для пары (подписка, фича) или nil.
	FindUsage(ctx context.Context, subscriptionID, featureID int64) (*models.FeatureUsage, error)
	// FirstOrCreateUsage находит или создаёт запись учёта.
	FirstOrCreateUsage(ctx context.Context, usage models.FeatureUsage) (*models.FeatureUsage, bool, error)
	// UpdateUsage сохраняет изменённую запись учёта.
	UpdateUsage(ctx context.Context, usage *models.FeatureUsage) (int64, error)
	// SetUsageActive включает или выключает запись учёта.
	SetUsageActive(ctx context.Context, subscriptionID, featureID int64, active bool) (int64, error)
	// ListUsageBySubscription возвращает все записи учёта подписки.
	ListUsageBySubscription(ctx context.Context, subscriptionID int64) ([]*models.FeatureUsage, error)
}

// SubscriptionRepository определяет методы для чтения подписок.
type SubscriptionRepository interface {
	FindSubscriptionBySlug(ctx context.Context, slug string) (*models.Subscription, error)
}

// PlanRepository определяет методы для чтения планов.
type PlanRepository interface {
	FindPlanByID(ctx context.Context, id int64) (*models.Plan, error)
}

// EventSink принимает доменные события.
type EventSink interface {
	Publish(event models.Event)
}

// Service реализует учёт использования фич.
type Service struct {
	usage  UsageRepository
	subs   SubscriptionRepository
	plans  PlanRepository
	events EventSink
	clock  clock.Clock
	log    *slog.Logger
}

// New создает новый экземпляр Service.
func New(usage UsageRepository, subs SubscriptionRepository, plans PlanRepository,
	events EventSink, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		usage:  usage,
		subs:   subs,
		plans:  plans,
		events: events,
		clock:  clk,
		log:    log,
	}
}

// UseFeature расходует юниты фичи для подписки. Предварительно проверяет
// право использования; для фич с собственным интервалом сброса новая
// запись получает дедлайн, отсчитанный от даты создания подписки
// (каденция сброса выравнивается по старту подписки, а не по времени
// первого вызова), а закончившееся окно перекатывается вперёд от
// собственного прежнего дедлайна записи со сбросом счётчика.
// Нерасходуемые фичи счётчик не изменяют.
func (s *Service) UseFeature(ctx context.Context, subscriptionSlug string, req models.UseFeatureRequest) (*models.FeatureUsage, error) {
	sub, _, planFeature, err := s.resolve(ctx, subscriptionSlug, req.FeatureSlug)
	if err != nil {
		return nil, err
	}

	if err := s.validateFeature(ctx, sub, planFeature, req.Units); err != nil {
		return nil, err
	}

	usage, created, err := s.firstOrCreateUsage(ctx, sub, planFeature, 0)
	if err != nil {
		return nil, err
	}
	if usage == nil {
		return nil, &models.CannotUseFeatureError{
			Reason:      models.ReasonInactiveFeature,
			FeatureSlug: req.FeatureSlug,
			Units:       req.Units,
		}
	}

	feature := &planFeature.Feature
	now := s.clock.Now()
	if feature.HasResetInterval() {
		if created {
			endsAt, err := feature.CalculateNextResetEnd(sub.CreatedAt)
			if err != nil {
				return nil, err
			}
			usage.EndsAt = &endsAt
		} else if usage.Ended(now) {
			endsAt, err := feature.CalculateNextResetEnd(*usage.EndsAt)
			if err != nil {
				return nil, err
			}
			usage.EndsAt = &endsAt
			usage.Used = 0
		}
	}

	if feature.Consumable {
		if req.Increment == nil || *req.Increment {
			usage.Used += req.Units
		} else {
			usage.Used = req.Units
		}
	}

	if _, err := s.usage.UpdateUsage(ctx, usage); err != nil {
		return nil, err
	}

	s.events.Publish(models.FeatureUsed{
		Subscriber:  sub.Subscriber,
		FeatureSlug: feature.Slug,
		Units:       req.Units,
	})
	unitsConsumed.WithLabelValues(feature.Slug).Add(float64(req.Units))
	s.log.Info("feature used", slog.String("subscription", subscriptionSlug),
		slog.String("feature", feature.Slug), slog.Int64("units", req.Units))

	return usage, nil
}

// SetUsedUnits перезаписывает счётчик использованных юнитов.
func (s *Service) SetUsedUnits(ctx context.Context, subscriptionSlug, featureSlug string, units int64) (*models.FeatureUsage, error) {
	increment := false
	return s.UseFeature(ctx, subscriptionSlug, models.UseFeatureRequest{
		FeatureSlug: featureSlug,
		Units:       units,
		Increment:   &increment,
	})
}

// CanUseFeature сообщает, доступна ли фича подписке: фича входит в план,
// включена, запись учёта существует и активна; нерасходуемая фича
// доступна по факту наличия, расходуемая — при достаточном остатке.
// В отличие от UseFeature не возвращает типизированных отказов.
func (s *Service) CanUseFeature(ctx context.Context, subscriptionSlug string, req models.CanUseFeatureRequest) (bool, error) {
	sub, _, planFeature, err := s.resolve(ctx, subscriptionSlug, req.FeatureSlug)
	if err != nil {
		var notFound *models.FeatureNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}

	if planFeature.Feature.IsInactive() {
		return false, nil
	}

	usage, err := s.usage.FindUsage(ctx, sub.ID, planFeature.Feature.ID)
	if err != nil {
		return false, err
	}
	if usage == nil || usage.IsInactive() {
		return false, nil
	}

	if !planFeature.Feature.Consumable {
		return true, nil
	}
	if planFeature.Units == nil {
		return true, nil
	}

	remaining := s.remaining(planFeature, usage)
	return remaining >= req.Units, nil
}

// RemainingUnits возвращает остаток квоты по фиче.
// Закончившееся окно или отсутствие записи считаются нулевым расходом.
func (s *Service) RemainingUnits(ctx context.Context, subscriptionSlug, featureSlug string) (int64, error) {
	maxUnits, err := s.MaxFeatureUnits(ctx, subscriptionSlug, featureSlug)
	if err != nil {
		return 0, err
	}
	used, err := s.UnitsUsed(ctx, subscriptionSlug, featureSlug)
	if err != nil {
		return 0, err
	}
	return maxUnits - used, nil
}

// MaxFeatureUnits возвращает квоту юнитов фичи по плану подписки.
// Безлимитная квота считается нулевой: для булевых и безлимитных фич
// остаток смысла не имеет.
func (s *Service) MaxFeatureUnits(ctx context.Context, subscriptionSlug, featureSlug string) (int64, error) {
	_, _, planFeature, err := s.resolve(ctx, subscriptionSlug, featureSlug)
	if err != nil {
		return 0, err
	}
	if planFeature.Units == nil {
		return 0, nil
	}
	return *planFeature.Units, nil
}

// UnitsUsed возвращает количество израсходованных юнитов фичи.
func (s *Service) UnitsUsed(ctx context.Context, subscriptionSlug, featureSlug string) (int64, error) {
	sub, _, planFeature, err := s.resolve(ctx, subscriptionSlug, featureSlug)
	if err != nil {
		return 0, err
	}
	usage, err := s.usage.FindUsage(ctx, sub.ID, planFeature.Feature.ID)
	if err != nil {
		return 0, err
	}
	if usage == nil || usage.Ended(s.clock.Now()) {
		return 0, nil
	}
	return usage.Used, nil
}

// ActivateFeature включает запись учёта фичи для подписки, создавая её
// при необходимости. Возвращает false, если запись создать нельзя.
func (s *Service) ActivateFeature(ctx context.Context, subscriptionSlug, featureSlug string) (bool, error) {
	return s.setFeatureActive(ctx, subscriptionSlug, featureSlug, true)
}

// DeactivateFeature выключает запись учёта фичи для подписки, создавая
// её при необходимости. Возвращает false, если запись создать нельзя.
func (s *Service) DeactivateFeature(ctx context.Context, subscriptionSlug, featureSlug string) (bool, error) {
	return s.setFeatureActive(ctx, subscriptionSlug, featureSlug, false)
}

// ListUsage возвращает все записи учёта использования подписки.
func (s *Service) ListUsage(ctx context.Context, subscriptionSlug string) ([]*models.FeatureUsage, error) {
	sub, err := s.mustFindSubscription(ctx, subscriptionSlug)
	if err != nil {
		return nil, err
	}
	return s.usage.ListUsageBySubscription(ctx, sub.ID)
}

func (s *Service) setFeatureActive(ctx context.Context, subscriptionSlug, featureSlug string, active bool) (bool, error) {
	sub, _, planFeature, err := s.resolve(ctx, subscriptionSlug, featureSlug)
	if err != nil {
		var notFound *models.FeatureNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}

	usage, _, err := s.firstOrCreateUsage(ctx, sub, planFeature, 0)
	if err != nil {
		return false, err
	}
	if usage == nil {
		return false, nil
	}

	if _, err := s.usage.SetUsageActive(ctx, sub.ID, planFeature.Feature.ID, active); err != nil {
		return false, err
	}
	s.log.Info("feature usage activity changed", slog.String("subscription", subscriptionSlug),
		slog.String("feature", featureSlug), slog.Bool("active", active))
	return true, nil
}

// firstOrCreateUsage находит или создаёт запись учёта для пары
// (подписка, фича). Возвращает nil для выключенной фичи. Дедлайн сброса
// новой записи по умолчанию совпадает с окончанием периода подписки.
func (s *Service) firstOrCreateUsage(ctx context.Context, sub *models.Subscription,
	planFeature *models.PlanFeature, initialUsed int64) (*models.FeatureUsage, bool, error) {
	if planFeature.Feature.IsInactive() {
		return nil, false, nil
	}

	return s.usage.FirstOrCreateUsage(ctx, models.FeatureUsage{
		SubscriptionID: sub.ID,
		FeatureID:      planFeature.Feature.ID,
		Used:           initialUsed,
		Active:         true,
		EndsAt:         sub.EndsAt,
	})
}

// validateFeature проверяет право расхода юнитов перед изменением записи.
func (s *Service) validateFeature(ctx context.Context, sub *models.Subscription,
	planFeature *models.PlanFeature, units int64) error {
	if planFeature.Feature.IsInactive() {
		return &models.CannotUseFeatureError{
			Reason:      models.ReasonInactiveFeature,
			FeatureSlug: planFeature.Feature.Slug,
			Units:       units,
		}
	}

	usage, err := s.usage.FindUsage(ctx, sub.ID, planFeature.Feature.ID)
	if err != nil {
		return err
	}
	if usage != nil && usage.IsInactive() {
		return &models.CannotUseFeatureError{
			Reason:      models.ReasonUsageDeactivated,
			FeatureSlug: planFeature.Feature.Slug,
			Units:       units,
		}
	}

	if planFeature.Feature.Consumable && planFeature.Units != nil {
		quota := *planFeature.Units
		var used int64
		if usage != nil && !usage.Ended(s.clock.Now()) {
			used = usage.Used
		}
		if units > quota-used {
			return &models.CannotUseFeatureError{
				Reason:      models.ReasonInsufficientBalance,
				FeatureSlug: planFeature.Feature.Slug,
				Units:       units,
			}
		}
	}
	return nil
}

func (s *Service) remaining(planFeature *models.PlanFeature, usage *models.FeatureUsage) int64 {
	quota := *planFeature.Units
	var used int64
	if usage != nil && !usage.Ended(s.clock.Now()) {
		used = usage.Used
	}
	return quota - used
}

// resolve загружает подписку, её план и строку фичи плана.
// Возвращает FeatureNotFoundError, если план фичу не предоставляет.
func (s *Service) resolve(ctx context.Context, subscriptionSlug, featureSlug string) (*models.Subscription, *models.Plan, *models.PlanFeature, error) {
	sub, err := s.mustFindSubscription(ctx, subscriptionSlug)
	if err != nil {
		return nil, nil, nil, err
	}

	plan, err := s.plans.FindPlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, nil, err
	}
	if plan == nil {
		return nil, nil, nil, fmt.Errorf("%w: id %d", ErrPlanNotFound, sub.PlanID)
	}

	planFeature := plan.GetFeatureBySlug(featureSlug)
	if planFeature == nil {
		return nil, nil, nil, &models.FeatureNotFoundError{FeatureSlug: featureSlug}
	}
	return sub, plan, planFeature, nil
}

func (s *Service) mustFindSubscription(ctx context.Context, slug string) (*models.Subscription, error) {
	sub, err := s.subs.FindSubscriptionBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}
