// Package catalog содержит бизнес-логику каталога: фичи, планы
// и их связи с поюнитными квотами.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/period"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// Ошибки уровня сервиса каталога.
var (
	ErrPlanNotFound    = errors.New("plan not found")
	ErrFeatureNotFound = errors.New("feature not found")
)

// Repository определяет методы для работы с каталогом в хранилище.
type Repository interface {
	// CreateFeature добавляет новую фичу и возвращает её ID.
	CreateFeature(ctx context.Context, feature models.Feature) (int64, error)
	// FindFeatureBySlug возвращает фичу по slug или nil, если её нет.
	FindFeatureBySlug(ctx context.Context, slug string) (*models.Feature, error)
	// ListFeatures возвращает список фич, опционально только включённые.
	ListFeatures(ctx context.Context, onlyActive bool) ([]*models.Feature, error)
	// SetFeatureActive включает или выключает фичу.
	SetFeatureActive(ctx context.Context, slug string, active bool) (int64, error)
	// SoftDeleteFeature помечает фичу удалённой.
	SoftDeleteFeature(ctx context.Context, slug string) (int64, error)
	// ListPlansWithFeature возвращает планы, которым подключена фича.
	ListPlansWithFeature(ctx context.Context, featureSlug string) ([]*models.Plan, error)
	// CreatePlan добавляет новый план и возвращает его ID.
	CreatePlan(ctx context.Context, plan models.Plan) (int64, error)
	// FindPlanBySlug возвращает план с фичами по slug или nil, если его нет.
	FindPlanBySlug(ctx context.Context, slug string) (*models.Plan, error)
	// ListPlans возвращает список планов, опционально только включённые.
	ListPlans(ctx context.Context, onlyActive bool) ([]*models.Plan, error)
	// SetPlanActive включает или выключает план.
	SetPlanActive(ctx context.Context, slug string, active bool) (int64, error)
	// SoftDeletePlan помечает план удалённым.
	SoftDeletePlan(ctx context.Context, slug string) (int64, error)
	// AttachFeatureToPlan подключает фичу к плану с квотой юнитов.
	AttachFeatureToPlan(ctx context.Context, planID, featureID int64, units *int64) error
	// DetachFeatureFromPlan отключает фичу от плана.
	DetachFeatureFromPlan(ctx context.Context, planID, featureID int64) (int64, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует операции каталога поверх хранилища и кэша.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// CreateFeature создает новую фичу каталога и возвращает её ID.
func (s *Service) CreateFeature(ctx context.Context, req models.CreateFeatureRequest) (int64, error) {
	resetInterval, err := parseInterval(req.ResetIntervalType, req.ResetIntervalCount)
	if err != nil {
		return 0, err
	}

	feature := models.Feature{
		Slug:          req.Slug,
		Name:          req.Name,
		Consumable:    req.Consumable,
		Active:        true,
		ResetInterval: resetInterval,
	}

	id, err := s.repo.CreateFeature(ctx, feature)
	if err != nil {
		return 0, err
	}
	s.log.Info("created new feature", slog.String("slug", req.Slug), slog.Int64("id", id))
	return id, nil
}

// CreatePlan создает новый план и возвращает его ID.
func (s *Service) CreatePlan(ctx context.Context, req models.CreatePlanRequest) (int64, error) {
	intervalType, err := period.ParseIntervalType(req.IntervalType)
	if err != nil {
		return 0, err
	}
	trialInterval, err := parseInterval(req.TrialIntervalType, req.TrialIntervalCount)
	if err != nil {
		return 0, err
	}
	graceInterval, err := parseInterval(req.GraceIntervalType, req.GraceIntervalCount)
	if err != nil {
		return 0, err
	}

	plan := models.Plan{
		Slug:          req.Slug,
		Name:          req.Name,
		Active:        true,
		Price:         req.Price,
		Currency:      req.Currency,
		Interval:      period.Interval{Type: intervalType, Count: req.IntervalCount},
		TrialInterval: trialInterval,
		GraceInterval: graceInterval,
	}

	id, err := s.repo.CreatePlan(ctx, plan)
	if err != nil {
		return 0, err
	}
	s.log.Info("created new plan", slog.String("slug", req.Slug), slog.Int64("id", id))
	return id, nil
}

// GetPlan возвращает план с фичами по slug, используя кеш или репозиторий.
func (s *Service) GetPlan(ctx context.Context, slug string) (*models.Plan, error) {
	var result *models.Plan
	cacheKey := fmt.Sprintf("plan:%s", slug)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		return nil, err
	}
	if found {
		return result, nil
	}

	result, err = s.repo.FindPlanBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrPlanNotFound
	}

	if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
		s.log.Warn("failed to cache plan", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return result, nil
}

// ListPlans возвращает список планов без набора фич.
func (s *Service) ListPlans(ctx context.Context, onlyActive bool) ([]*models.Plan, error) {
	return s.repo.ListPlans(ctx, onlyActive)
}

// GetFeature возвращает фичу по slug.
func (s *Service) GetFeature(ctx context.Context, slug string) (*models.Feature, error) {
	feature, err := s.repo.FindFeatureBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, ErrFeatureNotFound
	}
	return feature, nil
}

// ListFeatures возвращает список фич каталога.
func (s *Service) ListFeatures(ctx context.Context, onlyActive bool) ([]*models.Feature, error) {
	return s.repo.ListFeatures(ctx, onlyActive)
}

// SetFeatureActive включает или выключает фичу.
func (s *Service) SetFeatureActive(ctx context.Context, slug string, active bool) error {
	rowsAffected, err := s.repo.SetFeatureActive(ctx, slug, active)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrFeatureNotFound
	}
	s.log.Info("feature activity changed", slog.String("slug", slug), slog.Bool("active", active))
	return nil
}

// SetPlanActive включает или выключает план и инвалидирует кеш.
func (s *Service) SetPlanActive(ctx context.Context, slug string, active bool) error {
	rowsAffected, err := s.repo.SetPlanActive(ctx, slug, active)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrPlanNotFound
	}
	s.invalidatePlan(slug)
	s.log.Info("plan activity changed", slog.String("slug", slug), slog.Bool("active", active))
	return nil
}

// RemoveFeature помечает фичу удалённой.
func (s *Service) RemoveFeature(ctx context.Context, slug string) error {
	rowsAffected, err := s.repo.SoftDeleteFeature(ctx, slug)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrFeatureNotFound
	}
	return nil
}

// RemovePlan помечает план удалённым и инвалидирует кеш.
func (s *Service) RemovePlan(ctx context.Context, slug string) error {
	rowsAffected, err := s.repo.SoftDeletePlan(ctx, slug)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrPlanNotFound
	}
	s.invalidatePlan(slug)
	return nil
}

// AttachFeature подключает фичу к плану с квотой юнитов. Повторное
// подключение обновляет квоту.
func (s *Service) AttachFeature(ctx context.Context, planSlug string, req models.AttachFeatureRequest) error {
	plan, err := s.repo.FindPlanBySlug(ctx, planSlug)
	if err != nil {
		return err
	}
	if plan == nil {
		return ErrPlanNotFound
	}

	feature, err := s.repo.FindFeatureBySlug(ctx, req.FeatureSlug)
	if err != nil {
		return err
	}
	if feature == nil {
		return ErrFeatureNotFound
	}

	if err := s.repo.AttachFeatureToPlan(ctx, plan.ID, feature.ID, req.Units); err != nil {
		return err
	}
	s.invalidatePlan(planSlug)
	s.log.Info("feature attached to plan",
		slog.String("plan", planSlug), slog.String("feature", req.FeatureSlug))
	return nil
}

// DetachFeature отключает фичу от плана.
func (s *Service) DetachFeature(ctx context.Context, planSlug, featureSlug string) error {
	plan, err := s.repo.FindPlanBySlug(ctx, planSlug)
	if err != nil {
		return err
	}
	if plan == nil {
		return ErrPlanNotFound
	}

	feature, err := s.repo.FindFeatureBySlug(ctx, featureSlug)
	if err != nil {
		return err
	}
	if feature == nil {
		return ErrFeatureNotFound
	}

	if _, err := s.repo.DetachFeatureFromPlan(ctx, plan.ID, feature.ID); err != nil {
		return err
	}
	s.invalidatePlan(planSlug)
	return nil
}

// ListPlansWithFeature возвращает планы, которым подключена фича.
func (s *Service) ListPlansWithFeature(ctx context.Context, featureSlug string) ([]*models.Plan, error) {
	return s.repo.ListPlansWithFeature(ctx, featureSlug)
}

func (s *Service) invalidatePlan(slug string) {
	cacheKey := fmt.Sprintf("plan:%s", slug)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate plan cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
}

func parseInterval(intervalType string, count int) (*period.Interval, error) {
	if intervalType == "" {
		return nil, nil
	}
	parsed, err := period.ParseIntervalType(intervalType)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, &period.InvalidIntervalError{Type: parsed, Count: count}
	}
	return &period.Interval{Type: parsed, Count: count}, nil
}
