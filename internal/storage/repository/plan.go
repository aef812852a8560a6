package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/period"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// CreatePlan вставляет новый план и возвращает его ID.
func (s *Storage) CreatePlan(ctx context.Context, plan models.Plan) (int64, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO plans (slug, name, active, price, currency,
				interval_type, interval_count,
				trial_interval_type, trial_interval_count,
				grace_interval_type, grace_interval_count)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		plan.Slug, plan.Name, plan.Active, plan.Price, plan.Currency,
		string(plan.Interval.Type), plan.Interval.Count,
		intervalType(plan.TrialInterval), intervalCount(plan.TrialInterval),
		intervalType(plan.GraceInterval), intervalCount(plan.GraceInterval)).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindPlanBySlug возвращает план с подключёнными фичами
// или nil, если план не найден.
func (s *Storage) FindPlanBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	const op = "storage.FindPlanBySlug"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := planSelect + ` WHERE slug = $1 AND deleted_at IS NULL`
	plan, err := s.findPlan(ctx, query, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}

// FindPlanByID возвращает план с подключёнными фичами
// или nil, если план не найден.
func (s *Storage) FindPlanByID(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.FindPlanByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := planSelect + ` WHERE id = $1 AND deleted_at IS NULL`
	plan, err := s.findPlan(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}

// ListPlans возвращает список планов без подключённых фич.
// При onlyActive=true возвращаются только включённые планы.
func (s *Storage) ListPlans(ctx context.Context, onlyActive bool) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := planSelect + ` WHERE deleted_at IS NULL AND ($1 = false OR active = true) ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, plan)
	}
	return result, rows.Err()
}

// SetPlanActive включает или выключает план,
// возвращает количество изменённых строк.
func (s *Storage) SetPlanActive(ctx context.Context, slug string, active bool) (int64, error) {
	const op = "storage.SetPlanActive"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plans SET active = $1, updated_at = now()
			  WHERE slug = $2 AND deleted_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, active, slug)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// SoftDeletePlan помечает план удалённым; существующие подписки
// сохраняют ссылку на него.
func (s *Storage) SoftDeletePlan(ctx context.Context, slug string) (int64, error) {
	const op = "storage.SoftDeletePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plans SET deleted_at = now(), updated_at = now()
			  WHERE slug = $1 AND deleted_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, slug)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// AttachFeatureToPlan подключает фичу к плану с квотой юнитов.
// Повторное подключение обновляет квоту: пара (фича, план) уникальна.
func (s *Storage) AttachFeatureToPlan(ctx context.Context, planID, featureID int64, units *int64) error {
	const op = "storage.AttachFeatureToPlan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO feature_plan (feature_id, plan_id, units)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (feature_id, plan_id) DO UPDATE
			  SET units = EXCLUDED.units, updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query, featureID, planID, units); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DetachFeatureFromPlan отключает фичу от плана,
// возвращает количество удалённых строк.
func (s *Storage) DetachFeatureFromPlan(ctx context.Context, planID, featureID int64) (int64, error) {
	const op = "storage.DetachFeatureFromPlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM feature_plan WHERE feature_id = $1 AND plan_id = $2`
	result, err := s.DB.ExecContext(ctx, query, featureID, planID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

const planSelect = `SELECT id, slug, name, active, price, currency,
				interval_type, interval_count,
				trial_interval_type, trial_interval_count,
				grace_interval_type, grace_interval_count,
				created_at, updated_at
			  FROM plans`

func (s *Storage) findPlan(ctx context.Context, query string, arg any) (*models.Plan, error) {
	row := s.DB.QueryRowContext(ctx, query, arg)

	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	plan.Features, err = s.loadPlanFeatures(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Storage) loadPlanFeatures(ctx context.Context, planID int64) ([]models.PlanFeature, error) {
	query := `SELECT f.id, f.slug, f.name, f.consumable, f.active,
				f.reset_interval_type, f.reset_interval_count,
				f.created_at, f.updated_at, fp.units
			  FROM features f
			  JOIN feature_plan fp ON fp.feature_id = f.id
			  WHERE fp.plan_id = $1 AND f.deleted_at IS NULL
			  ORDER BY f.id`
	rows, err := s.DB.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []models.PlanFeature
	for rows.Next() {
		var pf models.PlanFeature
		var resetType sql.NullString
		var resetCount, units sql.NullInt64

		if err := rows.Scan(&pf.Feature.ID, &pf.Feature.Slug, &pf.Feature.Name,
			&pf.Feature.Consumable, &pf.Feature.Active, &resetType, &resetCount,
			&pf.Feature.CreatedAt, &pf.Feature.UpdatedAt, &units); err != nil {
			return nil, err
		}
		pf.Feature.ResetInterval = scanInterval(resetType, resetCount)
		if units.Valid {
			pf.Units = &units.Int64
		}
		result = append(result, pf)
	}
	return result, rows.Err()
}

func scanPlan(row rowScanner) (*models.Plan, error) {
	var plan models.Plan
	var intervalTypeStr string
	var trialType, graceType sql.NullString
	var trialCount, graceCount sql.NullInt64

	if err := row.Scan(&plan.ID, &plan.Slug, &plan.Name, &plan.Active,
		&plan.Price, &plan.Currency,
		&intervalTypeStr, &plan.Interval.Count,
		&trialType, &trialCount, &graceType, &graceCount,
		&plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return nil, err
	}
	plan.Interval.Type = period.IntervalType(intervalTypeStr)
	plan.TrialInterval = scanInterval(trialType, trialCount)
	plan.GraceInterval = scanInterval(graceType, graceCount)
	return &plan, nil
}
