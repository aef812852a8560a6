package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/period"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// CreateFeature вставляет новую фичу каталога и возвращает её ID.
func (s *Storage) CreateFeature(ctx context.Context, feature models.Feature) (int64, error) {
	const op = "storage.CreateFeature"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO features (slug, name, consumable, active, reset_interval_type, reset_interval_count)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		feature.Slug, feature.Name, feature.Consumable, feature.Active,
		intervalType(feature.ResetInterval), intervalCount(feature.ResetInterval)).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindFeatureBySlug возвращает фичу по slug или nil, если фича не найдена.
func (s *Storage) FindFeatureBySlug(ctx context.Context, slug string) (*models.Feature, error) {
	const op = "storage.FindFeatureBySlug"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, slug, name, consumable, active, reset_interval_type, reset_interval_count,
				created_at, updated_at
			  FROM features
			  WHERE slug = $1 AND deleted_at IS NULL`
	row := s.DB.QueryRowContext(ctx, query, slug)

	feature, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return feature, nil
}

// ListFeatures возвращает список фич каталога. При onlyActive=true
// возвращаются только включённые фичи.
func (s *Storage) ListFeatures(ctx context.Context, onlyActive bool) ([]*models.Feature, error) {
	const op = "storage.ListFeatures"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, slug, name, consumable, active, reset_interval_type, reset_interval_count,
				created_at, updated_at
			  FROM features
			  WHERE deleted_at IS NULL AND ($1 = false OR active = true)
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Feature
	for rows.Next() {
		feature, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, feature)
	}
	return result, rows.Err()
}

// SetFeatureActive включает или выключает фичу,
// возвращает количество изменённых строк.
func (s *Storage) SetFeatureActive(ctx context.Context, slug string, active bool) (int64, error) {
	const op = "storage.SetFeatureActive"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE features SET active = $1, updated_at = now()
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

// SoftDeleteFeature помечает фичу удалённой, сохраняя исторические
// ссылки из записей учёта использования.
func (s *Storage) SoftDeleteFeature(ctx context.Context, slug string) (int64, error) {
	const op = "storage.SoftDeleteFeature"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE features SET deleted_at = now(), updated_at = now()
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

// ListPlansWithFeature возвращает планы, которым подключена фича.
// Набор фич у возвращаемых планов не загружается.
func (s *Storage) ListPlansWithFeature(ctx context.Context, featureSlug string) ([]*models.Plan, error) {
	const op = "storage.ListPlansWithFeature"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT p.id, p.slug, p.name, p.active, p.price, p.currency,
				p.interval_type, p.interval_count,
				p.trial_interval_type, p.trial_interval_count,
				p.grace_interval_type, p.grace_interval_count,
				p.created_at, p.updated_at
			  FROM plans p
			  JOIN feature_plan fp ON fp.plan_id = p.id
			  JOIN features f ON f.id = fp.feature_id
			  WHERE f.slug = $1 AND p.deleted_at IS NULL AND f.deleted_at IS NULL
			  ORDER BY p.id`
	rows, err := s.DB.QueryContext(ctx, query, featureSlug)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(row rowScanner) (*models.Feature, error) {
	var feature models.Feature
	var resetType sql.NullString
	var resetCount sql.NullInt64

	if err := row.Scan(&feature.ID, &feature.Slug, &feature.Name, &feature.Consumable,
		&feature.Active, &resetType, &resetCount,
		&feature.CreatedAt, &feature.UpdatedAt); err != nil {
		return nil, err
	}
	feature.ResetInterval = scanInterval(resetType, resetCount)
	return &feature, nil
}

func scanInterval(intervalType sql.NullString, count sql.NullInt64) *period.Interval {
	if !intervalType.Valid || !count.Valid {
		return nil
	}
	return &period.Interval{
		Type:  period.IntervalType(intervalType.String),
		Count: int(count.Int64),
	}
}

func intervalType(iv *period.Interval) sql.NullString {
	if iv == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(iv.Type), Valid: true}
}

func intervalCount(iv *period.Interval) sql.NullInt64 {
	if iv == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(iv.Count), Valid: true}
}
