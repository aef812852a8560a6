package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// FindUsage возвращает запись учёта использования для пары
// (подписка, фича) или nil, если записи нет.
func (s *Storage) FindUsage(ctx context.Context, subscriptionID, featureID int64) (*models.FeatureUsage, error) {
	const op = "storage.FindUsage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := usageSelect + ` WHERE subscription_id = $1 AND feature_id = $2 AND deleted_at IS NULL`
	row := s.DB.QueryRowContext(ctx, query, subscriptionID, featureID)

	usage, err := scanUsage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return usage, nil
}

// FirstOrCreateUsage находит или создаёт запись учёта использования.
// Пара (фича, подписка) уникальна: конкурентные первые использования
// не создают дубликатов — вставка идёт через ON CONFLICT DO NOTHING
// с последующим перечитыванием. Второй результат сообщает,
// была ли запись создана этим вызовом.
func (s *Storage) FirstOrCreateUsage(ctx context.Context, usage models.FeatureUsage) (*models.FeatureUsage, bool, error) {
	const op = "storage.FirstOrCreateUsage"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO feature_subscription (feature_id, subscription_id, used, active, ends_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (feature_id, subscription_id) WHERE deleted_at IS NULL DO NOTHING
			  RETURNING id`
	var insertedID int64
	err := s.DB.QueryRowContext(ctx, query,
		usage.FeatureID, usage.SubscriptionID, usage.Used, usage.Active, usage.EndsAt).
		Scan(&insertedID)
	created := true
	if errors.Is(err, sql.ErrNoRows) {
		created = false
	} else if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	found, err := s.FindUsage(ctx, usage.SubscriptionID, usage.FeatureID)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if found == nil {
		return nil, false, fmt.Errorf("%s: usage row disappeared after insert", op)
	}
	return found, created, nil
}

// UpdateUsage сохраняет использованные юниты, дедлайн сброса и флаг
// активности записи, возвращает количество изменённых строк.
func (s *Storage) UpdateUsage(ctx context.Context, usage *models.FeatureUsage) (int64, error) {
	const op = "storage.UpdateUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE feature_subscription
			  SET used = $1, ends_at = $2, active = $3, updated_at = now()
			  WHERE id = $4 AND deleted_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, usage.Used, usage.EndsAt, usage.Active, usage.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// SetUsageActive включает или выключает запись учёта использования,
// возвращает количество изменённых строк.
func (s *Storage) SetUsageActive(ctx context.Context, subscriptionID, featureID int64, active bool) (int64, error) {
	const op = "storage.SetUsageActive"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE feature_subscription
			  SET active = $1, updated_at = now()
			  WHERE subscription_id = $2 AND feature_id = $3 AND deleted_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, active, subscriptionID, featureID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// ListUsageBySubscription возвращает все записи учёта использования подписки.
func (s *Storage) ListUsageBySubscription(ctx context.Context, subscriptionID int64) ([]*models.FeatureUsage, error) {
	const op = "storage.ListUsageBySubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := usageSelect + ` WHERE subscription_id = $1 AND deleted_at IS NULL ORDER BY feature_id`
	rows, err := s.DB.QueryContext(ctx, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.FeatureUsage
	for rows.Next() {
		usage, err := scanUsage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, usage)
	}
	return result, rows.Err()
}

const usageSelect = `SELECT id, feature_id, subscription_id, used, active, ends_at, created_at, updated_at
			  FROM feature_subscription`

func scanUsage(row rowScanner) (*models.FeatureUsage, error) {
	var usage models.FeatureUsage
	if err := row.Scan(&usage.ID, &usage.FeatureID, &usage.SubscriptionID,
		&usage.Used, &usage.Active, &usage.EndsAt,
		&usage.CreatedAt, &usage.UpdatedAt); err != nil {
		return nil, err
	}
	return &usage, nil
}
