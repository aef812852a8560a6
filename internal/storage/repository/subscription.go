package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// CreateSubscription вставляет новую подписку и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub *models.Subscription) (int64, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (slug, plan_id, subscriber_kind, subscriber_id, name, timezone,
				starts_at, ends_at, trial_ends_at, grace_ends_at, cancels_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  RETURNING id, created_at`
	err := s.DB.QueryRowContext(ctx, query,
		sub.Slug, sub.PlanID, sub.Subscriber.Kind, sub.Subscriber.ID, sub.Name, sub.Timezone,
		sub.StartsAt, sub.EndsAt, sub.TrialEndsAt, sub.GraceEndsAt, sub.CancelsAt).
		Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return sub.ID, nil
}

// FindSubscriptionBySlug возвращает подписку по slug
// или nil, если подписка не найдена.
func (s *Storage) FindSubscriptionBySlug(ctx context.Context, slug string) (*models.Subscription, error) {
	const op = "storage.FindSubscriptionBySlug"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := subscriptionSelect + ` WHERE slug = $1 AND deleted_at IS NULL`
	row := s.DB.QueryRowContext(ctx, query, slug)

	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// UpdateSubscriptionDates сохраняет даты подписки,
// возвращает количество изменённых строк.
func (s *Storage) UpdateSubscriptionDates(ctx context.Context, sub *models.Subscription) (int64, error) {
	const op = "storage.UpdateSubscriptionDates"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET starts_at = $1, ends_at = $2, trial_ends_at = $3,
			      grace_ends_at = $4, cancels_at = $5, updated_at = now()
			  WHERE id = $6 AND deleted_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query,
		sub.StartsAt, sub.EndsAt, sub.TrialEndsAt, sub.GraceEndsAt, sub.CancelsAt, sub.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// ListSubscriptionsBySubscriber возвращает все подписки владельца.
func (s *Storage) ListSubscriptionsBySubscriber(ctx context.Context, ref models.SubscriberRef) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsBySubscriber"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := subscriptionSelect + `
			  WHERE subscriber_kind = $1 AND subscriber_id = $2 AND deleted_at IS NULL
			  ORDER BY id`
	return s.listSubscriptions(ctx, op, query, ref.Kind, ref.ID)
}

// ListOverdueSubscriptions возвращает подписки, просроченные к моменту asOf:
// период истёк и льготный период (если был) тоже истёк. Используется
// внешними планировщиками для периодической переоценки.
func (s *Storage) ListOverdueSubscriptions(ctx context.Context, asOf time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListOverdueSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := subscriptionSelect + `
			  WHERE ends_at <= $1
			    AND COALESCE(grace_ends_at, $1) <= $1
			    AND deleted_at IS NULL
			  ORDER BY id`
	return s.listSubscriptions(ctx, op, query, asOf)
}

// ListSubscriptionsEndingBetween возвращает подписки с окончанием периода
// в заданном окне. Используется планировщиками напоминаний.
func (s *Storage) ListSubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsEndingBetween"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := subscriptionSelect + `
			  WHERE ends_at BETWEEN $1 AND $2 AND deleted_at IS NULL
			  ORDER BY ends_at`
	return s.listSubscriptions(ctx, op, query, from, to)
}

// ChangePlan атомарно переводит подписку на новый план: сохраняет
// пересчитанные даты, синхронизирует или удаляет записи учёта
// использования и переназначает план. Строка подписки блокируется
// на время транзакции, чтобы конкурентные смены плана сериализовались.
func (s *Storage) ChangePlan(ctx context.Context, sub *models.Subscription, newPlan *models.Plan, sync bool) error {
	const op = "storage.ChangePlan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockedID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM subscriptions WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		sub.ID).Scan(&lockedID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE subscriptions
		 SET plan_id = $1, starts_at = $2, ends_at = $3, updated_at = now()
		 WHERE id = $4`,
		newPlan.ID, sub.StartsAt, sub.EndsAt, sub.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if sync {
		featureIDs := newPlan.FeatureIDs()
		_, err = tx.ExecContext(ctx,
			`UPDATE feature_subscription
			 SET ends_at = $1, updated_at = now()
			 WHERE subscription_id = $2 AND feature_id = ANY($3) AND deleted_at IS NULL`,
			sub.EndsAt, sub.ID, featureIDs)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE feature_subscription
			 SET deleted_at = now(), updated_at = now()
			 WHERE subscription_id = $1 AND NOT (feature_id = ANY($2)) AND deleted_at IS NULL`,
			sub.ID, featureIDs)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE feature_subscription
			 SET deleted_at = now(), updated_at = now()
			 WHERE subscription_id = $1 AND deleted_at IS NULL`,
			sub.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sub.PlanID = newPlan.ID
	return nil
}

const subscriptionSelect = `SELECT id, slug, plan_id, subscriber_kind, subscriber_id, name, timezone,
				starts_at, ends_at, trial_ends_at, grace_ends_at, cancels_at,
				created_at, updated_at
			  FROM subscriptions`

func (s *Storage) listSubscriptions(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	if err := row.Scan(&sub.ID, &sub.Slug, &sub.PlanID,
		&sub.Subscriber.Kind, &sub.Subscriber.ID, &sub.Name, &sub.Timezone,
		&sub.StartsAt, &sub.EndsAt, &sub.TrialEndsAt, &sub.GraceEndsAt, &sub.CancelsAt,
		&sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}
