package models

import (
	"fmt"
	"time"
)

// InvalidPeriodError возвращается при попытке сконструировать подписку,
// у которой дата начала позже даты окончания.
type InvalidPeriodError struct {
	StartsAt time.Time
	EndsAt   time.Time
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid period: starts_at %s must not be after ends_at %s",
		e.StartsAt.Format(time.RFC3339), e.EndsAt.Format(time.RFC3339))
}

// NoResetIntervalError возвращается при запросе даты сброса у фичи,
// не имеющей собственного интервала сброса.
type NoResetIntervalError struct {
	FeatureSlug string
}

func (e *NoResetIntervalError) Error() string {
	return fmt.Sprintf("feature %q has no reset interval", e.FeatureSlug)
}

// FeatureNotFoundError возвращается, когда фича не входит в план подписки.
type FeatureNotFoundError struct {
	FeatureSlug string
}

func (e *FeatureNotFoundError) Error() string {
	return fmt.Sprintf("the subscription plan does not grant access to feature %q", e.FeatureSlug)
}

// CannotUseFeatureReason код причины отказа в использовании фичи.
type CannotUseFeatureReason string

// Причины отказа в использовании фичи.
const (
	ReasonInactiveFeature     CannotUseFeatureReason = "inactive-feature"
	ReasonUsageDeactivated    CannotUseFeatureReason = "deactivated-usage"
	ReasonInsufficientBalance CannotUseFeatureReason = "insufficient-balance"
)

// CannotUseFeatureError возвращается, когда фича входит в план,
// но использовать её нельзя: сама фича выключена, запись использования
// деактивирована или запрошено больше юнитов, чем осталось по квоте.
type CannotUseFeatureError struct {
	Reason      CannotUseFeatureReason
	FeatureSlug string
	Units       int64
}

func (e *CannotUseFeatureError) Error() string {
	return fmt.Sprintf("cannot use %d units of feature %q: %s", e.Units, e.FeatureSlug, e.Reason)
}
