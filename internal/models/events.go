package models

import "time"

// Event доменное событие жизненного цикла. EventName используется
// как ключ маршрутизации при публикации во внешний диспетчер.
type Event interface {
	EventName() string
}

// SubscriptionCreated подписка создана и сохранена.
type SubscriptionCreated struct {
	SubscriptionSlug string        `json:"subscription_slug"`
	PlanSlug         string        `json:"plan_slug"`
	Subscriber       SubscriberRef `json:"subscriber"`
	StartsAt         *time.Time    `json:"starts_at"`
	EndsAt           *time.Time    `json:"ends_at"`
}

// EventName возвращает ключ маршрутизации события.
func (SubscriptionCreated) EventName() string { return "subscription.created" }

// SubscriptionStarted подписка начала действовать.
type SubscriptionStarted struct {
	SubscriptionSlug string        `json:"subscription_slug"`
	Subscriber       SubscriberRef `json:"subscriber"`
	StartsAt         *time.Time    `json:"starts_at"`
}

// EventName возвращает ключ маршрутизации события.
func (SubscriptionStarted) EventName() string { return "subscription.started" }

// SubscriptionScheduled старт подписки запланирован на будущее.
type SubscriptionScheduled struct {
	SubscriptionSlug string     `json:"subscription_slug"`
	StartsAt         *time.Time `json:"starts_at"`
}

// EventName возвращает ключ маршрутизации события.
func (SubscriptionScheduled) EventName() string { return "subscription.scheduled" }

// SubscriptionTrialStarted начался триальный период подписки.
type SubscriptionTrialStarted struct {
	SubscriptionSlug string     `json:"subscription_slug"`
	TrialEndsAt      *time.Time `json:"trial_ends_at"`
}

// EventName возвращает ключ маршрутизации события.
func (SubscriptionTrialStarted) EventName() string { return "subscription.trial_started" }

// SubscriptionRenewed подписка продлена на новый период.
type SubscriptionRenewed struct {
	SubscriptionSlug string     `json:"subscription_slug"`
	EndsAt           *time.Time `json:"ends_at"`
}

// EventName возвращает ключ маршрутизации события.
func (SubscriptionRenewed) EventName() string { return "subscription.renewed" }

// SubscriptionCancelled подписка отменена, немедленно или по расписанию.
type SubscriptionCancelled struct {
	SubscriptionSlug string     `json:"subscription_slug"`
	CancelsAt        *time.Time `json:"cancels_at"`
	Immediately      bool       `json:"immediately"`
}

// EventName возвращает ключ маршрутизации события.
func (SubscriptionCancelled) EventName() string { return "subscription.cancelled" }

// SubscriptionReactivated запланированная отмена подписки снята.
type SubscriptionReactivated struct {
	SubscriptionSlug string `json:"subscription_slug"`
}

// EventName возвращает ключ маршрутизации события.
func (SubscriptionReactivated) EventName() string { return "subscription.reactivated" }

// SubscriptionPlanChanged подписка переведена на другой план.
type SubscriptionPlanChanged struct {
	SubscriptionSlug string `json:"subscription_slug"`
	OldPlanSlug      string `json:"old_plan_slug"`
	NewPlanSlug      string `json:"new_plan_slug"`
}

// EventName возвращает ключ маршрутизации события.
func (SubscriptionPlanChanged) EventName() string { return "subscription.plan_changed" }

// SubscriptionExpiring период подписки закончится в ближайшем окне.
// Публикуется планировщиком напоминаний, а не операциями жизненного цикла.
type SubscriptionExpiring struct {
	SubscriptionSlug string        `json:"subscription_slug"`
	Subscriber       SubscriberRef `json:"subscriber"`
	EndsAt           *time.Time    `json:"ends_at"`
}

// EventName возвращает ключ маршрутизации события.
func (SubscriptionExpiring) EventName() string { return "subscription.expiring" }

// FeatureUsed подписчик израсходовал юниты фичи.
type FeatureUsed struct {
	Subscriber  SubscriberRef `json:"subscriber"`
	FeatureSlug string        `json:"feature_slug"`
	Units       int64         `json:"units"`
}

// EventName возвращает ключ маршрутизации события.
func (FeatureUsed) EventName() string { return "feature.used" }
