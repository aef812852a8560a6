package models

import "time"

// FeatureUsage запись учёта использования: одна строка на пару
// (подписка, фича). EndsAt — собственный дедлайн сброса записи,
// nil означает, что запись никогда не сбрасывается. Active=false
// запрещает использование независимо от остатка квоты.
type FeatureUsage struct {
	ID             int64      `json:"id"`
	SubscriptionID int64      `json:"subscription_id"`
	FeatureID      int64      `json:"feature_id"`
	Used           int64      `json:"used"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"-"`
}

// Ended сообщает, закончилось ли окно сброса записи.
// Запись без дедлайна не заканчивается никогда.
func (u *FeatureUsage) Ended(now time.Time) bool {
	if u.EndsAt == nil {
		return false
	}
	return !now.Before(*u.EndsAt)
}

// IsActive сообщает, активна ли запись использования.
func (u *FeatureUsage) IsActive() bool { return u.Active }

// IsInactive сообщает, деактивирована ли запись использования.
func (u *FeatureUsage) IsInactive() bool { return !u.Active }
