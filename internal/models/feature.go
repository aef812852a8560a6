// Package models содержит доменные структуры каталога планов, подписок
// и учёта использования фич, а также типизированные ошибки и события
// жизненного цикла. Все предикаты статуса принимают текущее время явно,
// источник времени внедряется на уровне сервисов.
package models

import (
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/period"
)

// Feature определение возможности (фичи) каталога. Фича может быть
// расходуемой (учёт юнитов по квоте) или булевой (доступ по факту наличия
// в плане). Необязательный ResetInterval задаёт собственную периодичность
// сброса использования, независимую от биллингового цикла подписки.
type Feature struct {
	ID            int64            `json:"id"`
	Slug          string           `json:"slug"`
	Name          string           `json:"name"`
	Consumable    bool             `json:"consumable"`
	Active        bool             `json:"active"`
	ResetInterval *period.Interval `json:"reset_interval,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     *time.Time       `json:"-"`
}

// IsActive сообщает, включена ли фича.
func (f *Feature) IsActive() bool { return f.Active }

// IsInactive сообщает, выключена ли фича.
func (f *Feature) IsInactive() bool { return !f.Active }

// HasResetInterval сообщает, задан ли у фичи собственный интервал сброса.
func (f *Feature) HasResetInterval() bool { return f.ResetInterval != nil }

// CalculateNextResetEnd вычисляет дату следующего сброса использования
// от заданной точки отсчёта. Возвращает NoResetIntervalError,
// если интервал сброса не задан.
func (f *Feature) CalculateNextResetEnd(anchor time.Time) (time.Time, error) {
	if f.ResetInterval == nil {
		return time.Time{}, &NoResetIntervalError{FeatureSlug: f.Slug}
	}
	return f.ResetInterval.NextEnd(anchor)
}
