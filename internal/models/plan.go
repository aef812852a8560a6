package models

import (
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/period"
)

// PlanFeature строка связи план-фича с квотой юнитов.
// Units == nil означает безлимитную квоту.
type PlanFeature struct {
	Feature Feature `json:"feature"`
	Units   *int64  `json:"units,omitempty"`
}

// Plan биллинговый шаблон: цена в минорных единицах валюты, периодичность
// списания и необязательные триальный и льготный (grace) интервалы.
// Набор фич с поюнитными квотами подключается через PlanFeature.
type Plan struct {
	ID            int64            `json:"id"`
	Slug          string           `json:"slug"`
	Name          string           `json:"name"`
	Active        bool             `json:"active"`
	Price         int64            `json:"price"`
	Currency      string           `json:"currency"`
	Interval      period.Interval  `json:"interval"`
	TrialInterval *period.Interval `json:"trial_interval,omitempty"`
	GraceInterval *period.Interval `json:"grace_interval,omitempty"`
	Features      []PlanFeature    `json:"features,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     *time.Time       `json:"-"`
}

// IsActive сообщает, включён ли план.
func (p *Plan) IsActive() bool { return p.Active }

// IsInactive сообщает, выключен ли план.
func (p *Plan) IsInactive() bool { return !p.Active }

// IsFree сообщает, является ли план бесплатным.
func (p *Plan) IsFree() bool { return p.Price <= 0 }

// HasTrialPeriod сообщает, задан ли у плана триальный интервал.
func (p *Plan) HasTrialPeriod() bool { return p.TrialInterval != nil }

// HasGracePeriod сообщает, задан ли у плана льготный интервал.
func (p *Plan) HasGracePeriod() bool { return p.GraceInterval != nil }

// SameRecurrence сообщает, совпадает ли периодичность списания с другим
// планом. Используется при смене плана: несовпадение каденции означает
// новый биллинговый цикл.
func (p *Plan) SameRecurrence(other *Plan) bool {
	return p.Interval == other.Interval
}

// CalculateNextRecurrenceEnd вычисляет окончание следующего биллингового
// периода от заданной точки отсчёта.
func (p *Plan) CalculateNextRecurrenceEnd(anchor time.Time) (time.Time, error) {
	return p.Interval.NextEnd(anchor)
}

// CalculateTrialPeriodEnd вычисляет окончание триального периода.
// Возвращает nil, если триальный интервал не задан.
func (p *Plan) CalculateTrialPeriodEnd(anchor time.Time) (*time.Time, error) {
	if p.TrialInterval == nil {
		return nil, nil
	}
	end, err := p.TrialInterval.NextEnd(anchor)
	if err != nil {
		return nil, err
	}
	return &end, nil
}

// CalculateGracePeriodEnd вычисляет окончание льготного периода.
// Возвращает nil, если льготный интервал не задан.
func (p *Plan) CalculateGracePeriodEnd(anchor time.Time) (*time.Time, error) {
	if p.GraceInterval == nil {
		return nil, nil
	}
	end, err := p.GraceInterval.NextEnd(anchor)
	if err != nil {
		return nil, err
	}
	return &end, nil
}

// GetFeatureBySlug ищет фичу среди подключённых к плану.
// Возвращает nil, если фича плану не принадлежит.
func (p *Plan) GetFeatureBySlug(slug string) *PlanFeature {
	for i := range p.Features {
		if p.Features[i].Feature.Slug == slug {
			return &p.Features[i]
		}
	}
	return nil
}

// FeatureIDs возвращает идентификаторы всех фич плана.
func (p *Plan) FeatureIDs() []int64 {
	ids := make([]int64, 0, len(p.Features))
	for i := range p.Features {
		ids = append(ids, p.Features[i].Feature.ID)
	}
	return ids
}
