package models

import (
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/period"
)

// Status производный статус подписки. Не хранится в базе,
// вычисляется по датам в приоритетном порядке.
type Status string

// Статусы подписки.
const (
	StatusNotStarted Status = "not-started"
	StatusTrialing   Status = "trialing"
	StatusActive     Status = "active"
	StatusOnGrace    Status = "on-grace"
	StatusOverdue    Status = "overdue"
	StatusCancelled  Status = "cancelled"
	StatusEnded      Status = "ended"
)

// SubscriberRef полиморфная ссылка на владельца подписки:
// тип сущности и её идентификатор во внешней системе.
type SubscriberRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Subscription привязанный к подписчику экземпляр плана со своими датами
// начала, окончания, триала, льготного периода и отмены. Даты независимы
// от плана после создания; PlanID меняется только через смену плана.
type Subscription struct {
	ID          int64         `json:"id"`
	Slug        string        `json:"slug"`
	PlanID      int64         `json:"plan_id"`
	Subscriber  SubscriberRef `json:"subscriber"`
	Name        string        `json:"name"`
	Timezone    string        `json:"timezone"`
	StartsAt    *time.Time    `json:"starts_at,omitempty"`
	EndsAt      *time.Time    `json:"ends_at,omitempty"`
	TrialEndsAt *time.Time    `json:"trial_ends_at,omitempty"`
	GraceEndsAt *time.Time    `json:"grace_ends_at,omitempty"`
	CancelsAt   *time.Time    `json:"cancels_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	DeletedAt   *time.Time    `json:"-"`
}

// Started сообщает, началась ли подписка: дата начала задана
// и уже наступила.
func (s *Subscription) Started(now time.Time) bool {
	if s.StartsAt == nil {
		return false
	}
	return !s.StartsAt.After(now)
}

// IsEnded сообщает, истёк ли биллинговый период подписки.
func (s *Subscription) IsEnded(now time.Time) bool {
	if s.EndsAt == nil {
		return false
	}
	return s.EndsAt.Before(now)
}

// IsOverdue сообщает, просрочена ли подписка: период истёк
// и льготный период (если был) тоже истёк.
func (s *Subscription) IsOverdue(now time.Time) bool {
	if s.GraceEndsAt != nil {
		return s.IsEnded(now) && s.GraceEndsAt.Before(now)
	}
	return s.IsEnded(now)
}

// IsOnGracePeriod сообщает, находится ли подписка в льготном периоде:
// период истёк, но дата окончания льготного периода ещё впереди.
func (s *Subscription) IsOnGracePeriod(now time.Time) bool {
	return s.GraceEndsAt != nil && s.IsEnded(now) && s.GraceEndsAt.After(now)
}

// OnTrial сообщает, идёт ли триальный период.
func (s *Subscription) OnTrial(now time.Time) bool {
	return s.TrialEndsAt != nil && s.TrialEndsAt.After(now)
}

// IsCancelled сообщает, отменена ли подписка. Отмена считается и
// запланированная: cancels_at в будущем тоже означает "отменена".
func (s *Subscription) IsCancelled() bool {
	return s.CancelsAt != nil
}

// IsCancelledImmediately сообщает, была ли подписка отменена немедленно:
// даты отмены и окончания заданы и приходятся на один календарный день.
func (s *Subscription) IsCancelledImmediately() bool {
	if s.CancelsAt == nil || s.EndsAt == nil {
		return false
	}
	cy, cm, cd := s.CancelsAt.Date()
	ey, em, ed := s.EndsAt.Date()
	return cy == ey && cm == em && cd == ed
}

// IsActive сообщает, действует ли подписка. Подписка с запланированной
// на будущее отменой остаётся активной до схлопнутого окончания периода;
// активность синхронно снимает только немедленная отмена.
func (s *Subscription) IsActive(now time.Time) bool {
	return !(s.IsEnded(now) || s.IsCancelledImmediately())
}

// IsInactive сообщает, не действует ли подписка.
func (s *Subscription) IsInactive(now time.Time) bool {
	return !s.IsActive(now)
}

// Status вычисляет производный статус подписки в приоритетном порядке:
// не началась, отменена, льготный период, просрочена, истекла, триал, активна.
func (s *Subscription) Status(now time.Time) Status {
	switch {
	case !s.Started(now):
		return StatusNotStarted
	case s.IsCancelled():
		return StatusCancelled
	case s.IsOnGracePeriod(now):
		return StatusOnGrace
	case s.IsOverdue(now):
		return StatusOverdue
	case s.IsEnded(now):
		return StatusEnded
	case s.OnTrial(now):
		return StatusTrialing
	default:
		return StatusActive
	}
}

// SetNewPeriod пересчитывает даты начала и окончания подписки в памяти,
// не сохраняя изменения. Сохранение — ответственность вызывающего.
func (s *Subscription) SetNewPeriod(intervalType period.IntervalType, count int, anchor time.Time) error {
	p, err := period.New(intervalType, count, anchor)
	if err != nil {
		return err
	}
	startsAt := p.StartsAt()
	endsAt := p.EndsAt()
	s.StartsAt = &startsAt
	s.EndsAt = &endsAt
	return nil
}
