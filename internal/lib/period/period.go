// Package period реализует календарную арифметику биллинговых периодов.
// Период задаётся типом интервала (день, неделя, месяц, год), количеством
// интервалов и датой начала; дата окончания вычисляется с учётом календаря:
// прибавление месяца к 31 января даёт последний день февраля, а не начало марта.
package period

import (
	"fmt"
	"time"
)

// IntervalType тип биллингового интервала.
type IntervalType string

// Допустимые типы интервалов.
const (
	Day   IntervalType = "day"
	Week  IntervalType = "week"
	Month IntervalType = "month"
	Year  IntervalType = "year"
)

// Valid сообщает, является ли значение одним из допустимых типов интервала.
func (t IntervalType) Valid() bool {
	switch t {
	case Day, Week, Month, Year:
		return true
	}
	return false
}

// ParseIntervalType преобразует строку в IntervalType,
// возвращает InvalidIntervalError для неизвестных значений.
func ParseIntervalType(s string) (IntervalType, error) {
	t := IntervalType(s)
	if !t.Valid() {
		return "", &InvalidIntervalError{Type: t, Count: 1}
	}
	return t, nil
}

// InvalidIntervalError возвращается при неизвестном типе интервала
// или неположительном количестве интервалов.
type InvalidIntervalError struct {
	Type  IntervalType
	Count int
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval: type %q, count %d (type must be one of [day, week, month, year], count must be >= 1)",
		e.Type, e.Count)
}

// Interval пара «тип интервала + количество», используется планами
// и фичами для описания повторяемости.
type Interval struct {
	Type  IntervalType `json:"type"`
	Count int          `json:"count"`
}

// NextEnd вычисляет дату окончания интервала от заданной точки отсчёта.
func (iv Interval) NextEnd(anchor time.Time) (time.Time, error) {
	p, err := New(iv.Type, iv.Count, anchor)
	if err != nil {
		return time.Time{}, err
	}
	return p.EndsAt(), nil
}

// Period неизменяемый биллинговый период: пара дат начала и окончания,
// где окончание = начало + count интервалов типа intervalType.
type Period struct {
	intervalType IntervalType
	count        int
	startsAt     time.Time
	endsAt       time.Time
}

// New создаёт период от anchor. Возвращает InvalidIntervalError,
// если тип интервала неизвестен или count < 1.
func New(intervalType IntervalType, count int, anchor time.Time) (Period, error) {
	if !intervalType.Valid() || count < 1 {
		return Period{}, &InvalidIntervalError{Type: intervalType, Count: count}
	}

	return Period{
		intervalType: intervalType,
		count:        count,
		startsAt:     anchor,
		endsAt:       add(intervalType, count, anchor),
	}, nil
}

// StartsAt возвращает дату начала периода.
func (p Period) StartsAt() time.Time { return p.startsAt }

// EndsAt возвращает дату окончания периода.
func (p Period) EndsAt() time.Time { return p.endsAt }

// IntervalType возвращает тип интервала периода.
func (p Period) IntervalType() IntervalType { return p.intervalType }

// IntervalCount возвращает количество интервалов периода.
func (p Period) IntervalCount() int { return p.count }

func add(intervalType IntervalType, count int, anchor time.Time) time.Time {
	switch intervalType {
	case Day:
		return anchor.AddDate(0, 0, count)
	case Week:
		return anchor.AddDate(0, 0, 7*count)
	case Month:
		return addMonths(anchor, count)
	case Year:
		return addMonths(anchor, 12*count)
	}
	return anchor
}

// addMonths прибавляет месяцы с ограничением числа последним днём
// целевого месяца: time.AddDate нормализует 31 января + месяц в 2/3 марта,
// что для биллинга некорректно.
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	firstOfTarget := time.Date(year, month+time.Month(months), 1, hour, minute, sec, t.Nanosecond(), t.Location())
	if last := lastDayOfMonth(firstOfTarget.Year(), firstOfTarget.Month()); day > last {
		day = last
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
