// Package clock предоставляет источник текущего времени как зависимость.
// Бизнес-логика получает "сейчас" через интерфейс Clock, что позволяет
// замораживать время в тестах.
package clock

import "time"

// Clock источник текущего времени.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System возвращает часы, читающие системное время.
func System() Clock { return systemClock{} }

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// FixedAt возвращает часы, замороженные на заданном моменте. Для тестов.
func FixedAt(t time.Time) Clock { return fixedClock{t: t} }
