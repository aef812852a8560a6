// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — единообразное формирование структурированных полей лога.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to renew subscription", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Event возвращает slog.Attr с ключом "event" для логирования
// имени опубликованного доменного события.
func Event(name string) slog.Attr {
	return slog.Attr{
		Key:   "event",
		Value: slog.StringValue(name),
	}
}
