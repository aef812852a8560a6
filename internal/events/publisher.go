// Package events публикует доменные события во внешний диспетчер.
// Ключ маршрутизации берётся из имени события, полезная нагрузка
// сериализуется в JSON.
package events

import (
	"log/slog"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	"github.com/magabrotheeeer/subscription-entitlements/internal/rabbitmq"
)

// Publisher отправляет доменные события в обменник entitlements.
// Публикация не участвует в транзакциях хранилища: ошибка публикации
// логируется, но не откатывает уже сохранённое изменение.
type Publisher struct {
	ch  rabbitmq.Channel
	log *slog.Logger
}

// New создаёт издатель поверх канала RabbitMQ.
func New(ch rabbitmq.Channel, log *slog.Logger) *Publisher {
	return &Publisher{ch: ch, log: log}
}

// Publish отправляет событие с ключом маршрутизации из EventName.
func (p *Publisher) Publish(event models.Event) {
	if err := rabbitmq.PublishMessage(p.ch, rabbitmq.Exchange, event.EventName(), event); err != nil {
		p.log.Error("failed to publish event", sl.Event(event.EventName()), sl.Err(err))
		return
	}
	p.log.Info("event published", sl.Event(event.EventName()))
}
