// Package events публикует события использования квот в RabbitMQ.
package events

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/issue-quota/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// Publisher отправляет models.UsageEvent в обменник, ключ маршрутизации равен типу события.
type Publisher struct {
	ch       rabbitmq.Channel
	exchange string
}

// NewPublisher создаёт Publisher поверх канала ch.
func NewPublisher(ch rabbitmq.Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish публикует событие. Отменённый контекст не отправляется.
func (p *Publisher) Publish(ctx context.Context, event models.UsageEvent) error {
	const op = "events.Publish"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := rabbitmq.PublishMessage(p.ch, p.exchange, string(event.Type), event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
