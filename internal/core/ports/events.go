package ports

import (
	"context"

	"github.com/ark-network/wabisabi/internal/core/domain"
)

type EventBus interface {
	Publish(ctx context.Context, topic, id string, events []domain.RoundEvent) error
	RegisterEventsHandler(topic string, handler func(events []domain.RoundEvent))
	Close()
}
