package watermillbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const roundIdMetadataKey = "round_id"

type envelope struct {
	Type    domain.EventType
	Payload json.RawMessage
}

// eventBus delivers the batches of round events published by the arena to
// every registered handler, in publishing order. Publish returns once every
// handler acked the batch.
type eventBus struct {
	pubsub *gochannel.GoChannel

	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func NewEventBus() ports.EventBus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1024,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewStdLogger(false, false),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &eventBus{
		pubsub: pubsub,
		ctx:    ctx,
		cancel: cancel,
		wg:     &sync.WaitGroup{},
	}
}

func (b *eventBus) Publish(
	_ context.Context, topic, id string, events []domain.RoundEvent,
) error {
	if len(events) <= 0 {
		return nil
	}
	payload, err := encodeEvents(events)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(roundIdMetadataKey, id)
	return b.pubsub.Publish(topic, msg)
}

func (b *eventBus) RegisterEventsHandler(
	topic string, handler func(events []domain.RoundEvent),
) {
	msgs, err := b.pubsub.Subscribe(b.ctx, topic)
	if err != nil {
		log.WithError(err).Warnf("failed to subscribe to topic %s", topic)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		for msg := range msgs {
			events, err := decodeEvents(msg.Payload)
			if err != nil {
				log.WithError(err).Warnf(
					"failed to decode events of round %s",
					msg.Metadata.Get(roundIdMetadataKey),
				)
				msg.Ack()
				continue
			}
			handler(events)
			msg.Ack()
		}
	}()
}

func (b *eventBus) Close() {
	b.cancel()
	if err := b.pubsub.Close(); err != nil {
		log.WithError(err).Warn("failed to close event bus")
	}
	b.wg.Wait()
}

func encodeEvents(events []domain.RoundEvent) ([]byte, error) {
	envelopes := make([]envelope, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event: %w", err)
		}
		envelopes = append(envelopes, envelope{event.GetType(), payload})
	}
	return json.Marshal(envelopes)
}

func decodeEvents(buf []byte) ([]domain.RoundEvent, error) {
	var envelopes []envelope
	if err := json.Unmarshal(buf, &envelopes); err != nil {
		return nil, err
	}
	events := make([]domain.RoundEvent, 0, len(envelopes))
	for _, e := range envelopes {
		event, err := decodeEvent(e)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func decodeEvent(e envelope) (domain.RoundEvent, error) {
	switch e.Type {
	case domain.EventTypeRoundCreated:
		return decode[domain.RoundCreated](e.Payload)
	case domain.EventTypeInputRegistrationExtended:
		return decode[domain.InputRegistrationExtended](e.Payload)
	case domain.EventTypeAliceRegistered:
		return decode[domain.AliceRegistered](e.Payload)
	case domain.EventTypeAliceRemoved:
		return decode[domain.AliceRemoved](e.Payload)
	case domain.EventTypeConnectionConfirmed:
		return decode[domain.ConnectionConfirmed](e.Payload)
	case domain.EventTypeOutputRegistered:
		return decode[domain.OutputRegistered](e.Payload)
	case domain.EventTypeAliceReadyToSign:
		return decode[domain.AliceReadyToSign](e.Payload)
	case domain.EventTypePhaseChanged:
		return decode[domain.PhaseChanged](e.Payload)
	case domain.EventTypeSigningStarted:
		return decode[domain.SigningStarted](e.Payload)
	case domain.EventTypeWitnessAdded:
		return decode[domain.WitnessAdded](e.Payload)
	case domain.EventTypeRoundEnded:
		return decode[domain.RoundEnded](e.Payload)
	default:
		return nil, fmt.Errorf("unknown event type %d", e.Type)
	}
}

func decode[T domain.RoundEvent](buf []byte) (domain.RoundEvent, error) {
	var event T
	if err := json.Unmarshal(buf, &event); err != nil {
		return nil, err
	}
	return event, nil
}
