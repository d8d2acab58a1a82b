package producer

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/rbroggi/souqly/internal/actors/pubsub/wire"
	"github.com/rbroggi/souqly/internal/core/model"
)

// EventIDAttribute is the message attribute carrying the account-event id.
const EventIDAttribute = "event_id"

// NewProducer creates a new producer.
func NewProducer(topic *pubsub.Topic) (*Producer, error) {
	if topic == nil {
		return nil, errors.New("topic is nil")
	}
	return &Producer{topic: topic}, nil
}

// Producer is the pubsub producer of account events.
type Producer struct {
	topic *pubsub.Topic
}

// Send publishes the event and waits for the server acknowledgement.
func (p *Producer) Send(ctx context.Context, event model.AccountEvent) error {
	data, err := wire.Encode(event)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{EventIDAttribute: event.ID},
	})
	// Block until the result is returned and a server-generated
	// ID is returned for the published message.
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("pubsub: result.Get: %w", err)
	}
	return nil
}
