package subscriber

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/rbroggi/souqly/internal/actors/pubsub/wire"
	"github.com/rbroggi/souqly/internal/core/ports"

	log "github.com/sirupsen/logrus"
)

// SubscriberArgs contain the mandatory arguments to build a subscriber.
type SubscriberArgs struct {
	// Subscription is a pubsub subscription
	Subscription *pubsub.Subscription

	// AccountEventHandler is a event handler
	AccountEventHandler ports.AccountEventHandler
}

// Subscriber is a pubsub async subscriber
type Subscriber struct {
	subscription        *pubsub.Subscription
	accountEventHandler ports.AccountEventHandler
}

// NewSubscriber creates a subscriber
func NewSubscriber(args SubscriberArgs) *Subscriber {
	return &Subscriber{
		subscription:        args.Subscription,
		accountEventHandler: args.AccountEventHandler,
	}
}

// Consume starts the subscriber. This is a blocking method and should be started in it's own go-routine.
// The way to terminate the method is to cancel the context in input.
func (s *Subscriber) Consume(ctx context.Context) error {
	if err := s.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		event, err := wire.Decode(msg.Data)
		if err != nil {
			// redelivering would not make it decodable
			log.WithError(err).WithField("message_id", msg.ID).Error("dropping malformed account-event")
			msg.Ack()
			return
		}

		if err := s.accountEventHandler.Handle(ctx, event); err != nil {
			log.WithError(err).WithField("event_id", event.ID).Error("error in account event handler")
			msg.Nack()
		} else {
			msg.Ack()
		}
	}); err != nil {
		return fmt.Errorf("error receiving messages from subscription: %w", err)
	}
	return nil
}
