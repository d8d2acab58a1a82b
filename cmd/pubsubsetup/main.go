package main

import (
	"context"
	"flag"

	"cloud.google.com/go/pubsub"
	"github.com/rbroggi/souqly/internal/config"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	configPath    = flag.String("config", "", "path of an optional YAML configuration file")
	subscriptions = flag.String("extra-subscriptions", "", "comma-separated subscriptions to create on the account events topic besides the configured one")
)

// Creates the account events topic and its subscriptions. Safe to run more than once.
func main() {
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("error loading config")
	}

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, cfg.PubSub.Project)
	if err != nil {
		log.WithError(err).WithField("project", cfg.PubSub.Project).Fatal("unable to create client")
	}
	defer client.Close()

	topic, err := client.CreateTopic(ctx, cfg.PubSub.Topic)
	if status.Code(err) == codes.AlreadyExists {
		topic = client.Topic(cfg.PubSub.Topic)
	} else if err != nil {
		log.WithError(err).WithField("topic", cfg.PubSub.Topic).Fatal("unable to create topic")
	}

	for _, subscriptionID := range subscriptionIDs(cfg.PubSub.Subscription, *subscriptions) {
		_, err := client.CreateSubscription(ctx, subscriptionID, pubsub.SubscriptionConfig{Topic: topic})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			log.WithError(err).WithField("subscription", subscriptionID).Fatal("unable to create subscription")
		}
		log.
			WithField("project", cfg.PubSub.Project).
			WithField("topic", cfg.PubSub.Topic).
			WithField("subscription", subscriptionID).
			Info("subscription ready")
	}
}
