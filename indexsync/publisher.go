package indexsync

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/sirupsen/logrus"
)

// Publisher delivers product snapshots to the search index.
type Publisher interface {
	Publish(ctx context.Context, snapshot ProductSnapshot) error
	Close() error
}

// PubSubPublisher publishes one message per product, ordered per product so a stale
// snapshot never overtakes a newer one.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

func NewPubSubPublisher(client *pubsub.Client, topicName string) *PubSubPublisher {
	t := client.Topic(topicName)
	t.EnableMessageOrdering = true
	return &PubSubPublisher{topic: t}
}

func orderingKey(s ProductSnapshot) string {
	return fmt.Sprintf("%s:%d", s.TenantId, s.ProductId)
}

func (p *PubSubPublisher) Publish(ctx context.Context, snapshot ProductSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	key := orderingKey(snapshot)
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: key,
		Attributes: map[string]string{
			"tenant_id":  snapshot.TenantId,
			"product_id": fmt.Sprint(snapshot.ProductId),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		// ordered publishing pauses the key after a failure
		p.topic.ResumePublish(key)
		return err
	}
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return nil
}

// LogPublisher writes snapshots to the logger. Used when Pub/Sub is not configured.
type LogPublisher struct {
	Logger *logrus.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, snapshot ProductSnapshot) error {
	p.Logger.WithFields(logrus.Fields{
		"tenant_id":       snapshot.TenantId,
		"product_id":      snapshot.ProductId,
		"stock_quantity":  snapshot.StockQuantity,
		"variation_count": len(snapshot.Variations),
		"deleted":         snapshot.Deleted,
	}).Info("indexsync.snapshot")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// NewPublisherFromEnv returns a Pub/Sub publisher on PRODUCT_INDEX_TOPIC when configured,
// otherwise a LogPublisher.
func NewPublisherFromEnv(ctx context.Context, logger *logrus.Logger) Publisher {
	if !config.PubSubConfigured() {
		logger.Info("indexsync.publisher: pubsub not configured, logging snapshots")
		return &LogPublisher{Logger: logger}
	}
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		config.LogError(logger, "indexsync", "NewPublisherFromEnv", "pubsub client", nil, err)
		return &LogPublisher{Logger: logger}
	}
	return NewPubSubPublisher(client, config.ProductIndexTopic())
}
