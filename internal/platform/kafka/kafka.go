// Package kafka publishes outbox entries to Kafka with franz-go.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"accounting/internal/platform/config"
	"accounting/pkg/platform/outbox"
)

// Client produces domain events to a single topic.
type Client struct {
	client *kgo.Client
	topic  string
}

// New creates a producer client. It does not contact the brokers until the
// first request.
func New(cfg config.Kafka, opts ...kgo.Opt) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	}
	cl, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Client{client: cl, topic: cfg.Topic}, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (c *Client) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(c.client)
	resps, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, c.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", c.topic, err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish implements outbox.Publisher. Records are keyed by aggregate id so
// all events of one category land on the same partition in order.
func (c *Client) Publish(ctx context.Context, entry outbox.Entry) error {
	rec := &kgo.Record{
		Topic: c.topic,
		Key:   []byte(entry.AggregateType + ":" + entry.AggregateID),
		Value: entry.Payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(entry.ID.String())},
			{Key: "event_type", Value: []byte(entry.Type)},
			{Key: "aggregate_type", Value: []byte(entry.AggregateType)},
		},
		Timestamp: entry.CreatedAt,
	}
	if entry.RequestID != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: "request_id", Value: []byte(entry.RequestID)})
	}
	if err := c.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", entry.Type, err)
	}
	return nil
}

// Health pings the cluster.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *Client) Close() {
	c.client.Close()
}
