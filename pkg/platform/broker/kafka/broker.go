// Package kafka implements the broker abstraction on Kafka (or Redpanda)
// using franz-go. Producers publish with full-ISR acks so Publish returning
// nil means the message is durable; consumers run in a group with
// auto-commit disabled so read positions only advance when the consumer
// framework says so.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

// Config captures connection settings shared by producers and consumers.
type Config struct {
	Brokers  []string
	ClientID string
}

// Broker is a Kafka-backed broker.Broker. One producer client is shared by
// all publishers; each Subscribe call opens its own group client.
type Broker struct {
	cfg      Config
	producer *kgo.Client
	logger   *slog.Logger
}

// New connects a producer client and returns the broker.
func New(cfg Config, logger *slog.Logger) (*Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker address is required")
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer client: %w", err)
	}

	return &Broker{cfg: cfg, producer: producer, logger: logger}, nil
}

// Publish synchronously produces one record. The default partitioner hashes
// the record key, which gives the same key-to-partition stability the
// backbone's ordering guarantee relies on.
func (b *Broker) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce to %s: %w: %w", topic, sentinel.ErrUnavailable, err)
	}
	return nil
}

// Close shuts the producer client down, flushing buffered records.
func (b *Broker) Close() error {
	b.producer.Close()
	return nil
}

// Subscribe joins the consumer group on the given topics.
func (b *Broker) Subscribe(group string, topics ...string) (broker.Subscription, error) {
	if group == "" {
		return nil, fmt.Errorf("kafka: group is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(b.cfg.Brokers...),
		kgo.ClientID(b.cfg.ClientID),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create consumer client for group %s: %w", group, err)
	}

	return &subscription{client: client, group: group, logger: b.logger}, nil
}

type subscription struct {
	client *kgo.Client
	group  string
	logger *slog.Logger
}

// Poll fetches the next batch. franz-go yields records of one partition in
// offset order, so per-partition ordering survives the trip.
func (s *subscription) Poll(ctx context.Context) ([]*broker.Message, error) {
	fetches := s.client.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return nil, fmt.Errorf("kafka: poll group %s: client closed", s.group)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Partition-level fetch errors are transient from the consumer's point of
	// view: log them and keep whatever records did arrive.
	fetches.EachError(func(topic string, partition int32, err error) {
		s.logger.Warn("kafka fetch error",
			"group", s.group,
			"topic", topic,
			"partition", partition,
			"error", err,
		)
	})

	var msgs []*broker.Message
	fetches.EachRecord(func(record *kgo.Record) {
		msgs = append(msgs, &broker.Message{
			Topic:     record.Topic,
			Partition: record.Partition,
			Offset:    record.Offset,
			Key:       record.Key,
			Value:     record.Value,
			Timestamp: record.Timestamp,
		})
	})
	return msgs, nil
}

// Commit marks msg processed for the group. The next offset for its
// partition becomes msg.Offset+1.
func (s *subscription) Commit(ctx context.Context, msg *broker.Message) error {
	record := &kgo.Record{
		Topic:       msg.Topic,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		LeaderEpoch: -1,
	}
	if err := s.client.CommitRecords(ctx, record); err != nil {
		return fmt.Errorf("kafka: commit %s[%d]@%d for group %s: %w: %w",
			msg.Topic, msg.Partition, msg.Offset, s.group, sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *subscription) Close() error {
	s.client.Close()
	return nil
}
