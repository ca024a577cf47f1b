// Package broker abstracts the durable, partitioned, at-least-once delivery
// channel between bounded contexts. Topics are named after event kinds and
// partitions are selected deterministically from the event's partition key,
// so one entity's history always lands on one partition in append order.
package broker

import (
	"context"
	"hash/fnv"
	"time"
)

// Message is a single record read from a partition.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Publisher appends messages to a topic. Publish returns only once the
// broker has durably accepted the message.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

// Subscription is an attached consumer-group member. Poll returns available
// messages in append order per partition; a message is redelivered on later
// polls (or after a restart) until Commit advances the group's read position
// past it. That redelivery is the at-least-once behavior the idempotent
// consumer framework absorbs.
type Subscription interface {
	Poll(ctx context.Context) ([]*Message, error)
	Commit(ctx context.Context, msg *Message) error
	Close() error
}

// Broker combines publishing with group subscription.
type Broker interface {
	Publisher
	Subscribe(group string, topics ...string) (Subscription, error)
}

// PartitionFor maps a partition key onto one of n partitions. The same key
// always maps to the same partition for a fixed partition count.
func PartitionFor(key []byte, n int32) int32 {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int32(h.Sum32() % uint32(n))
}
