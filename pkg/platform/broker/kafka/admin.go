package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

// EnsureTopics creates the given topics with the requested partition count.
// Topics that already exist are left untouched, whatever their partition
// count; resizing a live topic would break key-to-partition stability.
func (b *Broker) EnsureTopics(ctx context.Context, partitions int32, topics ...string) error {
	adm := kadm.NewClient(b.producer)

	responses, err := adm.CreateTopics(ctx, partitions, 1, nil, topics...)
	if err != nil {
		return fmt.Errorf("kafka: create topics: %w", err)
	}

	for _, resp := range responses.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}
