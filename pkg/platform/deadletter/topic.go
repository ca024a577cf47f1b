package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker"
)

// TopicSuffix is appended to the source topic to name its dead-letter topic.
const TopicSuffix = ".dlq"

// TopicSink republishes parked messages onto the source topic's dead-letter
// topic, keyed like the original so remediation tooling sees them in the
// original per-entity order.
type TopicSink struct {
	publisher broker.Publisher
	logger    *slog.Logger
}

func NewTopicSink(publisher broker.Publisher, logger *slog.Logger) *TopicSink {
	return &TopicSink{publisher: publisher, logger: logger}
}

type wireLetter struct {
	Reason    Reason    `json:"reason"`
	Detail    string    `json:"detail"`
	Consumer  string    `json:"consumer"`
	Attempts  int       `json:"attempts"`
	FailedAt  time.Time `json:"failed_at"`
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
	Payload   []byte    `json:"payload"`
}

func (s *TopicSink) Park(ctx context.Context, letter Letter) error {
	data, err := json.Marshal(wireLetter{
		Reason:    letter.Reason,
		Detail:    letter.Detail,
		Consumer:  letter.Consumer,
		Attempts:  letter.Attempts,
		FailedAt:  letter.FailedAt,
		Topic:     letter.Message.Topic,
		Partition: letter.Message.Partition,
		Offset:    letter.Message.Offset,
		Payload:   letter.Message.Value,
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	topic := letter.Message.Topic + TopicSuffix
	if err := s.publisher.Publish(ctx, topic, letter.Message.Key, data); err != nil {
		return fmt.Errorf("park on %s: %w", topic, err)
	}

	s.logger.Warn("message dead-lettered",
		"reason", letter.Reason,
		"consumer", letter.Consumer,
		"topic", letter.Message.Topic,
		"partition", letter.Message.Partition,
		"offset", letter.Message.Offset,
		"attempts", letter.Attempts,
		"detail", letter.Detail,
	)
	return nil
}
