// Package publisher turns committed business facts into durable, ordered
// broker messages. The caller's local transaction has already committed when
// Publish runs, so a publish that exhausts its retry budget cannot roll
// anything back; it surfaces ErrPublishFailed and logs for manual
// reconciliation instead.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
)

// ErrPublishFailed means the retry budget is exhausted and the event never
// reached the broker. The producing service must alert for reconciliation.
var ErrPublishFailed = errors.New("publish failed")

// Config tunes the retry behavior.
type Config struct {
	// Source names the producing service; it is stamped on every event.
	Source string
	// MaxAttempts is the total attempt ceiling, first try included.
	MaxAttempts int
	// InitialBackoff and MaxBackoff bound the exponential backoff between
	// attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout bounds a single broker acknowledgement wait.
	AttemptTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	return c
}

// Publisher encodes and publishes domain events.
type Publisher struct {
	broker   broker.Publisher
	registry *events.Registry
	cfg      Config
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMetrics replaces the default-registry metrics, mainly for tests.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func New(brk broker.Publisher, registry *events.Registry, cfg Config, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		broker:   brk,
		registry: registry,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		tracer:   otel.Tracer("platform/publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p
}

// Publish creates an event from the payload and publishes it. The returned
// event carries the assigned event ID so callers can log it for
// reconciliation when the publish fails.
func (p *Publisher) Publish(ctx context.Context, payload events.Payload) (events.Event, error) {
	ev := events.New(p.cfg.Source, payload)
	return ev, p.PublishEvent(ctx, ev)
}

// PublishEvent publishes an already-built event. It returns nil only after
// the broker has durably acknowledged the message; events sharing a
// partition key are delivered to any single consumer in publish order.
func (p *Publisher) PublishEvent(ctx context.Context, ev events.Event) error {
	if ev.EventID == "" {
		return fmt.Errorf("publish %s: event id is required", ev.Kind)
	}
	if ev.PartitionKey == "" {
		return fmt.Errorf("publish %s: partition key is required", ev.Kind)
	}

	// Schema problems are structural: encode failures are never retried.
	data, err := p.registry.Encode(ev)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}

	ctx, span := p.tracer.Start(ctx, "events.publish", trace.WithAttributes(
		attribute.String("event.id", ev.EventID),
		attribute.String("event.kind", string(ev.Kind)),
		attribute.String("event.partition_key", ev.PartitionKey),
	))
	defer span.End()

	topic := ev.Kind.Topic()
	attempt := 0

	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		defer cancel()

		if err := p.broker.Publish(attemptCtx, topic, []byte(ev.PartitionKey), data); err != nil {
			if attempt < p.cfg.MaxAttempts {
				p.metrics.Retries.WithLabelValues(string(ev.Kind)).Inc()
				p.logger.Warn("publish attempt failed, retrying",
					"event_id", ev.EventID,
					"kind", ev.Kind,
					"attempt", attempt,
					"error", err,
				)
			}
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.cfg.InitialBackoff
	policy.MaxInterval = p.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	err = backoff.Retry(operation,
		backoff.WithMaxRetries(backoff.WithContext(policy, ctx), uint64(p.cfg.MaxAttempts-1)))
	if err != nil {
		p.metrics.Failed.WithLabelValues(string(ev.Kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		// The caller's state is already committed; this event must be
		// reconciled by hand.
		p.logger.Error("publish abandoned after retry budget, manual reconciliation required",
			"event_id", ev.EventID,
			"kind", ev.Kind,
			"partition_key", ev.PartitionKey,
			"attempts", attempt,
			"error", err,
		)
		return fmt.Errorf("publish %s after %d attempts: %w: %w", ev.Kind, attempt, ErrPublishFailed, err)
	}

	p.metrics.Published.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}
