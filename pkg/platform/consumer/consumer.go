// Package consumer runs idempotent, ordered handlers over an at-least-once
// subscription. Each message is processed inside a unit of work that couples
// the handler's effect with the processed-event record and the audit entry;
// the subscription's read position only advances after the unit committed or
// the message was parked. Redeliveries are therefore absorbed into exactly
// one observable effect.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/audit"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/deadletter"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/idempotency"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

// HandlerFunc applies one decoded event's business effect. When it runs under
// a SQL unit of work the context carries the transaction, so stores built on
// the tx-from-context pattern write into the same atomic unit.
type HandlerFunc func(ctx context.Context, ev events.Event) error

// Config tunes one consumer group.
type Config struct {
	// Name is the consumer identity: the broker group and the scope of the
	// processed-event records. Renaming a consumer resets its dedup history.
	Name string
	// MaxAttempts is the in-place attempt ceiling per message, first try
	// included. Past it the message is parked as poison.
	MaxAttempts int
	// RetryBackoff is the initial delay between attempts.
	RetryBackoff time.Duration
	// UnitTimeout bounds a single unit of work.
	UnitTimeout time.Duration
	// QueueSize is the per-partition buffer between the dispatcher and its
	// worker.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.UnitTimeout <= 0 {
		c.UnitTimeout = 10 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	return c
}

// Runner polls a subscription and dispatches messages to per-partition
// workers, so ordering within a partition is preserved while partitions
// proceed independently.
type Runner struct {
	cfg      Config
	registry *events.Registry
	store    idempotency.Store
	recorder *audit.Recorder
	uow      UnitOfWork
	sink     deadletter.Sink
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	handlers map[events.Kind]HandlerFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithUnitOfWork replaces the direct-execution default, typically with a SQL
// unit so effects, dedup records and audit entries share a transaction.
func WithUnitOfWork(uow UnitOfWork) Option {
	return func(r *Runner) { r.uow = uow }
}

// WithDeadLetter sets where schema failures and poison messages are parked.
func WithDeadLetter(sink deadletter.Sink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithMetrics replaces the default-registry metrics, mainly for tests.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func New(cfg Config, registry *events.Registry, store idempotency.Store, recorder *audit.Recorder, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg.withDefaults(),
		registry: registry,
		store:    store,
		recorder: recorder,
		uow:      Nop{},
		sink:     deadletter.NewMemory(),
		logger:   logger,
		tracer:   otel.Tracer("platform/consumer"),
		handlers: make(map[events.Kind]HandlerFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	return r
}

// Handle registers the handler for one event kind. Registration must finish
// before Run; the handler set also determines the subscribed topics.
func (r *Runner) Handle(kind events.Kind, fn HandlerFunc) {
	r.handlers[kind] = fn
}

// Topics lists the topics the registered handlers cover, sorted for stable
// subscription requests.
func (r *Runner) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		topics = append(topics, kind.Topic())
	}
	sort.Strings(topics)
	return topics
}

type topicPartition struct {
	topic     string
	partition int32
}

// Run subscribes and processes until the context is cancelled. It returns
// the first fatal error; handler failures are not fatal, they end in retry
// or dead-lettering.
func (r *Runner) Run(ctx context.Context, brk broker.Broker) error {
	if len(r.handlers) == 0 {
		return fmt.Errorf("consumer %s: no handlers registered", r.cfg.Name)
	}

	sub, err := brk.Subscribe(r.cfg.Name, r.Topics()...)
	if err != nil {
		return fmt.Errorf("consumer %s: subscribe: %w", r.cfg.Name, err)
	}
	defer sub.Close()

	g, ctx := errgroup.WithContext(ctx)
	workers := make(map[topicPartition]chan *broker.Message)
	nextOffset := make(map[topicPartition]int64)

	g.Go(func() error {
		defer func() {
			for _, ch := range workers {
				close(ch)
			}
		}()
		for {
			msgs, err := sub.Poll(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return fmt.Errorf("consumer %s: poll: %w", r.cfg.Name, err)
			}
			for _, msg := range msgs {
				tp := topicPartition{topic: msg.Topic, partition: msg.Partition}
				// A message redelivered while its first delivery is still
				// queued must not be enqueued twice; that would reorder the
				// partition.
				if msg.Offset < nextOffset[tp] {
					continue
				}
				nextOffset[tp] = msg.Offset + 1

				ch, ok := workers[tp]
				if !ok {
					ch = make(chan *broker.Message, r.cfg.QueueSize)
					workers[tp] = ch
					g.Go(func() error {
						return r.work(ctx, sub, ch)
					})
				}
				select {
				case ch <- msg:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})

	return g.Wait()
}

// work drains one partition's queue sequentially. The next message is only
// taken after the previous one's position was committed, which is what keeps
// per-key ordering observable to handlers.
func (r *Runner) work(ctx context.Context, sub broker.Subscription, ch <-chan *broker.Message) error {
	for msg := range ch {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.process(ctx, sub, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) process(ctx context.Context, sub broker.Subscription, msg *broker.Message) error {
	ev, err := r.registry.Decode(msg.Value)
	if err != nil {
		// Structural failure: no number of retries decodes this payload.
		return r.park(ctx, sub, msg, deadletter.Letter{
			Reason:   deadletter.ReasonSchema,
			Detail:   err.Error(),
			Consumer: r.cfg.Name,
			Attempts: 1,
		})
	}

	handler, ok := r.handlers[ev.Kind]
	if !ok {
		r.logger.Warn("no handler for event kind, skipping",
			"consumer", r.cfg.Name,
			"kind", ev.Kind,
			"event_id", ev.EventID,
		)
		return r.commit(ctx, sub, msg)
	}

	ctx, span := r.tracer.Start(ctx, "events.consume", trace.WithAttributes(
		attribute.String("event.id", ev.EventID),
		attribute.String("event.kind", string(ev.Kind)),
		attribute.String("consumer.name", r.cfg.Name),
	))
	defer span.End()

	attempt := 0
	operation := func() error {
		attempt++
		unitCtx, cancel := context.WithTimeout(ctx, r.cfg.UnitTimeout)
		defer cancel()

		if err := r.runUnit(unitCtx, ev, handler); err != nil {
			if attempt < r.cfg.MaxAttempts {
				r.metrics.Retries.WithLabelValues(r.cfg.Name, string(ev.Kind)).Inc()
				r.logger.Warn("event handling failed, retrying in place",
					"consumer", r.cfg.Name,
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
	policy.InitialInterval = r.cfg.RetryBackoff
	policy.MaxElapsedTime = 0

	err = backoff.Retry(operation,
		backoff.WithMaxRetries(backoff.WithContext(policy, ctx), uint64(r.cfg.MaxAttempts-1)))
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not poison: leave the message uncommitted so it is
			// redelivered on the next start.
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "event parked as poison")
		return r.park(ctx, sub, msg, deadletter.Letter{
			Reason:   deadletter.ReasonPoison,
			Detail:   err.Error(),
			Consumer: r.cfg.Name,
			Attempts: attempt,
		})
	}

	return r.commit(ctx, sub, msg)
}

// runUnit executes one attempt. Inside the unit the order is fixed: check the
// dedup record, apply the effect, write the dedup record, write the audit
// entry. A duplicate is detected before the effect runs and ends the unit
// successfully without any writes.
func (r *Runner) runUnit(ctx context.Context, ev events.Event, handler HandlerFunc) error {
	return r.uow.Run(ctx, func(ctx context.Context) error {
		seen, err := r.store.Seen(ctx, ev.EventID, r.cfg.Name)
		if err != nil {
			return fmt.Errorf("consumer %s: dedup check %s: %w", r.cfg.Name, ev.EventID, err)
		}
		if seen {
			r.metrics.Duplicates.WithLabelValues(r.cfg.Name, string(ev.Kind)).Inc()
			r.logger.Debug("duplicate event skipped",
				"consumer", r.cfg.Name,
				"event_id", ev.EventID,
				"kind", ev.Kind,
			)
			return nil
		}

		if err := handler(ctx, ev); err != nil {
			return fmt.Errorf("consumer %s: handle %s: %w", r.cfg.Name, ev.EventID, err)
		}

		if err := r.store.MarkProcessed(ctx, ev.EventID, r.cfg.Name); err != nil {
			// A concurrent claimer won the insert. Fail this unit so its
			// effect rolls back; the retry observes the record and skips.
			if errors.Is(err, sentinel.ErrConflict) {
				return fmt.Errorf("consumer %s: lost dedup race for %s: %w", r.cfg.Name, ev.EventID, err)
			}
			return fmt.Errorf("consumer %s: mark processed %s: %w", r.cfg.Name, ev.EventID, err)
		}

		if _, err := r.recorder.Record(ctx, audit.EntryFor(ev)); err != nil {
			return fmt.Errorf("consumer %s: audit %s: %w", r.cfg.Name, ev.EventID, err)
		}

		r.metrics.Processed.WithLabelValues(r.cfg.Name, string(ev.Kind)).Inc()
		return nil
	})
}

func (r *Runner) park(ctx context.Context, sub broker.Subscription, msg *broker.Message, letter deadletter.Letter) error {
	letter.FailedAt = time.Now().UTC()
	letter.Message = msg
	if err := r.sink.Park(ctx, letter); err != nil {
		// The message stays uncommitted and comes back; parking is retried
		// on redelivery rather than losing the letter.
		return fmt.Errorf("consumer %s: park %s/%d@%d: %w", r.cfg.Name, msg.Topic, msg.Partition, msg.Offset, err)
	}
	r.metrics.DeadLettered.WithLabelValues(r.cfg.Name, string(letter.Reason)).Inc()
	r.logger.Error("message dead-lettered",
		"consumer", r.cfg.Name,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"reason", letter.Reason,
		"detail", letter.Detail,
	)
	return r.commit(ctx, sub, msg)
}

func (r *Runner) commit(ctx context.Context, sub broker.Subscription, msg *broker.Message) error {
	if err := sub.Commit(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("consumer %s: commit %s/%d@%d: %w", r.cfg.Name, msg.Topic, msg.Partition, msg.Offset, err)
	}
	return nil
}
