// Package outbox relays registry events committed by the service to a
// broker. Events are fetched from the store's outbox table, published in
// append order and marked published only after the sink accepted them, so a
// broker outage delays delivery but never loses events.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sns/internal/registry/metrics"
	"sns/internal/registry/models"
	"sns/internal/registry/ports"
)

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Sink publishes a batch of events. A nil error means every event was
// accepted.
type Sink interface {
	Publish(ctx context.Context, events []*models.Event) error
}

type Worker struct {
	source   ports.Outbox
	sink     Sink
	interval time.Duration
	batch    int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batch = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(source ports.Outbox, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		source:   source,
		sink:     sink,
		interval: DefaultInterval,
		batch:    DefaultBatchSize,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays events until ctx is done. Tick failures are logged and retried
// on the next interval.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := w.Tick(ctx)
				if err != nil || n < w.batch {
					break
				}
			}
		}
	}
}

// Tick relays one batch and returns how many events were published.
func (w *Worker) Tick(ctx context.Context) (int, error) {
	events, err := w.source.FetchPending(ctx, w.batch)
	if err != nil {
		w.logger.ErrorContext(ctx, "outbox fetch failed", "error", err)
		w.metrics.IncOutboxFailures()
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := w.sink.Publish(ctx, events); err != nil {
		w.logger.WarnContext(ctx, "outbox publish failed",
			"events", len(events),
			"first_event_id", events[0].ID,
			"error", err,
		)
		w.metrics.IncOutboxFailures()
		return 0, err
	}

	ids := make([]uuid.UUID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := w.source.MarkPublished(ctx, ids); err != nil {
		// Published but unmarked events are sent again next tick. Consumers
		// deduplicate on event id.
		w.logger.ErrorContext(ctx, "outbox mark published failed", "events", len(ids), "error", err)
		w.metrics.IncOutboxFailures()
		return 0, err
	}

	w.metrics.AddOutboxPublished(len(events))
	w.logger.DebugContext(ctx, "outbox relayed", "events", len(events))
	return len(events), nil
}
