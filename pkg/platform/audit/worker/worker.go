package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	audit "portfolio/pkg/platform/audit"
	txcontext "portfolio/pkg/platform/tx"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// OutboxStore is the outbox side of the postgres audit store.
type OutboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Producer delivers a batch of entries to a topic. It returns only after every
// entry is acknowledged or an error occurred.
type Producer interface {
	PublishBatch(ctx context.Context, topic string, entries []audit.OutboxEntry) error
}

// Worker drains the audit outbox into Kafka. Delivery is at-least-once: a crash
// between publish and mark republishes the batch, and consumers dedupe on the
// event ID carried in the payload.
type Worker struct {
	store        OutboxStore
	producer     Producer
	tx           txcontext.Runner
	topic        string
	batchSize    int
	pollInterval time.Duration
	logger       *slog.Logger
}

type Option func(*Worker)

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(store OutboxStore, producer Producer, tx txcontext.Runner, topic string, opts ...Option) *Worker {
	w := &Worker{
		store:        store,
		producer:     producer,
		tx:           tx,
		topic:        topic,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Batch failures are logged and retried on
// the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := w.Drain(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return ctx.Err()
					}
					w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
					break
				}
				if n < w.batchSize {
					break
				}
			}
		}
	}
}

// Drain publishes one batch and returns how many entries it delivered.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	var published int
	err := w.tx.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := w.store.FetchPending(ctx, w.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		if err := w.producer.PublishBatch(ctx, w.topic, entries); err != nil {
			return err
		}
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := w.store.MarkPublished(ctx, ids, time.Now()); err != nil {
			return err
		}
		published = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}
