package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "portfolio/pkg/platform/audit"
	txcontext "portfolio/pkg/platform/tx"
)

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []audit.OutboxEntry
	published []string
}

func (f *fakeOutbox) FetchPending(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	return append([]audit.OutboxEntry{}, f.pending[:limit]...), nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ids...)
	f.pending = f.pending[len(ids):]
	return nil
}

type fakeProducer struct {
	err     error
	batches [][]audit.OutboxEntry
	topics  []string
}

func (p *fakeProducer) PublishBatch(_ context.Context, topic string, entries []audit.OutboxEntry) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, entries)
	return nil
}

func entries(n int) []audit.OutboxEntry {
	out := make([]audit.OutboxEntry, n)
	for i := range out {
		out[i] = audit.OutboxEntry{ID: string(rune('a' + i)), EventType: "evidence_created"}
	}
	return out
}

func TestWorker_Drain(t *testing.T) {
	t.Run("publishes a batch then marks it", func(t *testing.T) {
		outbox := &fakeOutbox{pending: entries(3)}
		producer := &fakeProducer{}
		w := NewWorker(outbox, producer, txcontext.NoopRunner{}, "portfolio.audit", WithBatchSize(2))

		n, err := w.Drain(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"a", "b"}, outbox.published)
		assert.Equal(t, []string{"portfolio.audit"}, producer.topics)

		n, err = w.Drain(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Empty(t, outbox.pending)
	})

	t.Run("empty outbox publishes nothing", func(t *testing.T) {
		producer := &fakeProducer{}
		w := NewWorker(&fakeOutbox{}, producer, txcontext.NoopRunner{}, "t")
		n, err := w.Drain(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, producer.batches)
	})

	t.Run("producer failure leaves entries pending", func(t *testing.T) {
		outbox := &fakeOutbox{pending: entries(2)}
		w := NewWorker(outbox, &fakeProducer{err: errors.New("broker down")}, txcontext.NoopRunner{}, "t")
		_, err := w.Drain(context.Background())
		require.Error(t, err)
		assert.Len(t, outbox.pending, 2)
		assert.Empty(t, outbox.published)
	})
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	outbox := &fakeOutbox{pending: entries(1)}
	w := NewWorker(outbox, &fakeProducer{}, txcontext.NoopRunner{}, "t", WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		outbox.mu.Lock()
		defer outbox.mu.Unlock()
		return len(outbox.published) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
