package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	dErrors "portfolio/pkg/domain-errors"
)

// Pool caps the number of concurrently open sessions. Acquire waits at most
// acquireTimeout for a free slot.
type Pool struct {
	engine         Engine
	sem            *semaphore.Weighted
	size           int64
	acquireTimeout time.Duration
	inUse          atomic.Int64
	metrics        *Metrics
}

type PoolOption func(*Pool)

func WithMetrics(m *Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

func NewPool(engine Engine, size int, acquireTimeout time.Duration, opts ...PoolOption) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		engine:         engine,
		sem:            semaphore.NewWeighted(int64(size)),
		size:           int64(size),
		acquireTimeout: acquireTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire reserves a slot and opens a session in it. Closing the returned
// session frees the slot. A saturated pool yields CodeResourceExhausted; a
// caller whose own context ends first gets CodeTimeout.
func (p *Pool) Acquire(ctx context.Context) (Session, error) {
	start := time.Now()
	waitCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}
	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, dErrors.Wrap(ctxErr, dErrors.CodeTimeout, "request ended while waiting for a rendering slot")
		}
		p.metrics.IncSaturated()
		return nil, dErrors.Wrap(err, dErrors.CodeResourceExhausted, "all rendering slots are busy")
	}
	p.metrics.ObserveWait(time.Since(start))

	session, err := p.engine.NewSession(ctx)
	if err != nil {
		p.sem.Release(1)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "rendering session not started in time")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeRenderFailed, "failed to start rendering session")
	}
	p.metrics.SetInUse(p.inUse.Add(1))
	return &pooledSession{Session: session, pool: p}, nil
}

// InUse reports the number of open sessions.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

func (p *Pool) Size() int {
	return int(p.size)
}

func (p *Pool) release() {
	p.metrics.SetInUse(p.inUse.Add(-1))
	p.sem.Release(1)
}

type pooledSession struct {
	Session
	pool *Pool
	once sync.Once
}

// Close closes the underlying session and returns the slot. Safe to call more
// than once.
func (s *pooledSession) Close() error {
	var err error
	s.once.Do(func() {
		err = s.Session.Close()
		s.pool.release()
	})
	return err
}
