package assembly

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("serializes holders of one key", func(t *testing.T) {
		l := NewMemoryLocker()
		var active, peak atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(ctx, "user", time.Second)
				if !assert.NoError(t, err) {
					return
				}
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				assert.NoError(t, unlock(ctx))
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), peak.Load())
		assert.Empty(t, l.slots, "idle keys are dropped")
	})

	t.Run("different keys do not block", func(t *testing.T) {
		l := NewMemoryLocker()
		unlockA, err := l.Lock(ctx, "a", time.Second)
		require.NoError(t, err)
		unlockB, err := l.Lock(ctx, "b", time.Second)
		require.NoError(t, err)
		require.NoError(t, unlockA(ctx))
		require.NoError(t, unlockB(ctx))
	})

	t.Run("waiter gives up with its context", func(t *testing.T) {
		l := NewMemoryLocker()
		unlock, err := l.Lock(ctx, "user", time.Second)
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err = l.Lock(waitCtx, "user", time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		require.NoError(t, unlock(ctx))
		require.NoError(t, unlock(ctx), "second unlock is a no-op")
		assert.Empty(t, l.slots)
	})
}
