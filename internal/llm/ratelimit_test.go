package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst up to capacity", func(t *testing.T) {
		rl := newRateLimiter(10)
		ctx := context.Background()

		for i := 0; i < 10; i++ {
			require.NoError(t, rl.wait(ctx))
		}
		assert.Equal(t, 0, rl.available())
	})

	t.Run("refills from elapsed time", func(t *testing.T) {
		clock := time.Now()
		rl := newRateLimiter(60)
		rl.now = func() time.Time { return clock }
		rl.lastRefill = clock

		for i := 0; i < 60; i++ {
			require.Zero(t, rl.reserve())
		}

		delay := rl.reserve()
		assert.InDelta(t, float64(time.Second), float64(delay), float64(10*time.Millisecond))

		clock = clock.Add(3 * time.Second)
		assert.Zero(t, rl.reserve())
		assert.Equal(t, 2, rl.available())
	})

	t.Run("never exceeds capacity", func(t *testing.T) {
		clock := time.Now()
		rl := newRateLimiter(5)
		rl.now = func() time.Time { return clock }
		rl.lastRefill = clock

		clock = clock.Add(time.Hour)
		assert.Zero(t, rl.reserve())
		assert.Equal(t, 4, rl.available())
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl := newRateLimiter(1)
		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() {
			done <- rl.wait(ctx)
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.Error(t, err)
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("rate limiter did not respect context cancellation")
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		rl := newRateLimiter(100)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 50)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- rl.wait(ctx)
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}
		assert.LessOrEqual(t, rl.available(), 50)
	})

	t.Run("default rate", func(t *testing.T) {
		rl := newRateLimiter(0)
		assert.Equal(t, 60, rl.available())
	})
}
