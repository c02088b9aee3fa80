package cdn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckoutLimiter(t *testing.T) {
	t.Run("with positive limit", func(t *testing.T) {
		cl := newCheckoutLimiter(10)
		assert.NotNil(t, cl)
		assert.Equal(t, 10, cl.maxConcurrent)
		assert.Equal(t, 10, cap(cl.semaphore))
	})

	t.Run("with zero limit uses default", func(t *testing.T) {
		cl := newCheckoutLimiter(0)
		assert.NotNil(t, cl)
		assert.Equal(t, defaultMaxConcurrent, cl.maxConcurrent)
		assert.Equal(t, defaultMaxConcurrent, cap(cl.semaphore))
	})

	t.Run("with negative limit uses default", func(t *testing.T) {
		cl := newCheckoutLimiter(-5)
		assert.NotNil(t, cl)
		assert.Equal(t, defaultMaxConcurrent, cl.maxConcurrent)
		assert.Equal(t, defaultMaxConcurrent, cap(cl.semaphore))
	})
}

func TestCheckoutLimiterAcquire(t *testing.T) {
	t.Run("acquire within limit", func(t *testing.T) {
		cl := newCheckoutLimiter(3)
		ctx := context.Background()

		assert.True(t, cl.acquire(ctx))
		assert.Equal(t, int64(1), cl.getActiveCheckouts())

		assert.True(t, cl.acquire(ctx))
		assert.Equal(t, int64(2), cl.getActiveCheckouts())

		assert.True(t, cl.acquire(ctx))
		assert.Equal(t, int64(3), cl.getActiveCheckouts())

		cl.release()
		cl.release()
		cl.release()
		assert.Equal(t, int64(0), cl.getActiveCheckouts())
	})

	t.Run("acquire blocks when at limit", func(t *testing.T) {
		cl := newCheckoutLimiter(2)
		ctx := context.Background()

		assert.True(t, cl.acquire(ctx))
		assert.True(t, cl.acquire(ctx))

		acquired := make(chan bool)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			acquired <- cl.acquire(ctx)
		}()

		select {
		case result := <-acquired:
			assert.False(t, result, "should have timed out")
		case <-time.After(100 * time.Millisecond):
			t.Fatal("acquire should have returned with timeout")
		}

		cl.release()
		cl.release()
	})

	t.Run("release without acquire is tolerated", func(t *testing.T) {
		cl := newCheckoutLimiter(1)
		cl.release()
		assert.Equal(t, int64(0), cl.getActiveCheckouts())
	})
}
