package channels_test

import (
	"context"
	"testing"
	"time"

	"github.com/alkime/memnote/pkg/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWait = 50 * time.Millisecond

// drain reads ch until the broadcaster closes it.
func drain[T any](ch <-chan T) []T {
	var out []T
	for msg := range ch {
		out = append(out, msg)
	}

	return out
}

func TestBroadcaster(t *testing.T) {
	t.Run("error cases", func(t *testing.T) {
		t.Run("subscribe with nil channel", func(t *testing.T) {
			b := channels.NewBroadcaster[int]()
			assert.ErrorContains(t, b.Subscribe(nil, time.Second), "cannot be nil")
		})

		t.Run("subscribe with non-positive timeout", func(t *testing.T) {
			b := channels.NewBroadcaster[int]()
			ch := make(chan int, 10)
			assert.ErrorContains(t, b.Subscribe(ch, 0), "must be positive")
			assert.ErrorContains(t, b.Subscribe(ch, -time.Second), "must be positive")
		})

		t.Run("run with no subscribers", func(t *testing.T) {
			b := channels.NewBroadcaster[int]()
			_, err := b.Run(context.Background())
			assert.ErrorContains(t, err, "no subscribers")
		})

		t.Run("run twice", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			b := channels.NewBroadcaster[int]()
			require.NoError(t, b.Subscribe(make(chan int, 10), testWait))

			_, err := b.Run(ctx)
			require.NoError(t, err)

			_, err = b.Run(ctx)
			assert.ErrorContains(t, err, "already started")
		})
	})

	t.Run("every subscriber receives every message", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		b := channels.NewBroadcaster[int]()
		sub1 := make(chan int, 10)
		sub2 := make(chan int, 10)
		require.NoError(t, b.Subscribe(sub1, testWait))
		require.NoError(t, b.Subscribe(sub2, testWait))

		input, err := b.Run(ctx)
		require.NoError(t, err)

		input <- 1
		input <- 2
		input <- 3

		cancel()
		b.Wait()

		assert.Equal(t, []int{1, 2, 3}, drain(sub1))
		assert.Equal(t, []int{1, 2, 3}, drain(sub2))
	})

	t.Run("shutdown drains input then closes subscribers", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		b := channels.NewBroadcaster[string]()
		sub := make(chan string) // unbuffered: each message waits for the reader
		require.NoError(t, b.Subscribe(sub, time.Second))

		input, err := b.Run(ctx)
		require.NoError(t, err)

		input <- "idle"
		input <- "listening"
		cancel()

		assert.Equal(t, []string{"idle", "listening"}, drain(sub))
		b.Wait()
		assert.Equal(t, []channels.SubscriberStats{{}}, b.Stats())
	})

	t.Run("slow subscriber misses messages", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		b := channels.NewBroadcaster[int]()
		slow := make(chan int, 1)
		ready := make(chan int, 10)
		require.NoError(t, b.Subscribe(slow, 10*time.Millisecond))
		require.NoError(t, b.Subscribe(ready, testWait))

		input, err := b.Run(ctx)
		require.NoError(t, err)

		input <- 1
		input <- 2
		input <- 3

		cancel()
		b.Wait()

		assert.Equal(t, []int{1}, drain(slow))
		assert.Equal(t, []int{1, 2, 3}, drain(ready))
		assert.Equal(t, []channels.SubscriberStats{{Dropped: 2}, {}}, b.Stats())
	})

	t.Run("closed subscriber goes inactive", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		b := channels.NewBroadcaster[int]()
		gone := make(chan int, 10)
		require.NoError(t, b.Subscribe(gone, testWait))
		close(gone)

		input, err := b.Run(ctx)
		require.NoError(t, err)

		input <- 1
		input <- 2

		cancel()
		b.Wait()
		assert.Equal(t, []channels.SubscriberStats{{Dropped: 2, Inactive: true}}, b.Stats())
	})
}
