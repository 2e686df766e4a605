package channels_test

import (
	"testing"
	"time"

	"github.com/alkime/memnote/pkg/channels"
	"github.com/stretchr/testify/assert"
)

func TestSendNonBlock(t *testing.T) {
	t.Run("room in buffer", func(t *testing.T) {
		ch := make(chan int, 1)
		assert.NoError(t, channels.SendNonBlock(ch, 42))
		assert.Equal(t, 42, <-ch)
	})

	t.Run("full buffer", func(t *testing.T) {
		ch := make(chan int, 1)
		ch <- 1
		assert.ErrorIs(t, channels.SendNonBlock(ch, 2), channels.ErrChannelFull)
	})

	t.Run("unbuffered without reader", func(t *testing.T) {
		assert.ErrorIs(t, channels.SendNonBlock(make(chan int), 1), channels.ErrChannelFull)
	})

	t.Run("closed", func(t *testing.T) {
		ch := make(chan int, 1)
		close(ch)
		assert.ErrorIs(t, channels.SendNonBlock(ch, 1), channels.ErrChannelClosed)
	})
}

func TestSendWithTimeout(t *testing.T) {
	t.Run("reader arrives in time", func(t *testing.T) {
		ch := make(chan int)
		go func() { <-ch }()
		assert.NoError(t, channels.SendWithTimeout(ch, 1, time.Second))
	})

	t.Run("no reader", func(t *testing.T) {
		start := time.Now()
		err := channels.SendWithTimeout(make(chan int), 1, 20*time.Millisecond)
		assert.ErrorIs(t, err, channels.ErrChannelTimeout)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("closed with buffered data", func(t *testing.T) {
		ch := make(chan int, 2)
		ch <- 1
		close(ch)
		assert.ErrorIs(t, channels.SendWithTimeout(ch, 2, time.Second), channels.ErrChannelClosed)
		assert.Equal(t, 1, <-ch, "buffered data is still readable")
	})
}
