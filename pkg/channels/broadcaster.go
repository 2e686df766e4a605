package channels

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	errNilChannel      = errors.New("subscriber channel cannot be nil")
	errNonPositiveWait = errors.New("subscriber timeout must be positive")
)

type subscriber[T any] struct {
	ch       chan<- T
	timeout  time.Duration
	inactive atomic.Bool
	dropped  atomic.Int32
}

func (s *subscriber[T]) send(msg T) {
	if s.inactive.Load() {
		s.dropped.Add(1)
		return
	}

	if err := SendWithTimeout(s.ch, msg, s.timeout); err != nil {
		// closed channels go inactive, a timeout is just a drop
		s.dropped.Add(1)
		if errors.Is(err, ErrChannelClosed) {
			s.inactive.Store(true)
		}
	}
}

// Broadcaster copies every message from one input channel to each subscriber.
//
// A subscriber that does not accept a message within its timeout misses that
// message. On context cancellation the input channel is closed, remaining
// messages are drained to subscribers, and then every subscriber channel is
// closed so readers see the end of the stream.
type Broadcaster[T any] struct {
	subscribers []*subscriber[T]
	input       chan T
	started     atomic.Bool
	wg          sync.WaitGroup
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{}
}

// Subscribe adds ch. Each message waits at most timeout for ch to accept it.
// The Broadcaster closes ch after shutdown. Must be called before Run.
func (b *Broadcaster[T]) Subscribe(ch chan<- T, timeout time.Duration) error {
	if ch == nil {
		return errNilChannel
	}

	if timeout <= 0 {
		return fmt.Errorf("%w: got %s", errNonPositiveWait, timeout)
	}

	b.subscribers = append(b.subscribers, &subscriber[T]{ch: ch, timeout: timeout})

	return nil
}

// Run starts broadcasting and returns the input channel. The input channel is
// owned by the Broadcaster and closed when ctx is cancelled, so nothing may
// send on it after that.
func (b *Broadcaster[T]) Run(ctx context.Context) (chan<- T, error) {
	if len(b.subscribers) == 0 {
		return nil, errors.New("no subscribers available")
	}

	if !b.started.CompareAndSwap(false, true) {
		return nil, errors.New("broadcaster already started")
	}

	b.input = make(chan T, len(b.subscribers)*2)

	b.wg.Go(func() {
		defer b.closeSubscribers()

		for msg := range b.input {
			for _, sub := range b.subscribers {
				sub.send(msg)
			}
		}
	})

	go func() {
		<-ctx.Done()
		close(b.input)
	}()

	return b.input, nil
}

// Wait blocks until the input has been drained and subscribers are closed.
func (b *Broadcaster[T]) Wait() {
	b.wg.Wait()
}

func (b *Broadcaster[T]) closeSubscribers() {
	for _, sub := range b.subscribers {
		if !sub.inactive.Load() {
			closeQuietly(sub.ch)
		}
	}
}

// closeQuietly closes ch, ignoring a channel the subscriber already closed.
func closeQuietly[T any](ch chan<- T) {
	defer func() {
		_ = recover()
	}()

	close(ch)
}

// SubscriberStats reports delivery health for one subscriber.
type SubscriberStats struct {
	Dropped  int
	Inactive bool
}

// Stats returns per-subscriber stats in subscription order.
func (b *Broadcaster[T]) Stats() []SubscriberStats {
	stats := make([]SubscriberStats, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		stats = append(stats, SubscriberStats{
			Dropped:  int(sub.dropped.Load()),
			Inactive: sub.inactive.Load(),
		})
	}

	return stats
}
