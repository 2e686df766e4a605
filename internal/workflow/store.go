package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/memnote/pkg/channels"
	"github.com/google/uuid"
)

const (
	defaultEventBuffer    = 16
	defaultPublishTimeout = time.Second
)

// Store owns the session State. Events are applied one at a time by a single
// goroutine; every accepted event publishes the new State to subscribers and
// dispatches the effects Reduce asked for.
type Store struct {
	logger         *slog.Logger
	listener       Listener
	sender         NoteSender
	captureTimeout time.Duration
	sendTimeout    time.Duration
	publishTimeout time.Duration

	broadcaster    *channels.Broadcaster[State]
	subscribed     bool
	stopPublishing context.CancelFunc
	events      chan Event
	done        chan struct{}
	started     atomic.Bool
	wg          sync.WaitGroup

	mu    sync.RWMutex
	state State

	// cycleID is only touched by the event loop.
	cycleID string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCaptureTimeout bounds each capture. Zero means no bound.
func WithCaptureTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.captureTimeout = d
	}
}

// WithPublishTimeout sets how long a subscriber may take to accept a state
// before it misses that state. Defaults to one second.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.publishTimeout = d
	}
}

// WithSendTimeout bounds each delivery. Zero means no bound.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.sendTimeout = d
	}
}

// NewStore creates a Store in PhaseIdle.
func NewStore(listener Listener, sender NoteSender, opts ...Option) *Store {
	s := &Store{
		logger:         slog.Default(),
		listener:       listener,
		sender:         sender,
		publishTimeout: defaultPublishTimeout,
		broadcaster:    channels.NewBroadcaster[State](),
		events:         make(chan Event, defaultEventBuffer),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Subscribe registers ch to receive every published State, starting with the
// initial one. The store closes ch once it has stopped and the last state has
// been delivered. Must be called before Run.
func (s *Store) Subscribe(ch chan<- State) error {
	if s.started.Load() {
		return errors.New("cannot subscribe to a running store")
	}

	if err := s.broadcaster.Subscribe(ch, s.publishTimeout); err != nil {
		return err
	}
	s.subscribed = true

	return nil
}

// Run starts the event loop. It returns immediately; the loop stops when ctx
// is cancelled. Use Wait to block until in-flight work has finished.
func (s *Store) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("store already started")
	}

	var publish chan<- State
	if s.subscribed {
		// publishing outlives ctx so the loop can finish its last publish
		// before the broadcaster closes its input
		pubCtx, stop := context.WithCancel(context.WithoutCancel(ctx))

		var err error
		publish, err = s.broadcaster.Run(pubCtx)
		if err != nil {
			stop()
			return err
		}
		s.stopPublishing = stop
	}

	s.wg.Go(func() {
		s.loop(ctx, publish)
	})

	return nil
}

// Emit queues ev for the event loop. Events emitted after shutdown are dropped.
func (s *Store) Emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
		s.logger.Debug("Dropping event after shutdown", "event", eventName(ev))
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Wait blocks until the loop and all effects have returned and subscribers
// have been closed.
func (s *Store) Wait() {
	s.wg.Wait()
}

// PublishStats reports, per subscriber in subscription order, how many states
// it missed.
func (s *Store) PublishStats() []channels.SubscriberStats {
	return s.broadcaster.Stats()
}

func (s *Store) loop(ctx context.Context, publish chan<- State) {
	defer close(s.done)
	defer s.shutdownPublishing()

	s.publish(publish, s.State())

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.apply(ctx, ev, publish)
		}
	}
}

func (s *Store) apply(ctx context.Context, ev Event, publish chan<- State) {
	prev := s.State()
	next, effects := Reduce(prev, ev)

	if next == prev && len(effects) == 0 {
		s.logger.Debug("Ignoring event", "event", eventName(ev), "phase", prev.Phase.String())
		return
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	if next.Phase != prev.Phase {
		s.logger.Info("Phase changed",
			"cycle", s.cycleID,
			"from", prev.Phase.String(),
			"to", next.Phase.String(),
			"error", next.ErrorMessage,
		)
	}

	s.publish(publish, next)

	for _, eff := range effects {
		s.dispatch(ctx, eff)
	}
}

func (s *Store) publish(publish chan<- State, st State) {
	if publish == nil {
		return
	}

	if err := channels.SendWithTimeout(publish, st, s.publishTimeout); err != nil {
		s.logger.Warn("Failed to publish state", "phase", st.Phase.String(), "error", err)
	}
}

// shutdownPublishing runs on the loop goroutine after its final publish.
func (s *Store) shutdownPublishing() {
	if s.stopPublishing == nil {
		return
	}

	s.stopPublishing()
	s.broadcaster.Wait()

	for i, st := range s.broadcaster.Stats() {
		if st.Dropped > 0 || st.Inactive {
			s.logger.Warn("Subscriber missed states",
				"subscriber", i,
				"dropped", st.Dropped,
				"inactive", st.Inactive,
			)
		}
	}
}

func (s *Store) dispatch(ctx context.Context, eff Effect) {
	switch eff := eff.(type) {
	case RequestCapture:
		s.cycleID = uuid.NewString()
		logger := s.logger.With("cycle", s.cycleID)
		s.wg.Go(func() {
			s.capture(ctx, logger)
		})

	case DeliverNote:
		logger := s.logger.With("cycle", s.cycleID)
		s.wg.Go(func() {
			s.deliver(ctx, logger, eff.Text)
		})
	}
}

func (s *Store) capture(ctx context.Context, logger *slog.Logger) {
	ctx, cancel := withOptionalTimeout(ctx, s.captureTimeout)
	defer cancel()

	logger.Debug("Starting capture")

	text, err := s.listener.Listen(ctx)
	if err != nil {
		logger.Info("Capture ended without a transcript", "error", err)
		s.Emit(CaptureCancelled{Err: err})

		return
	}

	logger.Debug("Capture produced a transcript", "chars", len(text))
	s.Emit(CaptureProduced{Text: text})
}

func (s *Store) deliver(ctx context.Context, logger *slog.Logger, text string) {
	ctx, cancel := withOptionalTimeout(ctx, s.sendTimeout)
	defer cancel()

	ok := s.sender.Send(ctx, text)
	logger.Debug("Delivery finished", "success", ok)
	s.Emit(SendCompleted{Success: ok})
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d)
}

func eventName(ev Event) string {
	switch ev.(type) {
	case StartListening:
		return "start_listening"
	case CaptureCancelled:
		return "capture_cancelled"
	case CaptureProduced:
		return "capture_produced"
	case SendCompleted:
		return "send_completed"
	case ConsumeAutoRestart:
		return "consume_auto_restart"
	default:
		return "unknown"
	}
}
