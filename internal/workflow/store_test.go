package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alkime/memnote/internal/workflow"
	"github.com/alkime/memnote/pkg/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureResult struct {
	text string
	err  error
}

// scriptedListener hands out one queued result per Listen call and blocks
// until one is queued or ctx ends.
type scriptedListener struct {
	results chan captureResult
}

func newScriptedListener() *scriptedListener {
	return &scriptedListener{results: make(chan captureResult, 8)}
}

func (l *scriptedListener) Listen(ctx context.Context) (string, error) {
	select {
	case r := <-l.results:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type recordingSender struct {
	mu      sync.Mutex
	ok      bool
	block   bool
	texts   []string
	started chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, text string) bool {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return false
	}

	return s.ok
}

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.texts...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startStore(t *testing.T, listener workflow.Listener, sender workflow.NoteSender, opts ...workflow.Option) (*workflow.Store, <-chan workflow.State) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	opts = append([]workflow.Option{workflow.WithLogger(quietLogger())}, opts...)
	store := workflow.NewStore(listener, sender, opts...)

	states := make(chan workflow.State, 32)
	require.NoError(t, store.Subscribe(states))
	require.NoError(t, store.Run(ctx))

	t.Cleanup(func() {
		cancel()
		store.Wait()
	})

	return store, states
}

// waitFor reads published states until match returns true.
func waitFor(t *testing.T, states <-chan workflow.State, match func(workflow.State) bool) workflow.State {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-states:
			if !ok {
				require.FailNow(t, "states closed while waiting")
			}
			assert.False(t, s.IsListening() && s.IsSending())
			if match(s) {
				return s
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for state")
		}
	}
}

func phaseIs(p workflow.Phase) func(workflow.State) bool {
	return func(s workflow.State) bool { return s.Phase == p }
}

func TestStore_PublishesInitialState(t *testing.T) {
	_, states := startStore(t, newScriptedListener(), &recordingSender{ok: true})

	s := waitFor(t, states, func(workflow.State) bool { return true })
	assert.Equal(t, workflow.State{}, s)
}

func TestStore_SuccessfulCycleAndAutoRestart(t *testing.T) {
	listener := newScriptedListener()
	sender := &recordingSender{ok: true}
	store, states := startStore(t, listener, sender)

	listener.results <- captureResult{text: "buy milk"}
	store.Emit(workflow.StartListening{})

	sent := waitFor(t, states, phaseIs(workflow.PhaseSent))
	assert.Equal(t, "buy milk", sent.LastSentText)
	assert.Empty(t, sent.RecognizedText)
	assert.True(t, sent.AutoRestart)
	assert.Equal(t, []string{"buy milk"}, sender.sent())

	store.Emit(workflow.ConsumeAutoRestart{})
	store.Emit(workflow.ConsumeAutoRestart{})

	listening := waitFor(t, states, phaseIs(workflow.PhaseListening))
	assert.False(t, listening.AutoRestart)
	assert.Empty(t, listening.ErrorMessage)

	listener.results <- captureResult{text: "call mom"}
	waitFor(t, states, phaseIs(workflow.PhaseSent))
	assert.Equal(t, []string{"buy milk", "call mom"}, sender.sent(), "double consume must not start a second capture")
}

func TestStore_DeliveryFailure(t *testing.T) {
	listener := newScriptedListener()
	store, states := startStore(t, listener, &recordingSender{ok: false})

	listener.results <- captureResult{text: "buy milk"}
	store.Emit(workflow.StartListening{})

	s := waitFor(t, states, phaseIs(workflow.PhaseErrored))
	assert.Equal(t, workflow.ErrDeliveryFailed.Error(), s.ErrorMessage)
	assert.Equal(t, "buy milk", s.RecognizedText)
	assert.False(t, s.AutoRestart)
	assert.Equal(t, s, store.State())
}

func TestStore_CaptureError(t *testing.T) {
	listener := newScriptedListener()
	sender := &recordingSender{ok: true}
	store, states := startStore(t, listener, sender)

	listener.results <- captureResult{err: errors.New("no speech")}
	store.Emit(workflow.StartListening{})

	s := waitFor(t, states, phaseIs(workflow.PhaseErrored))
	assert.Equal(t, workflow.ErrRecognitionCancelled.Error(), s.ErrorMessage)
	assert.Empty(t, sender.sent())
}

func TestStore_CaptureTimeout(t *testing.T) {
	store, states := startStore(t, newScriptedListener(), &recordingSender{ok: true},
		workflow.WithCaptureTimeout(20*time.Millisecond))

	store.Emit(workflow.StartListening{})

	s := waitFor(t, states, phaseIs(workflow.PhaseErrored))
	assert.ErrorIs(t, s.Err(), workflow.ErrRecognitionCancelled)
}

func TestStore_SendTimeout(t *testing.T) {
	listener := newScriptedListener()
	store, states := startStore(t, listener, &recordingSender{block: true},
		workflow.WithSendTimeout(20*time.Millisecond))

	listener.results <- captureResult{text: "slow"}
	store.Emit(workflow.StartListening{})

	s := waitFor(t, states, phaseIs(workflow.PhaseErrored))
	assert.ErrorIs(t, s.Err(), workflow.ErrDeliveryFailed)
	assert.Equal(t, "slow", s.RecognizedText)
}

func TestStore_StartIgnoredWhileListening(t *testing.T) {
	listener := newScriptedListener()
	sender := &recordingSender{ok: true}
	store, states := startStore(t, listener, sender)

	store.Emit(workflow.StartListening{})
	waitFor(t, states, phaseIs(workflow.PhaseListening))
	store.Emit(workflow.StartListening{})

	listener.results <- captureResult{text: "once"}
	waitFor(t, states, phaseIs(workflow.PhaseSent))

	// a second capture would consume this result and deliver it
	listener.results <- captureResult{text: "twice"}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"once"}, sender.sent())
}

func TestStore_RunTwice(t *testing.T) {
	store, _ := startStore(t, newScriptedListener(), &recordingSender{})

	assert.Error(t, store.Run(context.Background()))
	assert.Error(t, store.Subscribe(make(chan workflow.State, 1)))
}

func TestStore_EmitAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := workflow.NewStore(newScriptedListener(), &recordingSender{}, workflow.WithLogger(quietLogger()))
	require.NoError(t, store.Run(ctx))

	cancel()
	store.Wait()

	// must not block
	for range 32 {
		store.Emit(workflow.StartListening{})
	}
	assert.Equal(t, workflow.PhaseIdle, store.State().Phase)
}

type failingListener struct{}

func (failingListener) Listen(context.Context) (string, error) {
	return "", errors.New("no speech")
}

// drainStates reads until the store closes the channel.
func drainStates(t *testing.T, states <-chan workflow.State) []workflow.State {
	t.Helper()

	var out []workflow.State
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-states:
			if !ok {
				return out
			}
			out = append(out, s)
		case <-timeout:
			require.FailNow(t, "states channel was not closed")
		}
	}
}

func TestStore_ClosesSubscribersOnStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := workflow.NewStore(newScriptedListener(), &recordingSender{}, workflow.WithLogger(quietLogger()))
	states := make(chan workflow.State, 8)
	require.NoError(t, store.Subscribe(states))
	require.NoError(t, store.Run(ctx))

	store.Emit(workflow.StartListening{})
	require.Eventually(t, func() bool { return store.State().IsListening() }, time.Second, 5*time.Millisecond)

	cancel()
	store.Wait()

	got := drainStates(t, states)
	require.NotEmpty(t, got)
	assert.Equal(t, workflow.PhaseListening, got[len(got)-1].Phase, "last published state is delivered before close")
}

// Stopping while events are still being applied must not publish into a
// closed broadcaster. Run with -race.
func TestStore_StopWhileEventsFlow(t *testing.T) {
	for range 200 {
		ctx, cancel := context.WithCancel(context.Background())
		store := workflow.NewStore(failingListener{}, &recordingSender{}, workflow.WithLogger(quietLogger()))
		states := make(chan workflow.State, 4)
		require.NoError(t, store.Subscribe(states))
		require.NoError(t, store.Run(ctx))

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for range states {
			}
		}()

		for range 20 {
			store.Emit(workflow.StartListening{})
		}
		cancel()
		store.Wait()

		select {
		case <-closed:
		case <-time.After(2 * time.Second):
			require.FailNow(t, "states channel was not closed")
		}
	}
}

func TestStore_ReportsMissedStates(t *testing.T) {
	var logs bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	store := workflow.NewStore(newScriptedListener(), &recordingSender{},
		workflow.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		workflow.WithPublishTimeout(10*time.Millisecond),
	)
	// room for the initial state only, and nobody reads
	stuck := make(chan workflow.State, 1)
	require.NoError(t, store.Subscribe(stuck))
	require.NoError(t, store.Run(ctx))

	store.Emit(workflow.StartListening{})
	require.Eventually(t, func() bool { return store.State().IsListening() }, time.Second, 5*time.Millisecond)

	cancel()
	store.Wait()

	assert.Equal(t, []channels.SubscriberStats{{Dropped: 1}}, store.PublishStats())
	assert.Contains(t, logs.String(), "Subscriber missed states")
	assert.Equal(t, workflow.PhaseIdle, (<-stuck).Phase)
}
