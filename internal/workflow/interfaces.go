package workflow

import "context"

// Listener runs one capture and returns its transcript. Any error means the
// capture produced nothing usable.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// NoteSender delivers a transcript and reports whether it was accepted.
type NoteSender interface {
	Send(ctx context.Context, text string) bool
}

// Emitter accepts events for a running Store. Surfaces depend on this rather
// than on *Store.
type Emitter interface {
	Emit(ev Event)
}
