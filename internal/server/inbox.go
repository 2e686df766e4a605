package server

import (
	"sync"

	"github.com/alkime/memnote/internal/notes"
)

// ReceivedNote is a note accepted by the sink.
type ReceivedNote struct {
	ID int `json:"id"`
	notes.NoteRequest
}

// Inbox is an in-memory, append-only list of received notes.
type Inbox struct {
	mu    sync.RWMutex
	notes []ReceivedNote
}

// NewInbox creates an empty Inbox.
func NewInbox() *Inbox {
	return &Inbox{}
}

// Add stores a note and returns its id, starting at 1.
func (in *Inbox) Add(note notes.NoteRequest) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	id := len(in.notes) + 1
	in.notes = append(in.notes, ReceivedNote{ID: id, NoteRequest: note})

	return id
}

// List returns a copy of the received notes in arrival order.
func (in *Inbox) List() []ReceivedNote {
	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]ReceivedNote, len(in.notes))
	copy(out, in.notes)

	return out
}
