// Package memory records job events in process for tests and the one-shot
// import command.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Notifier stores every event it is handed.
type Notifier struct {
	mu     sync.RWMutex
	events []recipe.JobEvent
	err    error
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// FailWith makes subsequent Notify calls record the event and return err.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	n.err = err
	n.mu.Unlock()
}

// Notify implements recipe.Notifier.
func (n *Notifier) Notify(_ context.Context, event recipe.JobEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

// Events returns a copy of the recorded events.
func (n *Notifier) Events() []recipe.JobEvent {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]recipe.JobEvent, len(n.events))
	copy(out, n.events)
	return out
}
