// Package events is the in-process domain event bus. Subscribers receive
// events after the surrounding database transaction has committed, never
// inside it, so cache invalidation and live-update delivery cannot observe
// state that later rolls back.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TransactionCreated = "transaction.created"
	TransactionUpdated = "transaction.updated"
	TransactionDeleted = "transaction.deleted"
	ConflictDetected   = "entity.conflictDetected"
)

type Event struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	WorkspaceID uint      `json:"workspace_id"`
	Payload     any       `json:"payload"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func New(name string, workspaceID uint, payload any) Event {
	return Event{
		ID:          uuid.New(),
		Name:        name,
		WorkspaceID: workspaceID,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(evt Event)
}

// Bus fans events out to subscribers synchronously. Handlers are best-effort:
// they must not fail the operation that emitted the event.
type Bus struct {
	mu       sync.RWMutex
	handlers []func(Event)
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
}

func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(evt)
	}
}
