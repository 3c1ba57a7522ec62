package database

import (
	"fintrack-backend/internal/events"

	"gorm.io/gorm"
)

// Scope is the single data-access abstraction handed to engine components.
// It wraps either the ambient connection or an active transaction; callers
// never branch on which one they got.
//
// Events raised through a transactional scope are buffered and published by
// the unit of work after commit. On an ambient scope they publish directly.
type Scope struct {
	db       *gorm.DB
	ambient  *gorm.DB
	bus      events.Publisher
	buffered bool
	pending  []events.Event
}

// NewScope wraps the ambient connection. bus may be nil when no subscriber
// cares (tests, one-off scripts).
func NewScope(db *gorm.DB, bus events.Publisher) *Scope {
	return &Scope{db: db, ambient: db, bus: bus}
}

func newTxScope(tx, ambient *gorm.DB, bus events.Publisher) *Scope {
	return &Scope{db: tx, ambient: ambient, bus: bus, buffered: true}
}

func (s *Scope) DB() *gorm.DB { return s.db }

// Durable returns the ambient connection regardless of any open transaction.
// Writes through it commit on their own and survive a rollback of the
// surrounding unit of work; the conflict ledger uses it so detection evidence
// outlives the rejected edit.
func (s *Scope) Durable() *gorm.DB { return s.ambient }

// Emit raises a domain event. Inside a unit of work the event is held back
// until commit.
func (s *Scope) Emit(evt events.Event) {
	if s.buffered {
		s.pending = append(s.pending, evt)
		return
	}
	if s.bus != nil {
		s.bus.Publish(evt)
	}
}

// EmitNow publishes immediately, bypassing the commit buffer. Reserved for
// events whose backing rows were written through Durable, where waiting for
// a commit that will never happen would drop the event.
func (s *Scope) EmitNow(evt events.Event) {
	if s.bus != nil {
		s.bus.Publish(evt)
	}
}

func (s *Scope) drain() []events.Event {
	pending := s.pending
	s.pending = nil
	return pending
}
