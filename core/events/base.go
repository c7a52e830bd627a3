package events

import "time"

// Kind identifies an event variant, namespaced by the originating connection
// (call_leg.*, agent_session.*).
type Kind string

// Event is the contract every relay event satisfies.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind and creation time common to all events. Embed it and
// build it with [NewBase]; the fields stay unexported so a constructed event
// cannot be re-kinded after the fact.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

// Timestamp reports when the event was constructed, not when the underlying
// wire message was sent.
func (b Base) Timestamp() time.Time {
	return b.timestamp
}
