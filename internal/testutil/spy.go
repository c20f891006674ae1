package testutil

import (
	"github.com/skan-io/saij/internal/event"
	"github.com/skan-io/saij/internal/property"
)

// Spy is a listener that records every event it receives.
type Spy struct {
	Events []*event.Event
}

// NewSpy creates an empty spy.
func NewSpy() *Spy {
	return &Spy{}
}

// HandleEvent records evt.
func (s *Spy) HandleEvent(evt *event.Event) error {
	s.Events = append(s.Events, evt)
	return nil
}

// Count returns the number of recorded events.
func (s *Spy) Count() int {
	return len(s.Events)
}

// Changes returns the property payloads in order, skipping other events.
func (s *Spy) Changes() []property.ChangeEvent {
	var out []property.ChangeEvent
	for _, evt := range s.Events {
		if ce, ok := evt.Payload.(*property.ChangeEvent); ok {
			out = append(out, *ce)
		}
	}
	return out
}

// Reset forgets recorded events.
func (s *Spy) Reset() {
	s.Events = nil
}
