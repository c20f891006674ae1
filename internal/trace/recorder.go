// Package trace records property writes on wired nodes as an ordered,
// canonically serializable log.
package trace

import (
	"fmt"
	"slices"
	"sync"

	"github.com/skan-io/saij/internal/event"
	"github.com/skan-io/saij/internal/property"
)

// Side names the bag of a node an event was observed on.
type Side string

const (
	SideInput  Side = "input"
	SideOutput Side = "output"
)

// ParseSide accepts "input"/"in" and "output"/"out".
func ParseSide(s string) (Side, error) {
	switch s {
	case "input", "in":
		return SideInput, nil
	case "output", "out":
		return SideOutput, nil
	}
	return "", fmt.Errorf("unknown side %q (want input or output)", s)
}

// Node is the part of an engine node the recorder observes.
type Node interface {
	Name() string
	UID() uint64
	Input() *property.Bag
	Output() *property.Bag
}

// Event is one observed property write.
type Event struct {
	Seq   int64  `json:"seq"`
	Organ string `json:"organ"`
	Side  Side   `json:"side"`
	Key   string `json:"key"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Fields returns the event as a map keyed by its JSON field names.
func (e Event) Fields() map[string]any {
	return map[string]any{
		"seq":   e.Seq,
		"organ": e.Organ,
		"side":  string(e.Side),
		"key":   e.Key,
		"old":   e.Old,
		"new":   e.New,
	}
}

func (e Event) canonical() any {
	return e.Fields()
}

// String renders the event for logs and assertion messages.
func (e Event) String() string {
	return fmt.Sprintf("#%d %s.%s.%s: %v -> %v", e.Seq, e.Organ, e.Side, e.Key, e.Old, e.New)
}

// Recorder collects events from attached nodes.
//
// Listeners run on whatever goroutine writes the bags; the recorder guards its
// log so Events may be read from another goroutine.
type Recorder struct {
	clock *Clock

	mu       sync.Mutex
	events   []Event
	attached map[uint64][]*event.Key
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		clock:    NewClock(),
		attached: make(map[uint64][]*event.Key),
	}
}

// Attach starts recording writes on the bags of each node. Attaching a node
// twice has no effect.
func (r *Recorder) Attach(nodes ...Node) {
	for _, node := range nodes {
		r.mu.Lock()
		_, done := r.attached[node.UID()]
		r.mu.Unlock()
		if done {
			continue
		}

		keys := []*event.Key{
			node.Input().OnPropertyChange(r.listener(node, SideInput)),
			node.Output().OnPropertyChange(r.listener(node, SideOutput)),
		}

		r.mu.Lock()
		r.attached[node.UID()] = keys
		r.mu.Unlock()
	}
}

// Detach stops recording node.
func (r *Recorder) Detach(node Node) {
	r.mu.Lock()
	keys := r.attached[node.UID()]
	delete(r.attached, node.UID())
	r.mu.Unlock()

	event.UnByKey(keys...)
}

// DetachAll stops recording every node.
func (r *Recorder) DetachAll() {
	r.mu.Lock()
	attached := r.attached
	r.attached = make(map[uint64][]*event.Key)
	r.mu.Unlock()

	for _, keys := range attached {
		event.UnByKey(keys...)
	}
}

// Attached reports whether node is being recorded.
func (r *Recorder) Attached(node Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.attached[node.UID()]
	return ok
}

func (r *Recorder) listener(node Node, side Side) event.Listener {
	return event.NewListener(func(evt *event.Event) error {
		ce, ok := evt.Payload.(*property.ChangeEvent)
		if !ok {
			return nil
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, Event{
			Seq:   r.clock.Next(),
			Organ: node.Name(),
			Side:  side,
			Key:   ce.Key,
			Old:   ce.OldValue,
			New:   ce.NewValue,
		})
		return nil
	})
}

// Events returns a copy of the log.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset clears the log and rewinds the clock. Attachments are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.clock.Reset()
}

// Marshal returns the log as a canonical JSON array.
func (r *Recorder) Marshal() ([]byte, error) {
	return Marshal(r.Events())
}

// Marshal renders events as a canonical JSON array.
func Marshal(events []Event) ([]byte, error) {
	elems := make([]any, len(events))
	for i, e := range events {
		elems[i] = e
	}
	return MarshalCanonical(elems)
}

// Filter returns the events matching organ, side and key. Empty criteria
// match everything.
func Filter(events []Event, organ string, side Side, key string) []Event {
	var out []Event
	for _, e := range events {
		if organ != "" && e.Organ != organ {
			continue
		}
		if side != "" && e.Side != side {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		out = append(out, e)
	}
	return out
}
