package event

import (
	"errors"
	"log/slog"
	"reflect"
	"slices"
)

// EventTarget is anything that can have listeners attached through the
// registry. Embed Target to satisfy it.
type EventTarget interface {
	AddEventListener(typ Type, listener Listener)
	RemoveEventListener(typ Type, listener Listener)
	DispatchEvent(evt *Event) bool
	HasListener(typ Type) bool

	// base exposes the embedded Target holding the registry records.
	base() *Target
}

// Target is the dispatch mechanism. The zero value is ready to use.
type Target struct {
	listeners       map[Type][]Listener
	dispatching     map[Type]int
	pendingRemovals map[Type]int

	// records holds the registry's listener records, keyed by type.
	records map[Type][]*Key

	disposed bool
}

func (t *Target) base() *Target {
	return t
}

// AddEventListener appends listener for typ unless the identical listener is
// already registered for typ.
func (t *Target) AddEventListener(typ Type, listener Listener) {
	if listener == nil {
		return
	}
	if t.listeners == nil {
		t.listeners = make(map[Type][]Listener)
	}
	list := t.listeners[typ]
	if indexOf(list, listener) >= 0 {
		return
	}
	t.listeners[typ] = append(list, listener)
}

// RemoveEventListener removes listener for typ. Absent listeners are ignored.
//
// While typ is being dispatched on this target the slot is blanked instead of
// spliced, so that indices seen by in-flight dispatches stay valid.
func (t *Target) RemoveEventListener(typ Type, listener Listener) {
	list := t.listeners[typ]
	idx := indexOf(list, listener)
	if idx < 0 {
		return
	}
	if t.dispatching[typ] > 0 {
		list[idx] = nil
		t.pendingRemovals[typ]++
		return
	}
	list = slices.Delete(list, idx, idx+1)
	if len(list) == 0 {
		delete(t.listeners, typ)
		return
	}
	t.listeners[typ] = list
}

// DispatchEvent invokes the listeners of evt.Type in registration order.
//
// Only listeners registered when the dispatch starts are considered; slots
// blanked by removals are skipped. A listener stops the dispatch by calling
// evt.StopPropagation or returning ErrStopPropagation. Any other error is
// logged and the dispatch continues.
//
// Returns false if propagation was stopped.
func (t *Target) DispatchEvent(evt *Event) bool {
	if evt.Target == nil {
		evt.Target = t
	}
	typ := evt.Type
	count := len(t.listeners[typ])
	if count == 0 {
		return true
	}

	if t.dispatching == nil {
		t.dispatching = make(map[Type]int)
		t.pendingRemovals = make(map[Type]int)
	}
	t.dispatching[typ]++

	propagate := true
	for i := 0; i < count; i++ {
		// Re-read each step: appends may have moved the backing array and
		// Dispose may have dropped it.
		live := t.listeners[typ]
		if i >= len(live) {
			break
		}
		listener := live[i]
		if listener == nil {
			continue
		}
		err := listener.HandleEvent(evt)
		if errors.Is(err, ErrStopPropagation) || evt.stopped {
			propagate = false
			break
		}
		if err != nil {
			slog.Warn("event listener failed",
				"type", typ.String(),
				"error", err,
			)
		}
	}

	t.dispatching[typ]--
	if t.dispatching[typ] == 0 {
		pending := t.pendingRemovals[typ]
		delete(t.pendingRemovals, typ)
		delete(t.dispatching, typ)
		if pending > 0 {
			t.compact(typ)
		}
	}

	return propagate
}

// compact drops blanked slots left behind by removals during dispatch.
func (t *Target) compact(typ Type) {
	list := slices.DeleteFunc(t.listeners[typ], func(l Listener) bool {
		return l == nil
	})
	if len(list) == 0 {
		delete(t.listeners, typ)
		return
	}
	t.listeners[typ] = list
}

// HasListener reports whether any listener is registered for typ.
func (t *Target) HasListener(typ Type) bool {
	for _, l := range t.listeners[typ] {
		if l != nil {
			return true
		}
	}
	return false
}

// HasAnyListener reports whether any listener is registered at all.
func (t *Target) HasAnyListener() bool {
	for typ := range t.listeners {
		if t.HasListener(typ) {
			return true
		}
	}
	return false
}

// EventListeners returns a copy of the live listeners for typ, or nil.
func (t *Target) EventListeners(typ Type) []Listener {
	var out []Listener
	for _, l := range t.listeners[typ] {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// Dispose detaches every registry record and drops all listeners.
// Calling it more than once is a no-op.
func (t *Target) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.DispatchEvent(New(Named(KindDispose), nil))
	UnlistenAll(t)
	t.listeners = nil
}

// Disposed reports whether Dispose has been called.
func (t *Target) Disposed() bool {
	return t.disposed
}

func indexOf(list []Listener, listener Listener) int {
	for i, l := range list {
		if l != nil && sameValue(l, listener) {
			return i
		}
	}
	return -1
}

// sameValue compares by identity without panicking on values whose dynamic
// type is not comparable. Such values only equal themselves by never matching.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}
