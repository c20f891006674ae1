// Package property implements the observable key/value bag used as a node's
// input and output.
package property

import (
	"reflect"
	"slices"

	"github.com/skan-io/saij/internal/event"
)

// ChangeEvent is the payload of change and propertychange events.
type ChangeEvent struct {
	Key      string
	OldValue any
	NewValue any
}

// Bag is an observable set of named values.
//
// A non-silent write that changes a value dispatches event.Change(key)
// followed by event.Named(event.KindPropertyChange). Listeners registered
// through the registry see the bag as their receiver.
//
// Bag is not safe for concurrent use.
type Bag struct {
	event.Observable

	values map[string]any
	order  []string
}

// New creates a bag with the given initial values. No events are dispatched.
func New(props map[string]any) *Bag {
	b := &Bag{values: make(map[string]any, len(props))}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.values[k] = props[k]
		b.order = append(b.order, k)
	}
	return b
}

// Get returns the value for key and whether it is set.
func (b *Bag) Get(key string) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Value returns the value for key, or nil.
func (b *Bag) Value(key string) any {
	return b.values[key]
}

// Has reports whether key is set.
func (b *Bag) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// Set writes value under key. Equal values and silent writes dispatch nothing.
func (b *Bag) Set(key string, value any, silent bool) {
	old, existed := b.values[key]
	if b.values == nil {
		b.values = make(map[string]any)
	}
	if existed && Equal(old, value) {
		return
	}
	b.values[key] = value
	if !existed {
		b.order = append(b.order, key)
	}
	if !silent {
		b.notify(key, old, value)
	}
}

// Unset removes key. Absent keys dispatch nothing.
func (b *Bag) Unset(key string, silent bool) {
	old, existed := b.values[key]
	if !existed {
		return
	}
	delete(b.values, key)
	if i := slices.Index(b.order, key); i >= 0 {
		b.order = slices.Delete(b.order, i, i+1)
	}
	if !silent {
		b.notify(key, old, nil)
	}
}

// GetAll returns a copy of all values.
func (b *Bag) GetAll() map[string]any {
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// SetAll writes every entry of props in sorted key order.
func (b *Bag) SetAll(props map[string]any, silent bool) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.Set(k, props[k], silent)
	}
}

// Keys returns the keys in insertion order.
func (b *Bag) Keys() []string {
	return slices.Clone(b.order)
}

// Len returns the number of keys.
func (b *Bag) Len() int {
	return len(b.values)
}

// OnChange listens to writes of key.
func (b *Bag) OnChange(key string, listener event.Listener) *event.Key {
	return event.Listen(b, event.Change(key), listener, nil, false)
}

// OnPropertyChange listens to writes of any key.
func (b *Bag) OnPropertyChange(listener event.Listener) *event.Key {
	return event.Listen(b, event.Named(event.KindPropertyChange), listener, nil, false)
}

func (b *Bag) notify(key string, old, value any) {
	payload := &ChangeEvent{Key: key, OldValue: old, NewValue: value}

	evt := event.New(event.Change(key), payload)
	evt.Target = b
	b.DispatchEvent(evt)

	evt = event.New(event.Named(event.KindPropertyChange), payload)
	evt.Target = b
	b.DispatchEvent(evt)
}

// Equal reports whether two property values are the same. Comparable values
// use ==; everything else falls back to reflect.DeepEqual.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Comparable() && vb.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
