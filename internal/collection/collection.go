// Package collection provides an observable ordered list.
package collection

import (
	"fmt"
	"slices"

	"github.com/skan-io/saij/internal/assertion"
	"github.com/skan-io/saij/internal/event"
)

// CollectionEvent is the payload of add and remove events.
type CollectionEvent[T any] struct {
	Element T
	Index   int
}

// Option configures a Collection.
type Option func(*options)

type options struct {
	unique bool
}

// Unique rejects elements that are already present (by ==).
func Unique() Option {
	return func(o *options) {
		o.unique = true
	}
}

// Collection is an ordered list dispatching event.KindAdd and
// event.KindRemove for every element that joins or leaves it.
//
// Elements are compared with ==, so T must be comparable.
type Collection[T comparable] struct {
	event.Observable

	items  []T
	unique bool
}

// New creates a collection with initial items. No events are dispatched.
// With Unique, a duplicate in items is an error.
func New[T comparable](items []T, opts ...Option) (*Collection[T], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Collection[T]{unique: o.unique}
	for _, item := range items {
		if err := c.assertUnique(item, -1); err != nil {
			return nil, err
		}
		c.items = append(c.items, item)
	}
	return c, nil
}

// Len returns the number of elements.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Item returns the element at index and whether index is in range.
func (c *Collection[T]) Item(index int) (T, bool) {
	var zero T
	if index < 0 || index >= len(c.items) {
		return zero, false
	}
	return c.items[index], true
}

// Array returns a copy of the elements.
func (c *Collection[T]) Array() []T {
	return slices.Clone(c.items)
}

// Contains reports whether elem is present.
func (c *Collection[T]) Contains(elem T) bool {
	return slices.Contains(c.items, elem)
}

// IndexOf returns the position of elem or -1.
func (c *Collection[T]) IndexOf(elem T) int {
	return slices.Index(c.items, elem)
}

// ForEach calls fn for every element over a snapshot of the list.
func (c *Collection[T]) ForEach(fn func(elem T, index int)) {
	for i, item := range c.Array() {
		fn(item, i)
	}
}

// Push appends elem and returns the new length.
func (c *Collection[T]) Push(elem T) (int, error) {
	if err := c.InsertAt(len(c.items), elem); err != nil {
		return len(c.items), err
	}
	return len(c.items), nil
}

// InsertAt inserts elem at index (clamped to the list bounds).
func (c *Collection[T]) InsertAt(index int, elem T) error {
	if err := c.assertUnique(elem, -1); err != nil {
		return err
	}
	index = max(0, min(index, len(c.items)))
	c.items = slices.Insert(c.items, index, elem)
	c.dispatch(event.KindAdd, elem, index)
	return nil
}

// Extend pushes every element in order. It stops at the first error.
func (c *Collection[T]) Extend(elems []T) error {
	for _, elem := range elems {
		if _, err := c.Push(elem); err != nil {
			return err
		}
	}
	return nil
}

// SetAt replaces the element at index; an index past the end appends.
func (c *Collection[T]) SetAt(index int, elem T) error {
	if index < 0 {
		return fmt.Errorf("set item: negative index %d", index)
	}
	if index >= len(c.items) {
		return c.InsertAt(len(c.items), elem)
	}
	if err := c.assertUnique(elem, index); err != nil {
		return err
	}
	prev := c.items[index]
	c.items[index] = elem
	c.dispatch(event.KindRemove, prev, index)
	c.dispatch(event.KindAdd, elem, index)
	return nil
}

// RemoveAt removes the element at index and returns it.
func (c *Collection[T]) RemoveAt(index int) (T, bool) {
	var zero T
	if index < 0 || index >= len(c.items) {
		return zero, false
	}
	prev := c.items[index]
	c.items = slices.Delete(c.items, index, index+1)
	c.dispatch(event.KindRemove, prev, index)
	return prev, true
}

// Remove removes the first occurrence of elem.
func (c *Collection[T]) Remove(elem T) bool {
	i := c.IndexOf(elem)
	if i < 0 {
		return false
	}
	_, ok := c.RemoveAt(i)
	return ok
}

// Pop removes the last element.
func (c *Collection[T]) Pop() (T, bool) {
	return c.RemoveAt(len(c.items) - 1)
}

// Clear removes every element from the back, one remove event each.
func (c *Collection[T]) Clear() {
	for len(c.items) > 0 {
		c.Pop()
	}
}

// OnAdd listens to element additions.
func (c *Collection[T]) OnAdd(listener event.Listener) *event.Key {
	return event.Listen(c, event.Named(event.KindAdd), listener, nil, false)
}

// OnRemove listens to element removals.
func (c *Collection[T]) OnRemove(listener event.Listener) *event.Key {
	return event.Listen(c, event.Named(event.KindRemove), listener, nil, false)
}

func (c *Collection[T]) dispatch(kind event.Kind, elem T, index int) {
	evt := event.New(event.Named(kind), &CollectionEvent[T]{Element: elem, Index: index})
	evt.Target = c
	c.DispatchEvent(evt)
	c.Changed()
}

func (c *Collection[T]) assertUnique(elem T, except int) error {
	if !c.unique {
		return nil
	}
	for i, item := range c.items {
		if i != except && item == elem {
			return assertion.InvalidArgument(assertion.CodeUnique, "duplicate item added to a unique collection")
		}
	}
	return nil
}
