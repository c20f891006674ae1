package event

import "errors"

// Kind is the family of an event.
type Kind string

const (
	// KindChange fires for a single property (Type.Key set) or for a revision bump.
	KindChange Kind = "change"
	// KindPropertyChange fires for any property write on a bag.
	KindPropertyChange Kind = "propertychange"
	// KindAdd fires when an element joins a collection.
	KindAdd Kind = "add"
	// KindRemove fires when an element leaves a collection.
	KindRemove Kind = "remove"
	// KindDispose fires once when a target is disposed.
	KindDispose Kind = "dispose"
)

// Type identifies an event stream on a target. It is comparable and used
// directly as a map key.
type Type struct {
	Kind Kind
	Key  string
}

// Named returns the type for a kind with no key.
func Named(kind Kind) Type {
	return Type{Kind: kind}
}

// Change returns the per-property change type for key.
func Change(key string) Type {
	return Type{Kind: KindChange, Key: key}
}

// String renders "kind" or "kind:key". For diagnostics only.
func (t Type) String() string {
	if t.Key == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + ":" + t.Key
}

// ErrStopPropagation may be returned by a listener to stop the remaining
// listeners of the current dispatch from running. It is not reported as a
// failure.
var ErrStopPropagation = errors.New("stop propagation")

// Event is passed to every listener of a dispatch.
type Event struct {
	Type Type

	// Target is the object the event was dispatched on. DispatchEvent fills
	// it in when left nil.
	Target any

	// Receiver is the bindTo value of the record being invoked, or the target
	// when the record has none. Set by the registry before each call.
	Receiver any

	// Payload carries event specific data (e.g. *property.ChangeEvent).
	Payload any

	stopped bool
}

// New creates an event of the given type.
func New(typ Type, payload any) *Event {
	return &Event{Type: typ, Payload: payload}
}

// StopPropagation prevents listeners after the current one from running.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// PreventDefault has the same effect as StopPropagation.
func (e *Event) PreventDefault() {
	e.stopped = true
}

// PropagationStopped reports whether a listener stopped the dispatch.
func (e *Event) PropagationStopped() bool {
	return e.stopped
}

// Listener handles events.
//
// Listeners are compared by identity for de-duplication and removal. Use
// pointer types (such as *FuncListener); values whose dynamic type is not
// comparable never match anything, so they can only be removed by key.
type Listener interface {
	HandleEvent(evt *Event) error
}

// FuncListener adapts a function to Listener. Each call to NewListener
// returns a distinct identity.
type FuncListener struct {
	fn func(*Event) error
}

// NewListener wraps fn.
func NewListener(fn func(*Event) error) *FuncListener {
	return &FuncListener{fn: fn}
}

// HandleEvent calls the wrapped function.
func (l *FuncListener) HandleEvent(evt *Event) error {
	if l.fn == nil {
		return nil
	}
	return l.fn(evt)
}
