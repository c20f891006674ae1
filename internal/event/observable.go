package event

// Observable is a Target with registry shortcuts and a revision counter.
// Embed it by value; the zero value is ready to use.
type Observable struct {
	Target
	revision int64
}

// On listens to typ on o. The receiver seen by the listener is o.
// Types embedding Observable that want themselves as the receiver call
// Listen directly.
func (o *Observable) On(typ Type, listener Listener) *Key {
	return Listen(o, typ, listener, nil, false)
}

// OnAll listens to several types with one listener.
func (o *Observable) OnAll(types []Type, listener Listener) []*Key {
	keys := make([]*Key, 0, len(types))
	for _, typ := range types {
		keys = append(keys, o.On(typ, listener))
	}
	return keys
}

// Once listens to typ and detaches after the first event.
func (o *Observable) Once(typ Type, listener Listener) *Key {
	return Listen(o, typ, listener, nil, true)
}

// Un removes a listener added with On or Once.
func (o *Observable) Un(typ Type, listener Listener) {
	Unlisten(o, typ, listener, nil)
}

// UnByKey detaches every key. Nil and detached keys are ignored.
func (o *Observable) UnByKey(keys ...*Key) {
	UnByKey(keys...)
}

// Changed increments the revision and dispatches a plain change event.
func (o *Observable) Changed() {
	o.revision++
	o.DispatchEvent(New(Named(KindChange), nil))
}

// Revision returns the number of Changed calls.
func (o *Observable) Revision() int64 {
	return o.revision
}

// UnByKey detaches every key.
func UnByKey(keys ...*Key) {
	for _, key := range keys {
		UnlistenByKey(key)
	}
}
