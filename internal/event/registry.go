package event

import "slices"

// Key is a listener record and the handle returned by Listen.
//
// The record is also the adapter registered with the target, so removing it
// by key never needs to search for the caller's listener.
type Key struct {
	typ      Type
	target   EventTarget
	listener Listener
	bindTo   any
	callOnce bool

	// deleteIndex is a position hint recorded by FindListener. It is only
	// trusted if the slot still holds this record.
	deleteIndex int
}

// Type returns the event type the record listens to.
func (k *Key) Type() Type {
	return k.typ
}

// Target returns the target, or nil once the key is detached.
func (k *Key) Target() EventTarget {
	return k.target
}

// Listener returns the caller's listener, or nil once the key is detached.
func (k *Key) Listener() Listener {
	return k.listener
}

// BindTo returns the receiver override given to Listen.
func (k *Key) BindTo() any {
	return k.bindTo
}

// CallOnce reports whether the record detaches itself on first dispatch.
func (k *Key) CallOnce() bool {
	return k.callOnce
}

// Detached reports whether the record has been removed.
func (k *Key) Detached() bool {
	return k == nil || k.target == nil
}

// HandleEvent is the adapter invoked by the target. One-shot records are
// detached before the listener runs.
func (k *Key) HandleEvent(evt *Event) error {
	listener := k.listener
	if listener == nil {
		return nil
	}
	receiver := k.bindTo
	if receiver == nil {
		receiver = k.target
	}
	if k.callOnce {
		UnlistenByKey(k)
	}
	evt.Receiver = receiver
	return listener.HandleEvent(evt)
}

func (k *Key) clear() {
	k.target = nil
	k.listener = nil
	k.bindTo = nil
	k.callOnce = false
	k.deleteIndex = -1
}

// Listen registers listener for typ on target and returns its record.
//
// If a record with the same (type, listener, bindTo) exists it is returned
// instead of creating a second one. A non-once Listen on an existing one-shot
// record makes it permanent; a once Listen never downgrades a permanent one.
func Listen(target EventTarget, typ Type, listener Listener, bindTo any, once bool) *Key {
	if target == nil || listener == nil {
		return nil
	}
	base := target.base()
	if base.records == nil {
		base.records = make(map[Type][]*Key)
	}

	if key := FindListener(base.records[typ], listener, bindTo, false); key != nil {
		if !once {
			key.callOnce = false
		}
		return key
	}

	key := &Key{
		typ:         typ,
		target:      target,
		listener:    listener,
		bindTo:      bindTo,
		callOnce:    once,
		deleteIndex: -1,
	}
	target.AddEventListener(typ, key)
	base.records[typ] = append(base.records[typ], key)
	return key
}

// ListenOnce is Listen with once set.
func ListenOnce(target EventTarget, typ Type, listener Listener, bindTo any) *Key {
	return Listen(target, typ, listener, bindTo, true)
}

// Unlisten removes the record matching (typ, listener, bindTo). No-op if absent.
func Unlisten(target EventTarget, typ Type, listener Listener, bindTo any) {
	if target == nil {
		return
	}
	key := FindListener(target.base().records[typ], listener, bindTo, true)
	if key != nil {
		UnlistenByKey(key)
	}
}

// UnlistenByKey detaches the record and clears it. Safe to call repeatedly
// and with nil.
func UnlistenByKey(key *Key) {
	if key.Detached() {
		return
	}
	target := key.target
	typ := key.typ
	target.RemoveEventListener(typ, key)

	base := target.base()
	records := base.records[typ]
	idx := key.deleteIndex
	if idx < 0 || idx >= len(records) || records[idx] != key {
		idx = slices.Index(records, key)
	}
	if idx >= 0 {
		records = slices.Delete(records, idx, idx+1)
	}
	if len(records) == 0 {
		removeRecords(base, typ)
	} else {
		base.records[typ] = records
	}
	key.clear()
}

// UnlistenAll detaches every record on target.
func UnlistenAll(target EventTarget) {
	if target == nil {
		return
	}
	base := target.base()
	for typ, records := range base.records {
		for _, key := range records {
			target.RemoveEventListener(typ, key)
			key.clear()
		}
		removeRecords(base, typ)
	}
}

// Listeners returns a copy of the records for typ on target, or nil.
func Listeners(target EventTarget, typ Type) []*Key {
	if target == nil {
		return nil
	}
	records := target.base().records[typ]
	if len(records) == 0 {
		return nil
	}
	return slices.Clone(records)
}

// FindListener returns the record in records matching listener and bindTo.
// When setDeleteIndex is true the match position is stored on the record as
// a removal hint.
func FindListener(records []*Key, listener Listener, bindTo any, setDeleteIndex bool) *Key {
	for i, key := range records {
		if sameValue(key.listener, listener) && sameValue(key.bindTo, bindTo) {
			if setDeleteIndex {
				key.deleteIndex = i
			}
			return key
		}
	}
	return nil
}

// Dispatch dispatches evt on target.
func Dispatch(target EventTarget, evt *Event) bool {
	if target == nil {
		return true
	}
	return target.DispatchEvent(evt)
}

func removeRecords(base *Target, typ Type) {
	delete(base.records, typ)
	if len(base.records) == 0 {
		base.records = nil
	}
}
