package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fooType = Named("foo")

// recorder returns a listener appending n to *called.
func recorder(called *[]int, n int) *FuncListener {
	return NewListener(func(*Event) error {
		*called = append(*called, n)
		return nil
	})
}

func TestTarget_AddEventListener_Dedup(t *testing.T) {
	var target Target
	var called []int
	l := recorder(&called, 1)

	target.AddEventListener(fooType, l)
	target.AddEventListener(fooType, l)

	assert.Len(t, target.EventListeners(fooType), 1)
	target.DispatchEvent(New(fooType, nil))
	assert.Equal(t, []int{1}, called)
}

func TestTarget_DispatchEvent_Order(t *testing.T) {
	var target Target
	var called []int
	target.AddEventListener(fooType, recorder(&called, 1))
	target.AddEventListener(fooType, recorder(&called, 2))
	target.AddEventListener(fooType, recorder(&called, 3))

	assert.True(t, target.DispatchEvent(New(fooType, nil)))
	assert.Equal(t, []int{1, 2, 3}, called)
}

func TestTarget_DispatchEvent_SetsTarget(t *testing.T) {
	var target Target
	var seen any
	target.AddEventListener(fooType, NewListener(func(evt *Event) error {
		seen = evt.Target
		return nil
	}))

	target.DispatchEvent(New(fooType, nil))
	assert.Same(t, &target, seen)

	other := &Target{}
	evt := New(fooType, nil)
	evt.Target = other
	target.DispatchEvent(evt)
	assert.Same(t, other, seen)
}

func TestTarget_DispatchEvent_NoListeners(t *testing.T) {
	var target Target
	assert.True(t, target.DispatchEvent(New(fooType, nil)))
	assert.False(t, target.HasAnyListener())
}

func TestTarget_DispatchEvent_StopPropagation(t *testing.T) {
	tests := []struct {
		name string
		stop func(evt *Event) error
	}{
		{"sentinel", func(*Event) error { return ErrStopPropagation }},
		{"stop propagation", func(evt *Event) error { evt.StopPropagation(); return nil }},
		{"prevent default", func(evt *Event) error { evt.PreventDefault(); return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var target Target
			var called []int
			target.AddEventListener(fooType, recorder(&called, 1))
			target.AddEventListener(fooType, NewListener(tt.stop))
			target.AddEventListener(fooType, recorder(&called, 3))

			assert.False(t, target.DispatchEvent(New(fooType, nil)))
			assert.Equal(t, []int{1}, called)
		})
	}
}

func TestTarget_DispatchEvent_ListenerErrorContinues(t *testing.T) {
	var target Target
	var called []int
	target.AddEventListener(fooType, NewListener(func(*Event) error {
		return errors.New("boom")
	}))
	target.AddEventListener(fooType, recorder(&called, 2))

	assert.True(t, target.DispatchEvent(New(fooType, nil)))
	assert.Equal(t, []int{2}, called)
}

func TestTarget_RemoveEventListener(t *testing.T) {
	var target Target
	var called []int
	l1 := recorder(&called, 1)
	l2 := recorder(&called, 2)
	target.AddEventListener(fooType, l1)
	target.AddEventListener(fooType, l2)

	target.RemoveEventListener(fooType, l1)
	target.DispatchEvent(New(fooType, nil))
	assert.Equal(t, []int{2}, called)

	target.RemoveEventListener(fooType, l2)
	assert.False(t, target.HasListener(fooType))
	assert.Nil(t, target.listeners[fooType])

	// Absent listener is a no-op.
	target.RemoveEventListener(fooType, l2)
}

func TestTarget_RemoveDuringDispatch(t *testing.T) {
	var target Target
	var called []int
	cb1 := recorder(&called, 1)
	cb2 := recorder(&called, 2)
	cb3 := recorder(&called, 3)
	cbRemove := NewListener(func(*Event) error {
		target.RemoveEventListener(fooType, cb1)
		target.RemoveEventListener(fooType, cb2)
		target.RemoveEventListener(fooType, cb3)
		return nil
	})

	target.AddEventListener(fooType, cb1)
	target.AddEventListener(fooType, cbRemove)
	target.AddEventListener(fooType, cb3)
	target.AddEventListener(fooType, cb2)

	target.DispatchEvent(New(fooType, nil))

	assert.Equal(t, []int{1}, called)
	require.Len(t, target.listeners[fooType], 1)
	assert.Same(t, cbRemove, target.listeners[fooType][0])
}

func TestTarget_CircularRemoveAndRedispatch(t *testing.T) {
	var target Target
	var called []int
	cb1 := recorder(&called, 1)
	cb2 := recorder(&called, 2)
	var cbCircular *FuncListener
	cbCircular = NewListener(func(*Event) error {
		target.RemoveEventListener(fooType, cbCircular)
		target.RemoveEventListener(fooType, cb1)
		target.DispatchEvent(New(fooType, nil))
		target.RemoveEventListener(fooType, cb2)
		target.DispatchEvent(New(fooType, nil))
		return ErrStopPropagation
	})

	target.AddEventListener(fooType, cb2)
	target.AddEventListener(fooType, cbCircular)
	target.AddEventListener(fooType, cb1)

	target.DispatchEvent(New(fooType, nil))

	assert.Equal(t, []int{2, 2}, called)
	assert.Nil(t, target.listeners[fooType])
	assert.Empty(t, target.dispatching)
	assert.Empty(t, target.pendingRemovals)
}

func TestTarget_AddDuringDispatch_NotInvoked(t *testing.T) {
	var target Target
	var called []int
	late := recorder(&called, 9)
	target.AddEventListener(fooType, NewListener(func(*Event) error {
		target.AddEventListener(fooType, late)
		return nil
	}))

	target.DispatchEvent(New(fooType, nil))
	assert.Empty(t, called)

	target.DispatchEvent(New(fooType, nil))
	assert.Equal(t, []int{9}, called)
}

func TestTarget_AddThenRemoveDuringDispatch(t *testing.T) {
	// Appends may move the backing array; a removal afterwards must still
	// suppress the removed listener in the running dispatch.
	var target Target
	var called []int
	victim := recorder(&called, 2)
	target.AddEventListener(fooType, NewListener(func(*Event) error {
		for i := 0; i < 8; i++ {
			target.AddEventListener(fooType, NewListener(func(*Event) error { return nil }))
		}
		target.RemoveEventListener(fooType, victim)
		return nil
	}))
	target.AddEventListener(fooType, victim)

	target.DispatchEvent(New(fooType, nil))
	assert.Empty(t, called)
	assert.Len(t, target.EventListeners(fooType), 9)
}

type sliceListener []int

func (sliceListener) HandleEvent(*Event) error { return nil }

func TestTarget_UncomparableListener(t *testing.T) {
	var target Target
	l := sliceListener{1}

	assert.NotPanics(t, func() {
		target.AddEventListener(fooType, l)
		target.AddEventListener(fooType, l)
		target.RemoveEventListener(fooType, l)
		target.DispatchEvent(New(fooType, nil))
	})
	// Uncomparable values never match, so neither de-dup nor removal applies.
	assert.Len(t, target.EventListeners(fooType), 2)
}

func TestTarget_Dispose(t *testing.T) {
	var target Target
	var called []int
	key := Listen(&target, fooType, recorder(&called, 1), nil, false)
	disposed := 0
	target.AddEventListener(Named(KindDispose), NewListener(func(*Event) error {
		disposed++
		return nil
	}))

	target.Dispose()
	target.Dispose()

	assert.Equal(t, 1, disposed)
	assert.True(t, target.Disposed())
	assert.True(t, key.Detached())
	assert.False(t, target.HasAnyListener())
	target.DispatchEvent(New(fooType, nil))
	assert.Empty(t, called)
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "change:temperature", Change("temperature").String())
	assert.Equal(t, "propertychange", Named(KindPropertyChange).String())
	assert.NotEqual(t, Change("a"), Named(KindChange))
}
