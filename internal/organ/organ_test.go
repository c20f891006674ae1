package organ

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skan-io/saij/internal/assertion"
	"github.com/skan-io/saij/internal/event"
	"github.com/skan-io/saij/internal/property"
	"github.com/skan-io/saij/internal/uid"
)

var propertyChange = event.Named(event.KindPropertyChange)

func TestNew_RequiresName(t *testing.T) {
	o, err := New("")
	require.Error(t, err)
	assert.Nil(t, o)
	assert.Equal(t, assertion.CodeOrganName, assertion.CodeOf(err))
	assert.ErrorIs(t, err, assertion.ErrInvalidArgument)
}

func TestNew_Identity(t *testing.T) {
	alloc := uid.NewAllocator()

	a, err := New("a", WithAllocator(alloc))
	require.NoError(t, err)
	b, err := New("b", WithAllocator(alloc))
	require.NoError(t, err)
	c, err := New("c", WithUID(99))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), a.UID())
	assert.Equal(t, uint64(2), b.UID())
	assert.Equal(t, uint64(99), c.UID())
}

func TestOrgan_SetName(t *testing.T) {
	o, err := New("a", WithUID(1))
	require.NoError(t, err)

	o.SetName("b")
	o.SetName("")

	assert.Equal(t, "b", o.Name())
}

func TestOrgan_SiblingsAndLayersAreCopies(t *testing.T) {
	o, err := New("a", WithUID(1), WithSiblings("b"), WithLayers(Relay{}))
	require.NoError(t, err)

	s := o.Siblings()
	s[0] = "zzz"
	l := o.Layers()
	l[0] = Copy{}

	assert.Equal(t, []string{"b"}, o.Siblings())
	assert.Equal(t, []Layer{Relay{}}, o.Layers())
}

func TestOrgan_Process(t *testing.T) {
	o, err := New("thermo",
		WithUID(1),
		WithInput(map[string]any{"celsius": 20}),
		WithOutput(map[string]any{"celsius": 0, "fahrenheit": 0}),
		WithLayers(
			Copy{From: "celsius", To: "fahrenheit"},
			Scale{Key: "fahrenheit", Factor: 1.8},
			Offset{Key: "fahrenheit", Delta: 32},
		),
	)
	require.NoError(t, err)

	require.NoError(t, o.Process(context.Background()))

	assert.Equal(t, 20, o.Output().Value("celsius"))
	assert.InDelta(t, 68.0, o.Output().Value("fahrenheit"), 1e-9)
	assert.False(t, o.Input().Has("fahrenheit"), "input is not modified")
}

func TestOrgan_ProcessLayerError(t *testing.T) {
	o, err := New("a",
		WithUID(1),
		WithInput(map[string]any{"n": "text"}),
		WithLayers(Scale{Key: "n", Factor: 2}),
	)
	require.NoError(t, err)

	err = o.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "organ a: layer 0")
	assert.False(t, o.Output().Has("n"))
}

func TestOrgan_ProcessCancelled(t *testing.T) {
	called := false
	o, err := New("a", WithUID(1), WithLayers(LayerFunc(func(context.Context, *property.Bag) error {
		called = true
		return nil
	})))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = o.Process(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, called)
}

func TestOrgan_Reactive(t *testing.T) {
	o, err := New("relay",
		WithUID(1),
		WithInput(map[string]any{"x": 0}),
		WithOutput(map[string]any{"x": 0}),
		WithLayers(Relay{}),
		Reactive(),
	)
	require.NoError(t, err)
	require.True(t, o.IsReactive())

	o.Input().Set("x", 3, false)
	assert.Equal(t, 3, o.Output().Value("x"))

	o.SetReactive(false)
	assert.False(t, o.IsReactive())
	o.Input().Set("x", 4, false)
	assert.Equal(t, 3, o.Output().Value("x"))

	o.SetReactive(true)
	o.SetReactive(true)
	assert.Len(t, o.Input().EventListeners(propertyChange), 1)
}

func TestOrgan_Dispose(t *testing.T) {
	o, err := New("a", WithUID(1), WithInput(map[string]any{"x": 0}), Reactive())
	require.NoError(t, err)

	o.Dispose()

	assert.False(t, o.IsReactive())
	assert.False(t, o.Input().HasAnyListener())
}

func TestLayers(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		layer Layer
		in    map[string]any
		want  map[string]any
	}{
		{"relay", Relay{}, map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"scale int", Scale{Key: "a", Factor: 0.5}, map[string]any{"a": 3}, map[string]any{"a": 1.5}},
		{"scale int64", Scale{Key: "a", Factor: 2}, map[string]any{"a": int64(3)}, map[string]any{"a": 6.0}},
		{"scale missing", Scale{Key: "b", Factor: 2}, map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"offset whole", Offset{Key: "a", Delta: 2}, map[string]any{"a": int64(1)}, map[string]any{"a": int64(3)}},
		{"offset int", Offset{Key: "a", Delta: -1}, map[string]any{"a": 1}, map[string]any{"a": int64(0)}},
		{"offset fraction", Offset{Key: "a", Delta: 0.5}, map[string]any{"a": int64(1)}, map[string]any{"a": 1.5}},
		{"offset float", Offset{Key: "a", Delta: 1}, map[string]any{"a": 1.5}, map[string]any{"a": 2.5}},
		{"copy", Copy{From: "a", To: "b"}, map[string]any{"a": "v"}, map[string]any{"a": "v", "b": "v"}},
		{"copy missing", Copy{From: "z", To: "b"}, map[string]any{"a": "v"}, map[string]any{"a": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := property.New(tt.in)
			require.NoError(t, tt.layer.Pipe(ctx, data))
			assert.Equal(t, tt.want, data.GetAll())
		})
	}
}

func TestOffset_NotANumber(t *testing.T) {
	data := property.New(map[string]any{"a": true})
	assert.Error(t, Offset{Key: "a", Delta: 1}.Pipe(context.Background(), data))
}
