package collection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skan-io/saij/internal/assertion"
	"github.com/skan-io/saij/internal/event"
)

type change struct {
	kind  event.Kind
	elem  string
	index int
}

func watch(c *Collection[string]) *[]change {
	var got []change
	l := event.NewListener(func(evt *event.Event) error {
		p := evt.Payload.(*CollectionEvent[string])
		got = append(got, change{kind: evt.Type.Kind, elem: p.Element, index: p.Index})
		return nil
	})
	c.OnAdd(l)
	c.OnRemove(l)
	return &got
}

func TestNew(t *testing.T) {
	c, err := New([]string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, c.Array())
	item, ok := c.Item(1)
	assert.True(t, ok)
	assert.Equal(t, "b", item)
	_, ok = c.Item(2)
	assert.False(t, ok)
}

func TestNew_UniqueRejectsDuplicates(t *testing.T) {
	_, err := New([]string{"a", "a"}, Unique())
	require.Error(t, err)
	assert.True(t, assertion.IsCode(err, assertion.CodeUnique))
	assert.True(t, errors.Is(err, assertion.ErrInvalidArgument))
}

func TestCollection_PushAndRemoveEvents(t *testing.T) {
	c, err := New[string](nil)
	require.NoError(t, err)
	got := watch(c)

	n, err := c.Push("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, c.InsertAt(0, "b"))
	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("zzz"))

	assert.Equal(t, []change{
		{event.KindAdd, "a", 0},
		{event.KindAdd, "b", 0},
		{event.KindRemove, "a", 1},
	}, *got)
	assert.Equal(t, []string{"b"}, c.Array())
	assert.Equal(t, int64(3), c.Revision())
}

func TestCollection_UniquePush(t *testing.T) {
	c, err := New([]string{"a"}, Unique())
	require.NoError(t, err)
	got := watch(c)

	_, err = c.Push("a")
	assert.True(t, assertion.IsCode(err, assertion.CodeUnique))
	assert.Empty(t, *got)
	assert.Equal(t, 1, c.Len())
}

func TestCollection_SetAt(t *testing.T) {
	c, err := New([]string{"a", "b"}, Unique())
	require.NoError(t, err)
	got := watch(c)

	require.NoError(t, c.SetAt(1, "c"))
	require.NoError(t, c.SetAt(1, "c"), "replacing an element with itself is not a duplicate")
	require.Error(t, c.SetAt(0, "c"))
	require.NoError(t, c.SetAt(5, "d"))
	require.Error(t, c.SetAt(-1, "e"))

	assert.Equal(t, []string{"a", "c", "d"}, c.Array())
	assert.Equal(t, change{event.KindRemove, "b", 1}, (*got)[0])
	assert.Equal(t, change{event.KindAdd, "c", 1}, (*got)[1])
}

func TestCollection_ClearFromBack(t *testing.T) {
	c, err := New([]string{"a", "b", "c"})
	require.NoError(t, err)
	got := watch(c)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, []change{
		{event.KindRemove, "c", 2},
		{event.KindRemove, "b", 1},
		{event.KindRemove, "a", 0},
	}, *got)
}

func TestCollection_ForEachSnapshot(t *testing.T) {
	c, err := New([]string{"a", "b"})
	require.NoError(t, err)

	var seen []string
	c.ForEach(func(elem string, _ int) {
		seen = append(seen, elem)
		c.Remove(elem)
	})

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, 0, c.Len())
}

func TestCollection_ExtendStopsAtDuplicate(t *testing.T) {
	c, err := New[string](nil, Unique())
	require.NoError(t, err)

	err = c.Extend([]string{"a", "b", "a", "c"})
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, c.Array())
}
