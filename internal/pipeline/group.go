// Package pipeline chains processing items into a single connectable node.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/skan-io/saij/internal/assertion"
	"github.com/skan-io/saij/internal/collection"
	"github.com/skan-io/saij/internal/connection"
	"github.com/skan-io/saij/internal/event"
	"github.com/skan-io/saij/internal/property"
	"github.com/skan-io/saij/internal/uid"
)

// Item is a connectable that can transform a bag in place.
// organ.Organ and Group both qualify. Items must be pointer types.
type Item interface {
	connection.Connectable
	Pipe(ctx context.Context, data *property.Bag) error
}

// Group runs its items in order over one bag.
//
// The group exposes two junction bags. The input junction holds the union of
// the item inputs, the output junction the union of the item outputs. Any
// write to the input junction injects a copy of it through the items and
// merges the result into the output junction.
type Group struct {
	name   string
	id     uint64
	items  *collection.Collection[Item]
	input  *property.Bag
	output *property.Bag

	keys []*event.Key
}

// Option configures a Group.
type Option func(*config)

type config struct {
	id    uint64
	alloc *uid.Allocator
}

// WithUID fixes the group identity.
func WithUID(id uint64) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithAllocator draws the identity from alloc.
func WithAllocator(alloc *uid.Allocator) Option {
	return func(c *config) {
		c.alloc = alloc
	}
}

// New creates a group over items. Items must be unique and the name
// non-empty.
func New(name string, items []Item, opts ...Option) (*Group, error) {
	if name == "" {
		return nil, assertion.InvalidArgument(assertion.CodeOrganName, "group name must be a non-empty string")
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	id := cfg.id
	if id == 0 {
		if cfg.alloc != nil {
			id = cfg.alloc.Next()
		} else {
			id = uid.Next()
		}
	}

	for i, item := range items {
		if !connection.IsConnectable(item) {
			return nil, assertion.NotConnectable("group %s: item %d has no input/output", name, i)
		}
		if !reflect.ValueOf(item).Comparable() {
			return nil, assertion.InvalidArgument(assertion.CodeUnique, "group %s: item %d is not comparable", name, i)
		}
	}
	coll, err := collection.New(items, collection.Unique())
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", name, err)
	}

	g := &Group{
		name:   name,
		id:     id,
		items:  coll,
		input:  property.New(nil),
		output: property.New(nil),
	}
	for _, item := range coll.Array() {
		g.junction(item)
	}

	g.keys = append(g.keys,
		g.input.OnPropertyChange(event.NewListener(func(*event.Event) error {
			if err := g.Inject(context.Background()); err != nil {
				slog.Error("group injection failed",
					"group", g.name,
					"uid", g.id,
					"error", err,
				)
			}
			return nil
		})),
		coll.OnAdd(event.NewListener(func(evt *event.Event) error {
			g.junction(evt.Payload.(*collection.CollectionEvent[Item]).Element)
			return nil
		})),
	)
	return g, nil
}

// junction adds the keys of item's bags that the junctions lack, silently.
func (g *Group) junction(item Item) {
	merge(g.input, item.Input())
	merge(g.output, item.Output())
}

func merge(dst, src *property.Bag) {
	for _, key := range src.Keys() {
		if !dst.Has(key) {
			dst.Set(key, src.Value(key), true)
		}
	}
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// UID returns the group identity.
func (g *Group) UID() uint64 { return g.id }

// Input returns the input junction.
func (g *Group) Input() *property.Bag { return g.input }

// Output returns the output junction.
func (g *Group) Output() *property.Bag { return g.output }

// Items returns the live item collection. Items pushed later extend the
// junctions with their keys; removed items leave their keys behind.
func (g *Group) Items() *collection.Collection[Item] { return g.items }

// Pipe runs every item over data in order.
func (g *Group) Pipe(ctx context.Context, data *property.Bag) error {
	for i, item := range g.items.Array() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := item.Pipe(ctx, data); err != nil {
			return fmt.Errorf("group %s: item %d: %w", g.name, i, err)
		}
	}
	return nil
}

// Inject pipes a copy of the input junction through the items and merges
// the result into the output junction. The input junction is not modified.
func (g *Group) Inject(ctx context.Context) error {
	data := property.New(g.input.GetAll())
	if err := g.Pipe(ctx, data); err != nil {
		return err
	}
	g.output.SetAll(data.GetAll(), false)
	return nil
}

// Dispose detaches the group from its junctions and items.
func (g *Group) Dispose() {
	event.UnByKey(g.keys...)
	g.keys = nil
	g.input.Dispose()
	g.output.Dispose()
}
