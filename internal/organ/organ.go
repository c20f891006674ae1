// Package organ provides the standard wiring node: a named unit with an
// input bag, an output bag and an ordered stack of layers that turn one into
// the other.
package organ

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/skan-io/saij/internal/assertion"
	"github.com/skan-io/saij/internal/event"
	"github.com/skan-io/saij/internal/property"
	"github.com/skan-io/saij/internal/uid"
)

// Organ is a named connectable node.
//
// When reactive, every input write runs the layers over a copy of the input
// and publishes the result on the output, which in turn drives any outgoing
// connections.
type Organ struct {
	name     string
	id       uint64
	input    *property.Bag
	output   *property.Bag
	layers   []Layer
	siblings []string

	reactKey *event.Key
}

// Option configures an Organ.
type Option func(*config)

type config struct {
	id       uint64
	alloc    *uid.Allocator
	input    map[string]any
	output   map[string]any
	layers   []Layer
	siblings []string
	reactive bool
}

// WithUID fixes the organ identity instead of allocating one.
func WithUID(id uint64) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithAllocator draws the identity from alloc instead of the package allocator.
func WithAllocator(alloc *uid.Allocator) Option {
	return func(c *config) {
		c.alloc = alloc
	}
}

// WithInput sets the initial input properties.
func WithInput(props map[string]any) Option {
	return func(c *config) {
		c.input = props
	}
}

// WithOutput sets the initial output properties.
func WithOutput(props map[string]any) Option {
	return func(c *config) {
		c.output = props
	}
}

// WithLayers sets the layer stack.
func WithLayers(layers ...Layer) Option {
	return func(c *config) {
		c.layers = layers
	}
}

// WithSiblings names the organs this one should be connected to when an
// engine is built with it.
func WithSiblings(names ...string) Option {
	return func(c *config) {
		c.siblings = names
	}
}

// Reactive makes the organ process its input on every change.
func Reactive() Option {
	return func(c *config) {
		c.reactive = true
	}
}

// New creates an organ. The name must be non-empty.
func New(name string, opts ...Option) (*Organ, error) {
	if name == "" {
		return nil, assertion.InvalidArgument(assertion.CodeOrganName, "organ name must be a non-empty string")
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

	o := &Organ{
		name:     name,
		id:       id,
		input:    property.New(cfg.input),
		output:   property.New(cfg.output),
		layers:   slices.Clone(cfg.layers),
		siblings: slices.Clone(cfg.siblings),
	}
	if cfg.reactive {
		o.SetReactive(true)
	}
	return o, nil
}

// Name returns the organ name.
func (o *Organ) Name() string {
	return o.name
}

// SetName renames the organ. Empty names are ignored. Rename before adding
// the organ to an engine; the engine indexes names on add.
func (o *Organ) SetName(name string) {
	if name != "" {
		o.name = name
	}
}

// UID returns the organ identity.
func (o *Organ) UID() uint64 {
	return o.id
}

// Input returns the input bag.
func (o *Organ) Input() *property.Bag {
	return o.input
}

// Output returns the output bag.
func (o *Organ) Output() *property.Bag {
	return o.output
}

// Siblings returns a copy of the sibling names.
func (o *Organ) Siblings() []string {
	return slices.Clone(o.siblings)
}

// SetSiblings replaces the sibling names.
func (o *Organ) SetSiblings(names []string) {
	o.siblings = slices.Clone(names)
}

// Layers returns a copy of the layer stack.
func (o *Organ) Layers() []Layer {
	return slices.Clone(o.layers)
}

// SetLayers replaces the layer stack.
func (o *Organ) SetLayers(layers []Layer) {
	o.layers = slices.Clone(layers)
}

// Pipe runs every layer over data in order.
func (o *Organ) Pipe(ctx context.Context, data *property.Bag) error {
	for i, layer := range o.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := layer.Pipe(ctx, data); err != nil {
			return fmt.Errorf("organ %s: layer %d: %w", o.name, i, err)
		}
	}
	return nil
}

// Process pipes a copy of the input through the layers and writes the
// result to the output. The input is not modified.
func (o *Organ) Process(ctx context.Context) error {
	data := property.New(o.input.GetAll())
	if err := o.Pipe(ctx, data); err != nil {
		return err
	}
	o.output.SetAll(data.GetAll(), false)
	return nil
}

// SetReactive turns input-driven processing on or off.
func (o *Organ) SetReactive(on bool) {
	if on == o.IsReactive() {
		return
	}
	if !on {
		event.UnlistenByKey(o.reactKey)
		o.reactKey = nil
		return
	}
	o.reactKey = o.input.OnPropertyChange(event.NewListener(func(*event.Event) error {
		if err := o.Process(context.Background()); err != nil {
			slog.Error("organ processing failed",
				"organ", o.name,
				"uid", o.id,
				"error", err,
			)
		}
		return nil
	}))
}

// IsReactive reports whether input changes trigger processing.
func (o *Organ) IsReactive() bool {
	return o.reactKey != nil && !o.reactKey.Detached()
}

// Dispose detaches every listener on both bags.
func (o *Organ) Dispose() {
	o.reactKey = nil
	o.input.Dispose()
	o.output.Dispose()
}
