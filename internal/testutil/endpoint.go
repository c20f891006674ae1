// Package testutil holds small helpers shared by package tests.
package testutil

import (
	"github.com/skan-io/saij/internal/event"
	"github.com/skan-io/saij/internal/property"
)

// Endpoint is a minimal connectable with a name and an identity.
// It satisfies connection.Connectable and engine.Node.
type Endpoint struct {
	name     string
	id       uint64
	in       *property.Bag
	out      *property.Bag
	siblings []string
}

// NewEndpoint creates an endpoint with the given identity and bag contents.
func NewEndpoint(name string, id uint64, in, out map[string]any) *Endpoint {
	return &Endpoint{
		name: name,
		id:   id,
		in:   property.New(in),
		out:  property.New(out),
	}
}

// WithSiblings sets the names the endpoint asks to be connected to.
func (e *Endpoint) WithSiblings(names ...string) *Endpoint {
	e.siblings = names
	return e
}

func (e *Endpoint) Name() string          { return e.name }
func (e *Endpoint) UID() uint64           { return e.id }
func (e *Endpoint) Input() *property.Bag  { return e.in }
func (e *Endpoint) Output() *property.Bag { return e.out }
func (e *Endpoint) Siblings() []string    { return e.siblings }

// Bare is a connectable whose bags can be nil, for negative tests.
type Bare struct {
	In  *property.Bag
	Out *property.Bag
}

func (b *Bare) Input() *property.Bag  { return b.In }
func (b *Bare) Output() *property.Bag { return b.Out }

// Echo returns a listener that copies every changed input key of e to its
// output, turning the endpoint into a pass-through.
func Echo(e *Endpoint) event.Listener {
	return event.NewListener(func(evt *event.Event) error {
		if ce, ok := evt.Payload.(*property.ChangeEvent); ok {
			e.out.Set(ce.Key, e.in.Value(ce.Key), false)
		}
		return nil
	})
}
