package organ

import (
	"context"
	"fmt"

	"github.com/skan-io/saij/internal/property"
)

// Layer transforms data in place. Layers of an organ run in order over one
// shared bag.
type Layer interface {
	Pipe(ctx context.Context, data *property.Bag) error
}

// Relay passes data through unchanged.
type Relay struct{}

func (Relay) Pipe(context.Context, *property.Bag) error {
	return nil
}

// Scale multiplies a numeric property.
type Scale struct {
	Key    string
	Factor float64
}

func (s Scale) Pipe(_ context.Context, data *property.Bag) error {
	v, ok := data.Get(s.Key)
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int:
		data.Set(s.Key, float64(n)*s.Factor, true)
	case int64:
		data.Set(s.Key, float64(n)*s.Factor, true)
	case float64:
		data.Set(s.Key, n*s.Factor, true)
	default:
		return fmt.Errorf("scale %s: not a number: %T", s.Key, v)
	}
	return nil
}

// Offset adds a constant to a numeric property. Integers stay integers when
// the delta is whole.
type Offset struct {
	Key   string
	Delta float64
}

func (o Offset) Pipe(_ context.Context, data *property.Bag) error {
	v, ok := data.Get(o.Key)
	if !ok {
		return nil
	}
	whole := o.Delta == float64(int64(o.Delta))
	switch n := v.(type) {
	case int:
		if whole {
			data.Set(o.Key, int64(n)+int64(o.Delta), true)
		} else {
			data.Set(o.Key, float64(n)+o.Delta, true)
		}
	case int64:
		if whole {
			data.Set(o.Key, n+int64(o.Delta), true)
		} else {
			data.Set(o.Key, float64(n)+o.Delta, true)
		}
	case float64:
		data.Set(o.Key, n+o.Delta, true)
	default:
		return fmt.Errorf("offset %s: not a number: %T", o.Key, v)
	}
	return nil
}

// Copy writes the value of From under To. Missing From is ignored.
type Copy struct {
	From string
	To   string
}

func (c Copy) Pipe(_ context.Context, data *property.Bag) error {
	if v, ok := data.Get(c.From); ok {
		data.Set(c.To, v, true)
	}
	return nil
}

// LayerFunc adapts a function to Layer.
type LayerFunc func(ctx context.Context, data *property.Bag) error

func (f LayerFunc) Pipe(ctx context.Context, data *property.Bag) error {
	return f(ctx, data)
}
