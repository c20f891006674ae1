// Package connection forwards property changes between two connectables.
//
// A Connection installs one change listener per property name that exists
// on the sending side's output and on the receiving side's input. When the
// output value changes, the listener writes the current value into the
// peer's input. Names are matched exactly and the match is taken when the
// connection is established.
package connection

import (
	"log/slog"
	"slices"

	"github.com/skan-io/saij/internal/assertion"
	"github.com/skan-io/saij/internal/event"
)

// Connection is a live forwarding link between a source and a destination.
//
// Not safe for concurrent use. Every method must run on the goroutine that
// owns the endpoints' bags.
type Connection struct {
	key         Key
	source      Connectable
	destination Connectable

	listeners     []*event.Key
	hasConnection bool
}

// New validates the endpoints and the key, then connects.
func New(key Key, source, destination Connectable) (*Connection, error) {
	if !IsConnectable(source) {
		return nil, assertion.NotConnectable("connection source has no input/output")
	}
	if !IsConnectable(destination) {
		return nil, assertion.NotConnectable("connection destination has no input/output")
	}

	c := &Connection{
		source:      source,
		destination: destination,
	}
	if err := c.SetKey(key); err != nil {
		return nil, err
	}
	if _, err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect installs the forwarding listeners and returns them.
//
// Calling Connect on a connected Connection returns the existing listeners
// without installing new ones.
func (c *Connection) Connect() ([]*event.Key, error) {
	if c.hasConnection {
		return c.Listeners(), nil
	}

	var listeners []*event.Key
	switch c.key.Mode {
	case Simplex:
		listeners = forward(c.source, c.destination)
	case Duplex:
		listeners = forward(c.source, c.destination)
		listeners = append(listeners, forward(c.destination, c.source)...)
	default:
		return nil, assertion.InvalidConnectionMode("cannot connect %q in mode %q", c.key.ID, c.key.Mode)
	}

	c.listeners = listeners
	c.hasConnection = true

	slog.Debug("connection established",
		"id", c.key.ID,
		"mode", c.key.Mode,
		"listeners", len(listeners),
	)
	return c.Listeners(), nil
}

// forward wires every output key of from that is also an input key of to.
func forward(from, to Connectable) []*event.Key {
	out, in := from.Output(), to.Input()

	var keys []*event.Key
	for _, name := range out.Keys() {
		if !in.Has(name) {
			continue
		}
		keys = append(keys, out.OnChange(name, event.NewListener(func(*event.Event) error {
			in.Set(name, out.Value(name), false)
			return nil
		})))
	}
	return keys
}

// Disconnect removes every listener. No-op when not connected.
func (c *Connection) Disconnect() {
	if !c.hasConnection && len(c.listeners) == 0 {
		return
	}
	event.UnByKey(c.listeners...)
	c.listeners = nil
	c.hasConnection = false

	slog.Debug("connection removed", "id", c.key.ID)
}

// SetKey replaces the key.
//
// If the connection is active and the mode changes, it is re-established in
// the new mode. A mode that cannot be connected is rejected before anything
// is torn down.
func (c *Connection) SetKey(key Key) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if !c.hasConnection || key.Mode == c.key.Mode {
		c.key = key
		return nil
	}
	if key.Mode != Simplex && key.Mode != Duplex {
		return assertion.InvalidConnectionMode("cannot reconnect %q in mode %q", key.ID, key.Mode)
	}

	c.Disconnect()
	c.key = key
	_, err := c.Connect()
	return err
}

// Key returns a copy of the key.
func (c *Connection) Key() Key {
	return c.key
}

// ID returns the key id.
func (c *Connection) ID() string {
	return c.key.ID
}

// Listeners returns a copy of the installed listener records.
func (c *Connection) Listeners() []*event.Key {
	return slices.Clone(c.listeners)
}

// IsConnected reports whether Connect succeeded and Disconnect has not run.
func (c *Connection) IsConnected() bool {
	return c.hasConnection
}

// IsListening reports whether any forwarding listener is installed.
func (c *Connection) IsListening() bool {
	return len(c.listeners) > 0
}

// Source returns the first endpoint.
func (c *Connection) Source() Connectable {
	return c.source
}

// Destination returns the second endpoint.
func (c *Connection) Destination() Connectable {
	return c.destination
}
