package connection

import "github.com/skan-io/saij/internal/assertion"

// KeyFunc derives a connection id from two endpoints.
type KeyFunc[T Connectable] func(a, b T) string

// Connector builds connections with a shared id scheme and mode.
// It keeps no state about the connections it creates.
type Connector[T Connectable] struct {
	keyFn KeyFunc[T]
	mode  Mode
}

// NewConnector creates a connector. An empty mode means Simplex.
func NewConnector[T Connectable](keyFn KeyFunc[T], mode Mode) (*Connector[T], error) {
	if keyFn == nil {
		return nil, assertion.InvalidArgument(assertion.CodeKeyFunction, "connector requires a key function")
	}
	if mode == "" {
		mode = Simplex
	}
	if !mode.Valid() {
		return nil, assertion.InvalidConnectionMode("unknown connector mode %q", mode)
	}
	return &Connector[T]{keyFn: keyFn, mode: mode}, nil
}

// Connect creates a connection from a to b keyed by keyFn(a, b).
func (c *Connector[T]) Connect(a, b T) (*Connection, error) {
	key := Key{ID: c.keyFn(a, b), Mode: c.mode}
	return New(key, a, b)
}

// Mode returns the mode given to every connection.
func (c *Connector[T]) Mode() Mode {
	return c.mode
}
