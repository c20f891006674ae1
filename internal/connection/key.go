package connection

import (
	"fmt"
	"reflect"

	"github.com/skan-io/saij/internal/assertion"
	"github.com/skan-io/saij/internal/property"
)

// Mode is the direction of a connection.
type Mode string

const (
	// Simplex forwards source output to destination input.
	Simplex Mode = "simplex"
	// Duplex forwards in both directions.
	Duplex Mode = "duplex"
	// RemoteSimplex is reserved for a cross-process transport.
	RemoteSimplex Mode = "remote_simplex"
	// RemoteDuplex is reserved for a cross-process transport.
	RemoteDuplex Mode = "remote_duplex"
)

// Modes lists every recognised mode.
var Modes = []Mode{Simplex, Duplex, RemoteSimplex, RemoteDuplex}

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", assertion.InvalidConnectionMode("unknown connection mode %q: must be one of %v", s, Modes)
	}
	return m, nil
}

// Valid reports whether m is a recognised mode.
func (m Mode) Valid() bool {
	switch m {
	case Simplex, Duplex, RemoteSimplex, RemoteDuplex:
		return true
	}
	return false
}

// Remote reports whether m needs a transport this package does not provide.
func (m Mode) Remote() bool {
	return m == RemoteSimplex || m == RemoteDuplex
}

func (m Mode) String() string {
	return string(m)
}

// Key identifies a connection and selects its mode.
type Key struct {
	ID   string `json:"id"`
	Mode Mode   `json:"mode"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%s)", k.ID, k.Mode)
}

// ValidateKey checks that key has an id and a recognised mode.
func ValidateKey(key Key) error {
	if key == (Key{}) {
		return assertion.InvalidArgument(assertion.CodeConnectionKey, "connection key is required")
	}
	if key.ID == "" {
		return assertion.InvalidArgument(assertion.CodeConnectionID, "connection key has an empty id")
	}
	if !key.Mode.Valid() {
		return assertion.InvalidConnectionMode("connection key %q has unknown mode %q", key.ID, key.Mode)
	}
	return nil
}

// Connectable is anything with an input and an output bag.
type Connectable interface {
	Input() *property.Bag
	Output() *property.Bag
}

// IsConnectable reports whether c can take part in a connection: it must be
// non-nil and expose both bags.
func IsConnectable(c Connectable) bool {
	if c == nil {
		return false
	}
	if v := reflect.ValueOf(c); v.Kind() == reflect.Pointer && v.IsNil() {
		return false
	}
	return c.Input() != nil && c.Output() != nil
}
