// Package uid hands out identities for wiring nodes and engine instances.
//
// Node identities are small integers from an Allocator. They order node
// pairs (see engine.PairID) so they must be unique within one engine.
// Instance identities are UUIDv7 strings, sortable by creation time.
package uid

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Allocator is a monotonic identity counter.
//
// Thread-safety: Allocator is safe for concurrent use (atomic operations).
type Allocator struct {
	last atomic.Uint64
}

// NewAllocator creates an allocator whose first Next returns 1.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// NewAllocatorAt creates an allocator whose first Next returns start+1.
func NewAllocatorAt(start uint64) *Allocator {
	a := &Allocator{}
	a.last.Store(start)
	return a
}

// Next returns a fresh identity.
func (a *Allocator) Next() uint64 {
	return a.last.Add(1)
}

// Current returns the last identity handed out (0 if none).
func (a *Allocator) Current() uint64 {
	return a.last.Load()
}

// Reset restarts the sequence. Only for tests that need stable identities.
func (a *Allocator) Reset() {
	a.last.Store(0)
}

var defaultAllocator = NewAllocator()

// Next returns a fresh identity from the package allocator.
func Next() uint64 {
	return defaultAllocator.Next()
}

// Reset restarts the package allocator.
func Reset() {
	defaultAllocator.Reset()
}

// Format renders an identity the way lookups by string expect it.
func Format(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// Parse is the inverse of Format.
func Parse(s string) (uint64, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Generator produces instance identities.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identities.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
// Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identities in order, then repeats
// the last one.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator over ids.
// With no ids it always returns "instance-default".
func NewFixedGenerator(ids ...string) *FixedGenerator {
	if len(ids) == 0 {
		ids = []string{"instance-default"}
	}
	return &FixedGenerator{ids: ids}
}

// Generate returns the next identity.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
