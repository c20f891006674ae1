// Package engine keeps a set of named nodes wired together.
//
// The engine owns an ordered node collection and reacts to its add and
// remove events:
//   - a node joining is indexed by uid and by name, then connected to every
//     other member through the shared Connector
//   - a node leaving is unindexed and every connection touching it is removed
//
// Each unordered pair of nodes has at most one connection, keyed by PairID
// ("<larger uid>:<smaller uid>"). Updating a pair always tears down the
// previous connection before building the new one, so no pair ever carries
// two sets of forwarding listeners.
//
// CONCURRENCY:
//
// Nodes, bags and listeners are not safe for concurrent use. The engine
// offers a single-writer loop: Run drains a FIFO of operations on one
// goroutine, and other goroutines submit work with Enqueue or Do. Code that
// drives the engine from a single goroutine may call its methods directly.
//
// Forwarding cycles (A feeds B feeds A) are allowed. They settle because bags
// drop writes of an equal value. AnalyzeCycles reports them for diagnostics.
package engine
