// Package event provides the listener registry the wiring layer is built on.
//
// There are two layers:
//
// Target:
// The dispatch mechanism. A Target keeps an ordered listener list per event
// Type and invokes them synchronously. Dispatch is re-entrant: a listener
// may add or remove listeners, or dispatch again on the same target, while a
// dispatch of the same type is in progress. Removals made during a dispatch
// blank the slot and are compacted when the outermost dispatch of that type
// returns.
//
// Registry:
// Listen / Unlisten / UnlistenByKey keep one record (a *Key) per
// (type, listener, bindTo) triple on each target. The record doubles as the
// adapter registered with the Target, so it can be detached in O(1) by key.
// One-shot records detach themselves before their listener runs.
//
// Nothing in this package is safe for concurrent use. Targets are owned by
// the goroutine that drives them (see engine.Engine.Run).
package event
