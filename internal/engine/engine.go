package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/skan-io/saij/internal/assertion"
	"github.com/skan-io/saij/internal/collection"
	"github.com/skan-io/saij/internal/connection"
	"github.com/skan-io/saij/internal/event"
	"github.com/skan-io/saij/internal/uid"
)

// Node is a connectable with a stable identity and a unique name.
// Implementations must be pointer types (nodes are compared by identity).
type Node interface {
	connection.Connectable
	UID() uint64
	Name() string
}

// SiblingNode is a Node that names the nodes it should feed when the engine
// is built with it.
type SiblingNode interface {
	Node
	Siblings() []string
}

// PairID returns the connection id for two nodes: "<larger uid>:<smaller uid>".
// It does not depend on argument order.
func PairID(a, b Node) string {
	return pairID(a.UID(), b.UID())
}

func pairID(a, b uint64) string {
	if a > b {
		return uid.Format(a) + ":" + uid.Format(b)
	}
	return uid.Format(b) + ":" + uid.Format(a)
}

// Engine keeps nodes indexed and pairwise connected.
//
// Thread-safety model:
//   - Enqueue() / Do(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - every other method: only from the goroutine that owns the nodes
//     (the Run goroutine when the loop is in use)
type Engine struct {
	id          string
	nodes       *collection.Collection[Node]
	byUID       map[uint64]Node
	byName      map[string]Node
	connections map[string]*connection.Connection
	connector   *connection.Connector[Node]
	logger      *slog.Logger
	queue       *opQueue

	// handlerErr collects errors raised by collection handlers during the
	// current mutation.
	handlerErr error
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*engineConfig)

type engineConfig struct {
	nodes  []Node
	mode   connection.Mode
	logger *slog.Logger
	idGen  uid.Generator
}

// WithNodes sets the initial nodes. Later nodes whose name is already taken
// are skipped. Initial nodes are connected along their declared siblings,
// not to every other node.
func WithNodes(nodes ...Node) EngineOption {
	return func(c *engineConfig) {
		c.nodes = append(c.nodes, nodes...)
	}
}

// WithMode sets the mode of every connection the engine creates.
// Default: connection.Simplex.
func WithMode(mode connection.Mode) EngineOption {
	return func(c *engineConfig) {
		c.mode = mode
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithIDGenerator sets the generator for the engine instance id.
// Default: uid.UUIDv7Generator.
func WithIDGenerator(gen uid.Generator) EngineOption {
	return func(c *engineConfig) {
		c.idGen = gen
	}
}

// New creates an engine.
//
// Remote modes are rejected here because no connection could ever be built.
func New(opts ...EngineOption) (*Engine, error) {
	cfg := engineConfig{mode: connection.Simplex}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.idGen == nil {
		cfg.idGen = uid.UUIDv7Generator{}
	}
	if cfg.mode.Remote() {
		return nil, assertion.InvalidConnectionMode("engine cannot connect nodes in mode %q", cfg.mode)
	}

	connector, err := connection.NewConnector(PairID, cfg.mode)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	nodes, err := collection.New[Node](nil)
	if err != nil {
		return nil, fmt.Errorf("create node collection: %w", err)
	}

	e := &Engine{
		id:          cfg.idGen.Generate(),
		nodes:       nodes,
		byUID:       make(map[uint64]Node),
		byName:      make(map[string]Node),
		connections: make(map[string]*connection.Connection),
		connector:   connector,
		logger:      cfg.logger,
		queue:       newOpQueue(),
	}

	if err := e.initialise(cfg.nodes); err != nil {
		return nil, err
	}
	e.initialiseHandlers()

	e.logger.Debug("engine created",
		"engine", e.id,
		"mode", connector.Mode(),
		"nodes", e.nodes.Len(),
		"connections", len(e.connections),
	)
	return e, nil
}

// initialise indexes the initial nodes and wires them along their siblings.
func (e *Engine) initialise(nodes []Node) error {
	for _, node := range nodes {
		if err := checkNode(node); err != nil {
			return err
		}
		if _, taken := e.byName[node.Name()]; taken {
			e.logger.Warn("skipping node with duplicate name", "name", node.Name(), "uid", node.UID())
			continue
		}
		if _, taken := e.byUID[node.UID()]; taken {
			e.logger.Warn("skipping node with duplicate uid", "name", node.Name(), "uid", node.UID())
			continue
		}
		if _, err := e.nodes.Push(node); err != nil {
			return err
		}
		e.index(node)
	}

	var errs []error
	for _, node := range e.nodes.Array() {
		sn, ok := node.(SiblingNode)
		if !ok {
			continue
		}
		for _, name := range sn.Siblings() {
			sibling, found := e.FindNode(name)
			if !found {
				e.logger.Warn("sibling not found", "node", node.Name(), "sibling", name)
				continue
			}
			if sibling == node {
				continue
			}
			if err := e.UpdateConnection(node, sibling); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// initialiseHandlers reacts to membership changes of the node collection.
func (e *Engine) initialiseHandlers() {
	e.nodes.OnAdd(event.NewListener(func(evt *event.Event) error {
		node := evt.Payload.(*collection.CollectionEvent[Node]).Element
		e.index(node)
		for _, other := range e.nodes.Array() {
			if other == node {
				continue
			}
			if err := e.UpdateConnection(node, other); err != nil {
				e.handlerErr = errors.Join(e.handlerErr, err)
			}
		}
		return nil
	}))

	e.nodes.OnRemove(event.NewListener(func(evt *event.Event) error {
		node := evt.Payload.(*collection.CollectionEvent[Node]).Element
		e.unindex(node)
		for _, other := range e.nodes.Array() {
			e.RemoveConnectionBetween(node, other)
		}
		return nil
	}))
}

func (e *Engine) index(node Node) {
	e.byUID[node.UID()] = node
	e.byName[node.Name()] = node
}

func (e *Engine) unindex(node Node) {
	if e.byUID[node.UID()] == node {
		delete(e.byUID, node.UID())
	}
	if e.byName[node.Name()] == node {
		delete(e.byName, node.Name())
	}
}

// checkNode rejects nodes the engine cannot index or connect.
func checkNode(node Node) error {
	if !connection.IsConnectable(node) {
		return assertion.NotConnectable("node has no input/output")
	}
	if !reflect.ValueOf(node).Comparable() {
		return assertion.InvalidArgument(assertion.CodeConnectable, "node %q is not comparable; use a pointer type", node.Name())
	}
	return nil
}

// ID returns the engine instance id.
func (e *Engine) ID() string {
	return e.id
}

// Mode returns the mode of connections the engine creates.
func (e *Engine) Mode() connection.Mode {
	return e.connector.Mode()
}

// AddNode adds node and connects it to every other member.
// A node whose name or uid is already taken is ignored.
func (e *Engine) AddNode(node Node) error {
	if err := checkNode(node); err != nil {
		return err
	}
	if _, taken := e.byName[node.Name()]; taken {
		e.logger.Debug("node name already taken", "name", node.Name())
		return nil
	}
	if member, taken := e.byUID[node.UID()]; taken {
		e.logger.Debug("node uid already taken", "name", node.Name(), "uid", node.UID(), "member", member.Name())
		return nil
	}

	e.handlerErr = nil
	if _, err := e.nodes.Push(node); err != nil {
		return err
	}
	err := e.handlerErr
	e.handlerErr = nil

	e.logger.Info("node added",
		"engine", e.id,
		"name", node.Name(),
		"uid", node.UID(),
		"connections", len(e.connections),
	)
	return err
}

// RemoveNode removes node and every connection touching it.
// Non-members are ignored.
func (e *Engine) RemoveNode(node Node) {
	if node == nil || !e.isMember(node) {
		return
	}
	e.nodes.Remove(node)
	e.logger.Info("node removed",
		"engine", e.id,
		"name", node.Name(),
		"uid", node.UID(),
		"connections", len(e.connections),
	)
}

// RemoveNodeByUID removes the member with the given uid, if any.
func (e *Engine) RemoveNodeByUID(id uint64) {
	if node, ok := e.byUID[id]; ok {
		e.RemoveNode(node)
	}
}

// RemoveNodeByName removes the member with the given name, if any.
func (e *Engine) RemoveNodeByName(name string) {
	if node, ok := e.byName[name]; ok {
		e.RemoveNode(node)
	}
}

// FindNode looks identifier up as a decimal uid first, then as a name.
func (e *Engine) FindNode(identifier string) (Node, bool) {
	if id, ok := uid.Parse(identifier); ok {
		if node, found := e.byUID[id]; found {
			return node, true
		}
	}
	node, found := e.byName[identifier]
	return node, found
}

// FindNodeByUID looks a member up by uid.
func (e *Engine) FindNodeByUID(id uint64) (Node, bool) {
	node, found := e.byUID[id]
	return node, found
}

// Nodes returns the members in insertion order.
func (e *Engine) Nodes() []Node {
	return e.nodes.Array()
}

// SetNodes replaces the members. Every current node is removed (with its
// connections), then nodes are added in order, skipping taken names.
func (e *Engine) SetNodes(nodes []Node) error {
	e.nodes.Clear()
	var errs []error
	for _, node := range nodes {
		if err := e.AddNode(node); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) isMember(node Node) bool {
	member, ok := e.byUID[node.UID()]
	return ok && member == node
}

// UpdateConnection (re)builds the connection between a and b with a as the
// source. Pairs with a non-member are ignored.
func (e *Engine) UpdateConnection(a, b Node) error {
	if a == nil || b == nil || !e.isMember(a) || !e.isMember(b) {
		return nil
	}

	id := PairID(a, b)
	if existing, ok := e.connections[id]; ok {
		existing.Disconnect()
		delete(e.connections, id)
	}

	conn, err := e.connector.Connect(a, b)
	if err != nil {
		return fmt.Errorf("connect %s to %s: %w", a.Name(), b.Name(), err)
	}
	e.connections[id] = conn

	e.logger.Debug("connection updated",
		"engine", e.id,
		"id", id,
		"source", a.Name(),
		"destination", b.Name(),
		"listeners", len(conn.Listeners()),
	)
	return nil
}

// Connect connects two members by name or uid, with the first as source.
func (e *Engine) Connect(source, destination string) error {
	a, ok := e.FindNode(source)
	if !ok {
		return NewUnknownNodeError(source)
	}
	b, ok := e.FindNode(destination)
	if !ok {
		return NewUnknownNodeError(destination)
	}
	return e.UpdateConnection(a, b)
}

// Connections returns the connections ordered by id.
func (e *Engine) Connections() []*connection.Connection {
	ids := make([]string, 0, len(e.connections))
	for id := range e.connections {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]*connection.Connection, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.connections[id])
	}
	return out
}

// ConnectionByKey returns the connection with the given id.
func (e *Engine) ConnectionByKey(id string) (*connection.Connection, bool) {
	conn, ok := e.connections[id]
	return conn, ok
}

// ConnectionBetween returns the connection of a pair.
func (e *Engine) ConnectionBetween(a, b Node) (*connection.Connection, bool) {
	return e.ConnectionByKey(PairID(a, b))
}

// RemoveConnection disconnects conn and forgets it.
func (e *Engine) RemoveConnection(conn *connection.Connection) {
	if conn == nil {
		return
	}
	if current, ok := e.connections[conn.ID()]; ok && current == conn {
		e.RemoveConnectionByKey(conn.ID())
		return
	}
	conn.Disconnect()
}

// RemoveConnectionByKey disconnects and forgets the connection with id.
// Unknown ids are ignored.
func (e *Engine) RemoveConnectionByKey(id string) {
	conn, ok := e.connections[id]
	if !ok {
		return
	}
	conn.Disconnect()
	delete(e.connections, id)
	e.logger.Debug("connection removed", "engine", e.id, "id", id)
}

// RemoveConnectionBetween removes the connection of a pair, if any.
func (e *Engine) RemoveConnectionBetween(a, b Node) {
	if a == nil || b == nil {
		return
	}
	e.RemoveConnectionByKey(PairID(a, b))
}

// Dispose removes every node and connection.
func (e *Engine) Dispose() {
	e.nodes.Clear()
	for id := range e.connections {
		e.RemoveConnectionByKey(id)
	}
	e.nodes.Dispose()
}
