package engine

import (
	"github.com/skan-io/saij/internal/connection"
)

// Snapshot is a serializable view of the engine wiring.
type Snapshot struct {
	Engine      string               `json:"engine"`
	Mode        string               `json:"mode"`
	Nodes       []NodeSnapshot       `json:"nodes"`
	Connections []ConnectionSnapshot `json:"connections"`
}

// NodeSnapshot describes one member.
type NodeSnapshot struct {
	Name   string         `json:"name"`
	UID    uint64         `json:"uid"`
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output"`
}

// ConnectionSnapshot describes one connection.
type ConnectionSnapshot struct {
	ID          string `json:"id"`
	Mode        string `json:"mode"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Listeners   int    `json:"listeners"`
	Connected   bool   `json:"connected"`
}

// Snapshot captures nodes in insertion order and connections by id.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Engine:      e.id,
		Mode:        e.Mode().String(),
		Nodes:       make([]NodeSnapshot, 0, e.nodes.Len()),
		Connections: make([]ConnectionSnapshot, 0, len(e.connections)),
	}

	for _, node := range e.nodes.Array() {
		snap.Nodes = append(snap.Nodes, NodeSnapshot{
			Name:   node.Name(),
			UID:    node.UID(),
			Input:  node.Input().GetAll(),
			Output: node.Output().GetAll(),
		})
	}

	for _, conn := range e.Connections() {
		snap.Connections = append(snap.Connections, ConnectionSnapshot{
			ID:          conn.ID(),
			Mode:        conn.Key().Mode.String(),
			Source:      nodeName(conn.Source()),
			Destination: nodeName(conn.Destination()),
			Listeners:   len(conn.Listeners()),
			Connected:   conn.IsConnected(),
		})
	}
	return snap
}

func nodeName(c connection.Connectable) string {
	if n, ok := c.(Node); ok {
		return n.Name()
	}
	return ""
}
