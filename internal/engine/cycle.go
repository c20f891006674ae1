package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/skan-io/saij/internal/connection"
)

// CycleWarning describes a forwarding cycle between nodes.
//
// Cycles are warnings, not errors: a write travelling around a cycle stops as
// soon as it reaches a bag that already holds the value.
type CycleWarning struct {
	Path    []string `json:"path"`    // ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// ForwardingGraph maps node name to the sorted names of the nodes it writes
// into. An edge exists when a connection forwards from the node's output to
// the other node's input and the two bags share at least one key.
// Every member appears as a key, even without edges.
func (e *Engine) ForwardingGraph() map[string][]string {
	graph := make(map[string][]string, e.nodes.Len())
	for _, node := range e.nodes.Array() {
		graph[node.Name()] = []string{}
	}

	for _, conn := range e.Connections() {
		src, ok1 := conn.Source().(Node)
		dst, ok2 := conn.Destination().(Node)
		if !ok1 || !ok2 || !conn.IsConnected() {
			continue
		}
		addEdge(graph, src, dst)
		if conn.Key().Mode == connection.Duplex {
			addEdge(graph, dst, src)
		}
	}

	for name := range graph {
		slices.Sort(graph[name])
		graph[name] = slices.Compact(graph[name])
	}
	return graph
}

func addEdge(graph map[string][]string, from, to Node) {
	in := to.Input()
	for _, key := range from.Output().Keys() {
		if in.Has(key) {
			graph[from.Name()] = append(graph[from.Name()], to.Name())
			return
		}
	}
}

// AnalyzeCycles reports every forwarding cycle of the current wiring.
//
// The algorithm:
//  1. Build the forwarding graph
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1, or a self-loop, as a warning
//
// Output is deterministic: components are ordered by their first member.
func (e *Engine) AnalyzeCycles() []CycleWarning {
	return analyzeCycles(e.ForwardingGraph())
}

func analyzeCycles(graph map[string][]string) []CycleWarning {
	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || slices.Contains(graph[scc[0]], scc[0]) {
			warnings = append(warnings, sccToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// tarjanSCC finds strongly connected components. Members of each component
// are sorted.
func tarjanSCC(graph map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	names := make([]string, 0, len(graph))
	for name := range graph {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, visited := indices[name]; !visited {
			strongConnect(name)
		}
	}
	return sccs
}

func sccToWarning(scc []string, graph map[string][]string) CycleWarning {
	if len(scc) == 1 {
		return CycleWarning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("node forwards into itself: %s → %s", scc[0], scc[0]),
			Level:   "warning",
		}
	}

	path := cyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("forwarding cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// cyclePath walks edges inside the component from its first member until it
// returns there or runs out of unvisited members.
func cyclePath(scc []string, graph map[string][]string) []string {
	start := scc[0]
	current := start
	path := []string{current}
	visited := map[string]bool{}

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if slices.Contains(scc, neighbor) && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
