package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skan-io/saij/internal/engine"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Mode   string
	Strict bool // forwarding cycles fail the command
}

// GraphResult describes how a wiring forwards writes.
type GraphResult struct {
	Mode        string                      `json:"mode"`
	Connections []engine.ConnectionSnapshot `json:"connections"`
	Edges       map[string][]string         `json:"edges"`
	Cycles      []engine.CycleWarning       `json:"cycles"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph <wiring-dir>",
		Short: "Show connections and forwarding cycles",
		Long: `Build a wiring and print its connections, the organs each organ writes
into and every forwarding cycle.

Cycles are warnings: a write stops travelling once it reaches a bag that
already holds the value. Use --strict to fail on them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "", "connection mode (simplex|duplex)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when the wiring has forwarding cycles")

	return cmd
}

func runGraph(opts *GraphOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sess, err := openSession(opts.RootOptions, dir, opts.Mode)
	if err != nil {
		return err
	}
	defer sess.close()

	snap := sess.engine.Snapshot()
	result := GraphResult{
		Mode:        snap.Mode,
		Connections: snap.Connections,
		Edges:       sess.engine.ForwardingGraph(),
		Cycles:      sess.engine.AnalyzeCycles(),
	}

	for _, c := range result.Cycles {
		opts.Logger().Warn("forwarding cycle", "path", strings.Join(c.Path, " -> "))
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeGraphText(formatter, result)
	}

	if opts.Strict && len(result.Cycles) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d forwarding cycle(s)", len(result.Cycles)))
	}
	return nil
}

func writeGraphText(f *OutputFormatter, r GraphResult) {
	f.Printf("Mode: %s\n", r.Mode)
	f.Printf("Connections: %d\n", len(r.Connections))
	for _, c := range r.Connections {
		f.Printf("  %s %s -> %s\n", c.ID, c.Source, c.Destination)
	}

	f.Printf("Forwarding:\n")
	names := make([]string, 0, len(r.Edges))
	for name := range r.Edges {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		targets := r.Edges[name]
		if len(targets) == 0 {
			f.Printf("  %s\n", name)
			continue
		}
		f.Printf("  %s -> %s\n", name, strings.Join(targets, ", "))
	}

	if len(r.Cycles) == 0 {
		f.Printf("✓ No forwarding cycles\n")
		return
	}
	for _, c := range r.Cycles {
		f.Printf("⚠ %s\n", c.Message)
	}
}
