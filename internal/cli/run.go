package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/skan-io/saij/internal/engine"
	"github.com/skan-io/saij/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Set  []string // organ.side.key=value, applied in order
	Mode string   // overrides the wiring mode
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <wiring-dir>",
		Short: "Build a wiring, apply writes and print the final state",
		Long: `Build the engine for a wiring, apply --set writes through its run loop
and print every organ's input and output bags once the writes settled.

A value is read as YAML, so null writes a nil value. An empty value unsets
the key.

Example:
  saij run ./wiring --set sensor.output.celsius=100
  saij run ./wiring --set sensor.out.celsius=20 --mode simplex --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWiring(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "write organ.side.key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "connection mode (simplex|duplex)")

	return cmd
}

func runWiring(opts *RunOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	assignments, err := ParseAssignments(opts.Set)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --set", err)
	}

	sess, err := openSession(opts.RootOptions, dir, opts.Mode)
	if err != nil {
		return err
	}
	defer sess.close()
	formatter.VerboseLog("Built %d organ(s) from %d CUE file(s), mode %s", len(sess.organs), sess.load.FileCount, sess.engine.Mode())

	if err := sess.apply(commandContext(cmd), assignments); err != nil {
		_ = formatter.Error(writeErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "write failed", err)
	}

	snap := sess.engine.Snapshot()
	if formatter.IsJSON() {
		return formatter.Success(snap)
	}
	return writeSnapshotText(formatter.Writer, snap)
}

func writeSnapshotText(w io.Writer, snap engine.Snapshot) error {
	fmt.Fprintf(w, "Engine %s (%s)\n", snap.Engine, snap.Mode)
	for _, n := range snap.Nodes {
		in, err := trace.MarshalCanonical(n.Input)
		if err != nil {
			return err
		}
		out, err := trace.MarshalCanonical(n.Output)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s [%d]\n", n.Name, n.UID)
		fmt.Fprintf(w, "    input:  %s\n", in)
		fmt.Fprintf(w, "    output: %s\n", out)
	}
	fmt.Fprintf(w, "Connections: %d\n", len(snap.Connections))
	for _, c := range snap.Connections {
		fmt.Fprintf(w, "  %s %s -> %s (%s)\n", c.ID, c.Source, c.Destination, c.Mode)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
