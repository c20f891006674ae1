package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skan-io/saij/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Set       []string
	Mode      string
	Organ     string // optional filters
	Side      string
	Key       string
	Canonical bool // print the golden-file encoding
}

// TraceResult holds the recorded writes.
type TraceResult struct {
	Events []trace.Event `json:"events"`
	Stats  TraceStats    `json:"stats"`
}

// TraceStats summarizes a trace.
type TraceStats struct {
	Total   int `json:"total"`   // events recorded
	Shown   int `json:"shown"`   // events left after filtering
	Inputs  int `json:"inputs"`  // shown input writes
	Outputs int `json:"outputs"` // shown output writes
	Organs  int `json:"organs"`  // distinct organs among shown events
	Writes  int `json:"writes"`  // --set flags applied
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <wiring-dir>",
		Short: "Show how writes travel through a wiring",
		Long: `Apply --set writes and list every property write they caused, in the
order the writes completed.

A write is listed once its listeners ran, so writes it caused downstream
appear before it.

Example:
  saij trace ./wiring --set sensor.output.celsius=100
  saij trace ./wiring --set sensor.output.celsius=100 --organ display
  saij trace ./wiring --set sensor.output.celsius=100 --canonical`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "write organ.side.key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "connection mode (simplex|duplex)")
	cmd.Flags().StringVar(&opts.Organ, "organ", "", "only show writes to this organ")
	cmd.Flags().StringVar(&opts.Side, "side", "", "only show writes to this side (input|output)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "only show writes to this key")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "print the trace as canonical JSON")

	return cmd
}

func runTrace(opts *TraceOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var side trace.Side
	if opts.Side != "" {
		s, err := trace.ParseSide(opts.Side)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --side", err)
		}
		side = s
	}

	assignments, err := ParseAssignments(opts.Set)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --set", err)
	}

	sess, err := openSession(opts.RootOptions, dir, opts.Mode)
	if err != nil {
		return err
	}
	defer sess.close()

	recorder := trace.NewRecorder()
	for _, o := range sess.organs {
		recorder.Attach(o)
	}
	defer recorder.DetachAll()

	applyErr := sess.apply(commandContext(cmd), assignments)

	all := recorder.Events()
	shown := trace.Filter(all, opts.Organ, side, opts.Key)
	formatter.VerboseLog("Recorded %d event(s), showing %d", len(all), len(shown))

	if applyErr != nil {
		_ = formatter.Error(writeErrorCode(applyErr), applyErr.Error(), nil)
		return WrapExitError(ExitFailure, "write failed", applyErr)
	}

	if opts.Canonical {
		data, err := trace.Marshal(shown)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode trace", err)
		}
		fmt.Fprintln(formatter.Writer, string(data))
		return nil
	}

	result := TraceResult{Events: shown, Stats: traceStats(all, shown, len(assignments))}
	if result.Events == nil {
		result.Events = []trace.Event{}
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	if len(shown) == 0 {
		fmt.Fprintln(formatter.Writer, "No events recorded.")
		return nil
	}
	for _, e := range shown {
		fmt.Fprintln(formatter.Writer, e.String())
	}
	fmt.Fprintf(formatter.Writer, "\n%d of %d event(s) across %d organ(s)\n", result.Stats.Shown, result.Stats.Total, result.Stats.Organs)
	return nil
}

func traceStats(all, shown []trace.Event, writes int) TraceStats {
	stats := TraceStats{Total: len(all), Shown: len(shown), Writes: writes}
	organs := make(map[string]struct{})
	for _, e := range shown {
		organs[e.Organ] = struct{}{}
		if e.Side == trace.SideInput {
			stats.Inputs++
		} else {
			stats.Outputs++
		}
	}
	stats.Organs = len(organs)
	return stats
}
