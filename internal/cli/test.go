package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skan-io/saij/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Golden string // golden directory, overrides harness.golden_dir
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <specs-dir> <scenarios-dir>",
		Short: "Run wiring scenarios",
		Long: `Run scenario files against CUE wirings.

Each scenario drives an engine with steps, then checks the recorded trace
and the final bag contents. Relative spec paths in a scenario resolve
against <specs-dir>. When a golden file exists for a scenario its trace
must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  saij test ./specs ./scenarios
  saij test ./specs ./scenarios --filter "thermo_*"
  saij test ./specs ./scenarios --update
  saij test ./specs ./scenarios --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory (default: harness.golden_dir)")

	return cmd
}

func runTests(opts *TestOptions, specsDir, scenariosDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(specsDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("specs directory not found: %s", specsDir))
	}
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	suiteOpts := harness.SuiteOptions{
		BasePath:  specsDir,
		GoldenDir: goldenDir(opts, scenariosDir),
		Update:    opts.Update,
		Filter:    opts.Filter,
	}
	if opts.Verbose {
		suiteOpts.Run = append(suiteOpts.Run, harness.WithLogger(opts.Logger()))
	}
	formatter.VerboseLog("Golden files in %s", suiteOpts.GoldenDir)

	suite, err := harness.RunSuite(commandContext(cmd), scenariosDir, suiteOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if formatter.IsJSON() {
		if suite.Failed > 0 {
			if err := formatter.Failure(suite, "E401", fmt.Sprintf("%d scenario(s) failed", suite.Failed)); err != nil {
				return err
			}
		} else if err := formatter.Success(suite); err != nil {
			return err
		}
	} else {
		writeSuiteText(formatter, suite)
	}

	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", suite.Failed, suite.Total))
	}
	return nil
}

// goldenDir picks --golden, then harness.golden_dir. A relative path resolves
// against the scenarios directory.
func goldenDir(opts *TestOptions, scenariosDir string) string {
	dir := opts.Golden
	if dir == "" {
		dir = opts.Settings().Harness.GoldenDir
	}
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(scenariosDir, dir)
}

func writeSuiteText(f *OutputFormatter, suite *harness.SuiteResult) {
	if suite.Total == 0 {
		f.Printf("No scenarios found.\n")
		return
	}

	for _, s := range suite.Scenarios {
		if !s.Pass {
			f.Printf("✗ %s\n", s.Name)
			for _, e := range s.Errors {
				f.Printf("  %s\n", e)
			}
			continue
		}
		switch s.Golden {
		case harness.GoldenUpdated:
			f.Printf("✓ %s (golden updated)\n", s.Name)
		case harness.GoldenMatch:
			f.Printf("✓ %s (%d events, golden match)\n", s.Name, s.Events)
		default:
			f.Printf("✓ %s (%d events)\n", s.Name, s.Events)
		}
	}

	f.Printf("\n%d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
}
