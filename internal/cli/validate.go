package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skan-io/saij/internal/wiring"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Organs int                      `json:"organs"`
	Mode   string                   `json:"mode,omitempty"`
	Errors []wiring.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <wiring-dir>",
		Short: "Validate a wiring without building it",
		Long: `Validate the CUE wiring in a directory.

Checks organ declarations, sibling references, layer arguments and the
connection mode. Every problem is reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := wiring.LoadDir(dir)
	if err != nil {
		var loadErr *wiring.LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Error())
		}
		return outputValidateError(formatter, wiring.ErrCodeGeneric, err.Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)
	for _, o := range loaded.Spec.Organs {
		formatter.VerboseLog("Validating organ: %s", o.Name)
	}

	if errs := wiring.Validate(loaded.Spec); len(errs) > 0 {
		return outputValidationErrors(formatter, loaded.Spec, errs)
	}

	result := ValidationResult{Valid: true, Organs: len(loaded.Spec.Organs), Mode: loaded.Spec.Mode}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Wiring valid (%d organs)\n", result.Organs)
	return nil
}

func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, message)
}

func outputValidationErrors(formatter *OutputFormatter, spec *wiring.Spec, errs []wiring.ValidationError) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		result := ValidationResult{Organs: len(spec.Organs), Mode: spec.Mode, Errors: errs}
		if err := formatter.Failure(result, errs[0].Code, errs[0].Message); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", e.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", e.Code, e.Field, e.Message)
	}
	return exitErr
}
