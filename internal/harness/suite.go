package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Golden comparison outcomes reported in ScenarioResult.Golden.
const (
	GoldenNone     = ""
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
	GoldenMissing  = "missing"
)

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// BasePath resolves relative spec paths. Empty: each scenario's directory.
	BasePath string

	// GoldenDir holds <scenario name>.golden files. Empty disables golden
	// comparison.
	GoldenDir string

	// Update rewrites golden files instead of comparing them.
	Update bool

	// Filter is a glob matched against scenario file names without extension.
	Filter string

	Run []Option
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"`
	Events int      `json:"events"`
	Errors []string `json:"errors,omitempty"`
}

// SuiteResult summarizes a scenario directory.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// FindScenarios walks dir and returns the .yaml and .yml files whose base
// name matches filter, sorted. The golden directory is not descended into.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// RunSuite runs every scenario in dir. Load and execution failures are
// reported per scenario; only an unreadable directory returns an error.
func RunSuite(ctx context.Context, dir string, opts SuiteOptions) (*SuiteResult, error) {
	files, err := FindScenarios(dir, opts.Filter)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, path := range files {
		res := RunScenarioFile(ctx, path, opts)
		suite.Scenarios = append(suite.Scenarios, res)
		if res.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
	}
	return suite, nil
}

// RunScenarioFile loads, runs and golden-checks one scenario file.
func RunScenarioFile(ctx context.Context, path string, opts SuiteOptions) ScenarioResult {
	out := ScenarioResult{Name: filepath.Base(path), Path: path}

	base := opts.BasePath
	if base == "" {
		base = filepath.Dir(path)
	}
	scenario, err := LoadScenarioWithBasePath(path, base)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return out
	}
	out.Name = scenario.Name

	result, err := RunContext(ctx, scenario, opts.Run...)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return out
	}
	out.Events = len(result.Trace)
	out.Pass = result.Pass
	out.Errors = result.Errors

	if opts.GoldenDir == "" {
		return out
	}

	data, err := Snapshot(scenario.Name, result).Marshal()
	if err != nil {
		out.Pass = false
		out.Errors = append(out.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return out
	}

	goldenPath := GoldenPath(opts.GoldenDir, scenario.Name)
	if opts.Update {
		if err := WriteGolden(goldenPath, data); err != nil {
			out.Pass = false
			out.Errors = append(out.Errors, err.Error())
			return out
		}
		out.Golden = GoldenUpdated
		return out
	}

	match, err := CompareGolden(goldenPath, data)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No golden file: assertions alone decide.
		out.Golden = GoldenMissing
	case err != nil:
		out.Pass = false
		out.Errors = append(out.Errors, err.Error())
	case match:
		out.Golden = GoldenMatch
	default:
		out.Golden = GoldenMismatch
		out.Pass = false
		out.Errors = append(out.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return out
}

// GoldenPath returns the golden file of a scenario.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// WriteGolden writes data to path, creating the directory.
func WriteGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the file at path holds exactly data. A
// missing file returns an error matching fs.ErrNotExist.
func CompareGolden(path string, data []byte) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return bytes.Equal(golden, data), nil
}
