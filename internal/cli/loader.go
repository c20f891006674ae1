package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skan-io/saij/internal/connection"
	"github.com/skan-io/saij/internal/engine"
	"github.com/skan-io/saij/internal/organ"
	"github.com/skan-io/saij/internal/property"
	"github.com/skan-io/saij/internal/trace"
	"github.com/skan-io/saij/internal/wiring"
)

// Write error codes (E300-E399)
const (
	ErrCodeUnknownOrgan = "E301" // --set names no organ
	ErrCodeWriteFailed  = "E302" // write failed on the engine loop
)

// session is a built wiring ready to be driven from the command line.
type session struct {
	load   *wiring.LoadResult
	engine *engine.Engine
	organs []*organ.Organ
}

// openSession loads the wiring in dir and builds its engine. The mode comes
// from modeFlag, then the wiring file, then engine.mode in the config.
func openSession(opts *RootOptions, dir, modeFlag string) (*session, error) {
	loaded, err := wiring.LoadDir(dir)
	if err != nil {
		return nil, loadExitError(err)
	}

	buildOpts := []wiring.BuildOption{wiring.WithLogger(opts.Logger())}
	mode, err := resolveMode(opts, loaded.Spec, modeFlag)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid mode", err)
	}
	if mode != "" {
		buildOpts = append(buildOpts, wiring.WithMode(mode))
	}

	eng, organs, err := wiring.Build(loaded.Spec, buildOpts...)
	if err != nil {
		var verrs wiring.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, WrapExitError(ExitFailure, "wiring is invalid", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to build engine", err)
	}
	return &session{load: loaded, engine: eng, organs: organs}, nil
}

func resolveMode(opts *RootOptions, spec *wiring.Spec, flag string) (connection.Mode, error) {
	if flag != "" {
		mode, err := connection.ParseMode(flag)
		if err != nil {
			return "", err
		}
		if mode.Remote() {
			return "", fmt.Errorf("mode %q is not supported locally", mode)
		}
		return mode, nil
	}
	if spec.Mode != "" {
		return "", nil
	}
	return opts.Settings().Mode()
}

func loadExitError(err error) error {
	var loadErr *wiring.LoadError
	if errors.As(err, &loadErr) {
		return NewExitError(ExitCommandError, loadErr.Error())
	}
	return WrapExitError(ExitCommandError, "failed to load wiring", err)
}

func (s *session) close() {
	s.engine.Dispose()
}

// Assignment is one --set flag: organ.side.key=value.
type Assignment struct {
	Organ string
	Side  trace.Side
	Key   string
	Value any
	Unset bool
}

// ParseAssignment parses organ.side.key=value. The value is read as YAML, so
// 100 is a number, true a bool, "100" a string and null a nil value. An empty
// value unsets the key.
func ParseAssignment(s string) (Assignment, error) {
	path, raw, ok := strings.Cut(s, "=")
	if !ok {
		return Assignment{}, fmt.Errorf("assignment %q: want organ.side.key=value", s)
	}
	parts := strings.SplitN(path, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return Assignment{}, fmt.Errorf("assignment %q: want organ.side.key=value", s)
	}
	side, err := trace.ParseSide(parts[1])
	if err != nil {
		return Assignment{}, fmt.Errorf("assignment %q: %w", s, err)
	}

	a := Assignment{Organ: parts[0], Side: side, Key: parts[2]}
	if raw == "" {
		a.Unset = true
		return a, nil
	}
	if err := yaml.Unmarshal([]byte(raw), &a.Value); err != nil {
		return Assignment{}, fmt.Errorf("assignment %q: %w", s, err)
	}
	return a, nil
}

// ParseAssignments parses every --set flag.
func ParseAssignments(flags []string) ([]Assignment, error) {
	out := make([]Assignment, 0, len(flags))
	for _, f := range flags {
		a, err := ParseAssignment(f)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// apply runs the assignments in order on the engine loop and stops it.
func (s *session) apply(ctx context.Context, assignments []Assignment) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.engine.Run(ctx) }()

	var err error
	for i, a := range assignments {
		err = s.engine.Do(ctx, func(e *engine.Engine) error {
			bag, err := sideBag(e, a.Organ, a.Side)
			if err != nil {
				return err
			}
			if a.Unset {
				bag.Unset(a.Key, false)
			} else {
				bag.Set(a.Key, a.Value, false)
			}
			return nil
		})
		if err != nil {
			err = fmt.Errorf("set[%d] %s.%s.%s: %w", i, a.Organ, a.Side, a.Key, err)
			break
		}
	}

	s.engine.Stop()
	if runErr := <-done; runErr != nil && !errors.Is(runErr, context.Canceled) && err == nil {
		err = runErr
	}
	return err
}

func sideBag(e *engine.Engine, name string, side trace.Side) (*property.Bag, error) {
	node, ok := e.FindNode(name)
	if !ok {
		return nil, engine.NewUnknownNodeError(name)
	}
	if side == trace.SideInput {
		return node.Input(), nil
	}
	return node.Output(), nil
}

func writeErrorCode(err error) string {
	if engine.IsUnknownNode(err) {
		return ErrCodeUnknownOrgan
	}
	return ErrCodeWriteFailed
}
