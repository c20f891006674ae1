package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/skan-io/saij/internal/connection"
	"github.com/skan-io/saij/internal/engine"
	"github.com/skan-io/saij/internal/organ"
	"github.com/skan-io/saij/internal/property"
	"github.com/skan-io/saij/internal/trace"
	"github.com/skan-io/saij/internal/uid"
	"github.com/skan-io/saij/internal/wiring"
)

// Harness runs one scenario against a freshly built engine.
type Harness struct {
	engine   *engine.Engine
	alloc    *uid.Allocator
	recorder *trace.Recorder
	logger   *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by the harness and its engine.
// Default: logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

type processor interface {
	Process(ctx context.Context) error
}

// Run executes a test scenario and returns the result.
//
// Each scenario gets its own engine, uid allocator and recorder. The engine
// id is the scenario name, so identical scenarios produce identical traces.
//
// Execution flow:
// 1. Load and compile the wiring files
// 2. Build the engine and attach a recorder to every organ
// 3. Execute steps in order on the engine loop
// 4. Capture trace, state and connections
// 5. Evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	loaded, err := wiring.LoadFiles(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load wiring: %w", err)
	}

	alloc := uid.NewAllocator()
	buildOpts := []wiring.BuildOption{
		wiring.WithAllocator(alloc),
		wiring.WithLogger(cfg.logger),
		wiring.WithIDGenerator(uid.NewFixedGenerator(scenario.Name)),
	}
	if scenario.Mode != "" {
		mode, err := connection.ParseMode(scenario.Mode)
		if err != nil {
			return nil, fmt.Errorf("scenario mode: %w", err)
		}
		buildOpts = append(buildOpts, wiring.WithMode(mode))
	}

	eng, organs, err := wiring.Build(loaded.Spec, buildOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	defer eng.Dispose()

	h := &Harness{
		engine:   eng,
		alloc:    alloc,
		recorder: trace.NewRecorder(),
		logger:   cfg.logger,
	}
	for _, org := range organs {
		h.recorder.Attach(org)
	}
	defer h.recorder.DetachAll()

	if err := h.executeSteps(ctx, scenario.Steps); err != nil {
		return nil, err
	}

	result := NewResult()
	h.capture(result)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"events", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

// executeSteps runs the steps on the engine loop, one Do per step, and stops
// the loop afterwards.
func (h *Harness) executeSteps(ctx context.Context, steps []Step) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = h.engine.Run(ctx)
	}()
	defer func() {
		h.engine.Stop()
		<-stopped
	}()

	for i, step := range steps {
		err := h.engine.Do(ctx, func(e *engine.Engine) error {
			return h.executeStep(ctx, e, step)
		})
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		h.logger.Debug("step completed", "step", i, "op", step.Op, "events", h.recorder.Len())
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, e *engine.Engine, step Step) error {
	switch step.Op {
	case OpSet, OpUnset:
		bag, err := h.bag(e, step.Organ, step.Side)
		if err != nil {
			return err
		}
		if step.Op == OpSet {
			bag.Set(step.Key, step.Value, false)
		} else {
			bag.Unset(step.Key, false)
		}
		return nil

	case OpAdd:
		id := step.UID
		for id == 0 {
			id = h.alloc.Next()
			if _, taken := e.FindNodeByUID(id); taken {
				id = 0
			}
		}
		org, err := organ.New(step.Organ,
			organ.WithUID(id),
			organ.WithInput(step.Input),
			organ.WithOutput(step.Output),
		)
		if err != nil {
			return err
		}
		if err := e.AddNode(org); err != nil {
			return err
		}
		if member, ok := e.FindNodeByUID(id); !ok || member != org {
			return fmt.Errorf("organ %q not added: name or uid %d already taken", step.Organ, id)
		}
		h.recorder.Attach(org)
		return nil

	case OpRemove:
		node, ok := e.FindNode(step.Organ)
		if !ok {
			return engine.NewUnknownNodeError(step.Organ)
		}
		e.RemoveNode(node)
		return nil

	case OpConnect:
		return e.Connect(step.Source, step.Destination)

	case OpDisconnect:
		a, ok := e.FindNode(step.Source)
		if !ok {
			return engine.NewUnknownNodeError(step.Source)
		}
		b, ok := e.FindNode(step.Destination)
		if !ok {
			return engine.NewUnknownNodeError(step.Destination)
		}
		e.RemoveConnectionBetween(a, b)
		return nil

	case OpProcess:
		node, ok := e.FindNode(step.Organ)
		if !ok {
			return engine.NewUnknownNodeError(step.Organ)
		}
		p, ok := node.(processor)
		if !ok {
			return fmt.Errorf("organ %s cannot process", step.Organ)
		}
		return p.Process(ctx)
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) bag(e *engine.Engine, name, side string) (*property.Bag, error) {
	node, ok := e.FindNode(name)
	if !ok {
		return nil, engine.NewUnknownNodeError(name)
	}
	s, err := trace.ParseSide(side)
	if err != nil {
		return nil, err
	}
	if s == trace.SideInput {
		return node.Input(), nil
	}
	return node.Output(), nil
}

// capture copies the trace, bag contents and connection ids into result.
func (h *Harness) capture(result *Result) {
	result.Trace = h.recorder.Events()

	snap := h.engine.Snapshot()
	for _, n := range snap.Nodes {
		result.State[n.Name] = OrganState{Input: n.Input, Output: n.Output}
	}
	for _, c := range snap.Connections {
		result.Connections = append(result.Connections, c.ID)
	}
}
