package wiring

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/skan-io/saij/internal/connection"
	"github.com/skan-io/saij/internal/engine"
	"github.com/skan-io/saij/internal/organ"
	"github.com/skan-io/saij/internal/uid"
)

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	alloc  *uid.Allocator
	logger *slog.Logger
	idGen  uid.Generator
	mode   connection.Mode
}

// WithAllocator draws organ identities from alloc. Default: a fresh
// allocator, so the first organ without an explicit uid gets 1.
func WithAllocator(alloc *uid.Allocator) BuildOption {
	return func(c *buildConfig) {
		c.alloc = alloc
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = logger
	}
}

// WithIDGenerator sets the engine instance id generator.
func WithIDGenerator(gen uid.Generator) BuildOption {
	return func(c *buildConfig) {
		c.idGen = gen
	}
}

// WithMode overrides the mode declared in the wiring.
func WithMode(mode connection.Mode) BuildOption {
	return func(c *buildConfig) {
		c.mode = mode
	}
}

// ValidationErrors wraps the rule violations that stopped a build.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errors.Join(errs...).Error()
}

// Build validates spec, creates its organs in name order and wires them
// along their siblings.
func Build(spec *Spec, opts ...BuildOption) (*engine.Engine, []*organ.Organ, error) {
	if errs := Validate(spec); len(errs) > 0 {
		return nil, nil, ValidationErrors(errs)
	}

	cfg := buildConfig{alloc: uid.NewAllocator()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mode == "" && spec.Mode != "" {
		cfg.mode = connection.Mode(spec.Mode)
	}

	explicit := make(map[uint64]bool)
	for _, o := range spec.Organs {
		if o.UID != 0 {
			explicit[o.UID] = true
		}
	}

	organs := make([]*organ.Organ, 0, len(spec.Organs))
	nodes := make([]engine.Node, 0, len(spec.Organs))
	for _, o := range spec.Organs {
		id := o.UID
		for id == 0 || (o.UID == 0 && explicit[id]) {
			id = cfg.alloc.Next()
		}

		layers, err := buildLayers(o.Layers)
		if err != nil {
			return nil, nil, fmt.Errorf("organ %s: %w", o.Name, err)
		}

		orgOpts := []organ.Option{
			organ.WithUID(id),
			organ.WithInput(o.Input),
			organ.WithOutput(o.Output),
			organ.WithLayers(layers...),
			organ.WithSiblings(o.Siblings...),
		}
		if o.Reactive {
			orgOpts = append(orgOpts, organ.Reactive())
		}
		org, err := organ.New(o.Name, orgOpts...)
		if err != nil {
			return nil, nil, err
		}
		organs = append(organs, org)
		nodes = append(nodes, org)
	}

	engOpts := []engine.EngineOption{engine.WithNodes(nodes...)}
	if cfg.mode != "" {
		engOpts = append(engOpts, engine.WithMode(cfg.mode))
	}
	if cfg.logger != nil {
		engOpts = append(engOpts, engine.WithLogger(cfg.logger))
	}
	if cfg.idGen != nil {
		engOpts = append(engOpts, engine.WithIDGenerator(cfg.idGen))
	}

	eng, err := engine.New(engOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}
	return eng, organs, nil
}

func buildLayers(specs []LayerSpec) ([]organ.Layer, error) {
	layers := make([]organ.Layer, 0, len(specs))
	for i, l := range specs {
		switch l.Kind {
		case LayerRelay:
			layers = append(layers, organ.Relay{})
		case LayerScale:
			layers = append(layers, organ.Scale{Key: l.Key, Factor: l.Factor})
		case LayerOffset:
			layers = append(layers, organ.Offset{Key: l.Key, Delta: l.Delta})
		case LayerCopy:
			layers = append(layers, organ.Copy{From: l.From, To: l.To})
		default:
			return nil, fmt.Errorf("layer %d: unknown kind %q", i, l.Kind)
		}
	}
	return layers, nil
}
