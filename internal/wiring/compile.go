// Package wiring turns CUE wiring files into organs and a connected engine.
//
// A wiring file declares an optional connection mode and a set of organs:
//
//	mode: "duplex"
//	organ: sensor: {
//		output: temperature: 0
//	}
//	organ: display: {
//		input:    temperature: 0
//		output:   fahrenheit: 0
//		layers:   [{copy: {from: "temperature", to: "fahrenheit"}}, {scale: {key: "fahrenheit", factor: 1.8}}]
//		reactive: true
//		siblings: ["sensor"]
//	}
package wiring

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Spec is a compiled wiring.
type Spec struct {
	Mode   string      `json:"mode,omitempty"`
	Organs []OrganSpec `json:"organs"`
}

// OrganSpec describes one organ.
type OrganSpec struct {
	Name     string         `json:"name"`
	UID      uint64         `json:"uid,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Output   map[string]any `json:"output,omitempty"`
	Layers   []LayerSpec    `json:"layers,omitempty"`
	Reactive bool           `json:"reactive,omitempty"`
	Siblings []string       `json:"siblings,omitempty"`

	Pos token.Pos `json:"-"`
}

// LayerSpec describes one built-in layer. Which fields apply depends on Kind.
type LayerSpec struct {
	Kind   string  `json:"kind"`
	Key    string  `json:"key,omitempty"`
	From   string  `json:"from,omitempty"`
	To     string  `json:"to,omitempty"`
	Factor float64 `json:"factor,omitempty"`
	Delta  float64 `json:"delta,omitempty"`
}

// Organ returns the organ with the given name.
func (s *Spec) Organ(name string) (*OrganSpec, bool) {
	for i := range s.Organs {
		if s.Organs[i].Name == name {
			return &s.Organs[i], true
		}
	}
	return nil, false
}

// CompileError reports a wiring value that cannot be compiled.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile reads a wiring from a CUE value. Organs are returned sorted by
// name, so identities drawn in order are stable across file layouts.
//
//	ctx := cuecontext.New()
//	spec, err := Compile(ctx.CompileString(src))
func Compile(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &Spec{}

	if modeVal := v.LookupPath(cue.ParsePath("mode")); modeVal.Exists() {
		mode, err := modeVal.String()
		if err != nil {
			return nil, &CompileError{Field: "mode", Message: "mode must be a string", Pos: modeVal.Pos()}
		}
		spec.Mode = mode
	}

	organsVal := v.LookupPath(cue.ParsePath("organ"))
	if !organsVal.Exists() {
		return spec, nil
	}
	iter, err := organsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		organ, err := compileOrgan(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Organs = append(spec.Organs, *organ)
	}

	slices.SortFunc(spec.Organs, func(a, b OrganSpec) int {
		return strings.Compare(a.Name, b.Name)
	})
	return spec, nil
}

func compileOrgan(name string, v cue.Value) (*OrganSpec, error) {
	field := "organ." + name
	o := &OrganSpec{Name: name, Pos: v.Pos()}

	if uidVal := v.LookupPath(cue.ParsePath("uid")); uidVal.Exists() {
		id, err := uidVal.Uint64()
		if err != nil || id == 0 {
			return nil, &CompileError{Field: field + ".uid", Message: "uid must be a positive integer", Pos: uidVal.Pos()}
		}
		o.UID = id
	}

	var err error
	if o.Input, err = compileBag(field+".input", v.LookupPath(cue.ParsePath("input"))); err != nil {
		return nil, err
	}
	if o.Output, err = compileBag(field+".output", v.LookupPath(cue.ParsePath("output"))); err != nil {
		return nil, err
	}

	if reactiveVal := v.LookupPath(cue.ParsePath("reactive")); reactiveVal.Exists() {
		if o.Reactive, err = reactiveVal.Bool(); err != nil {
			return nil, &CompileError{Field: field + ".reactive", Message: "reactive must be a bool", Pos: reactiveVal.Pos()}
		}
	}

	if siblingsVal := v.LookupPath(cue.ParsePath("siblings")); siblingsVal.Exists() {
		list, err := siblingsVal.List()
		if err != nil {
			return nil, &CompileError{Field: field + ".siblings", Message: "siblings must be a list of organ names", Pos: siblingsVal.Pos()}
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return nil, &CompileError{Field: field + ".siblings", Message: "sibling must be a string", Pos: list.Value().Pos()}
			}
			o.Siblings = append(o.Siblings, s)
		}
	}

	if layersVal := v.LookupPath(cue.ParsePath("layers")); layersVal.Exists() {
		list, err := layersVal.List()
		if err != nil {
			return nil, &CompileError{Field: field + ".layers", Message: "layers must be a list", Pos: layersVal.Pos()}
		}
		for i := 0; list.Next(); i++ {
			layer, err := compileLayer(fmt.Sprintf("%s.layers[%d]", field, i), list.Value())
			if err != nil {
				return nil, err
			}
			o.Layers = append(o.Layers, layer)
		}
	}

	return o, nil
}

// compileBag reads a struct of concrete scalar properties.
func compileBag(field string, v cue.Value) (map[string]any, error) {
	props := map[string]any{}
	if !v.Exists() {
		return props, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a struct of properties", Pos: v.Pos()}
	}
	for iter.Next() {
		val, err := scalar(field+"."+iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		props[iter.Label()] = val
	}
	return props, nil
}

// scalar converts a concrete CUE scalar. Integers become int, numbers with a
// fraction float64.
func scalar(field string, v cue.Value) (any, error) {
	if !v.IsConcrete() {
		return nil, &CompileError{Field: field, Message: "property value must be concrete", Pos: v.Pos()}
	}
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return int(n), nil
	case cue.FloatKind:
		return v.Float64()
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported property type %s (want null, bool, int, float or string)", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// compileLayer accepts "relay" or a single-field struct such as
// {scale: {key: "x", factor: 2}}.
func compileLayer(field string, v cue.Value) (LayerSpec, error) {
	if kind, err := v.String(); err == nil {
		return LayerSpec{Kind: kind}, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return LayerSpec{}, &CompileError{Field: field, Message: "layer must be a name or a {kind: {...}} struct", Pos: v.Pos()}
	}
	var layers []LayerSpec
	for iter.Next() {
		args := iter.Value()
		layer := LayerSpec{Kind: iter.Label()}
		for _, arg := range []struct {
			name string
			dst  *string
		}{{"key", &layer.Key}, {"from", &layer.From}, {"to", &layer.To}} {
			if a := args.LookupPath(cue.ParsePath(arg.name)); a.Exists() {
				if *arg.dst, err = a.String(); err != nil {
					return LayerSpec{}, &CompileError{Field: field + "." + arg.name, Message: "must be a string", Pos: a.Pos()}
				}
			}
		}
		for _, arg := range []struct {
			name string
			dst  *float64
		}{{"factor", &layer.Factor}, {"delta", &layer.Delta}} {
			if a := args.LookupPath(cue.ParsePath(arg.name)); a.Exists() {
				if *arg.dst, err = a.Float64(); err != nil {
					return LayerSpec{}, &CompileError{Field: field + "." + arg.name, Message: "must be a number", Pos: a.Pos()}
				}
			}
		}
		layers = append(layers, layer)
	}
	if len(layers) != 1 {
		return LayerSpec{}, &CompileError{Field: field, Message: "layer struct must have exactly one kind", Pos: v.Pos()}
	}
	return layers[0], nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
