package wiring

import (
	"fmt"

	"github.com/skan-io/saij/internal/connection"
)

// Validation error codes (E200-E299)
const (
	ErrInvalidMode       = "E201" // mode is not simplex or duplex
	ErrUnknownSibling    = "E202" // sibling names no organ
	ErrSelfSibling       = "E203" // organ lists itself as sibling
	ErrUnknownLayer      = "E204" // layer kind is not built in
	ErrLayerArgument     = "E205" // layer is missing a required argument
	ErrDuplicateUID      = "E206" // two organs share an explicit uid
	ErrDuplicateSibling  = "E207" // sibling listed twice
	ErrDisconnectedOrgan = "E208" // organ has neither input nor output properties
)

// Layer kinds understood by Build.
const (
	LayerRelay  = "relay"
	LayerScale  = "scale"
	LayerOffset = "offset"
	LayerCopy   = "copy"
)

// ValidationError represents a wiring rule violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled wiring. Returns all errors found (does not
// fail-fast).
func Validate(spec *Spec) []ValidationError {
	var errs []ValidationError

	if spec.Mode != "" {
		mode, err := connection.ParseMode(spec.Mode)
		if err != nil || mode.Remote() {
			errs = append(errs, ValidationError{
				Field:   "mode",
				Message: fmt.Sprintf("mode %q cannot be used for local wiring (want simplex or duplex)", spec.Mode),
				Code:    ErrInvalidMode,
			})
		}
	}

	names := make(map[string]bool, len(spec.Organs))
	for _, o := range spec.Organs {
		names[o.Name] = true
	}

	uids := make(map[uint64]string)
	for _, o := range spec.Organs {
		field := "organ." + o.Name
		line := o.Pos.Line()

		if o.UID != 0 {
			if other, taken := uids[o.UID]; taken {
				errs = append(errs, ValidationError{
					Field:   field + ".uid",
					Message: fmt.Sprintf("uid %d is already used by organ %q", o.UID, other),
					Code:    ErrDuplicateUID,
					Line:    line,
				})
			}
			uids[o.UID] = o.Name
		}

		if len(o.Input) == 0 && len(o.Output) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "organ has no input or output properties and can never be wired",
				Code:    ErrDisconnectedOrgan,
				Line:    line,
			})
		}

		seen := make(map[string]bool, len(o.Siblings))
		for i, sibling := range o.Siblings {
			sf := fmt.Sprintf("%s.siblings[%d]", field, i)
			switch {
			case sibling == o.Name:
				errs = append(errs, ValidationError{Field: sf, Message: "organ cannot be its own sibling", Code: ErrSelfSibling, Line: line})
			case !names[sibling]:
				errs = append(errs, ValidationError{Field: sf, Message: fmt.Sprintf("unknown organ %q", sibling), Code: ErrUnknownSibling, Line: line})
			case seen[sibling]:
				errs = append(errs, ValidationError{Field: sf, Message: fmt.Sprintf("sibling %q listed twice", sibling), Code: ErrDuplicateSibling, Line: line})
			}
			seen[sibling] = true
		}

		for i, layer := range o.Layers {
			errs = append(errs, validateLayer(fmt.Sprintf("%s.layers[%d]", field, i), line, layer)...)
		}
	}

	return errs
}

func validateLayer(field string, line int, layer LayerSpec) []ValidationError {
	missing := func(arg string) ValidationError {
		return ValidationError{
			Field:   field + "." + arg,
			Message: fmt.Sprintf("%s layer requires %s", layer.Kind, arg),
			Code:    ErrLayerArgument,
			Line:    line,
		}
	}

	var errs []ValidationError
	switch layer.Kind {
	case LayerRelay:
	case LayerScale, LayerOffset:
		if layer.Key == "" {
			errs = append(errs, missing("key"))
		}
	case LayerCopy:
		if layer.From == "" {
			errs = append(errs, missing("from"))
		}
		if layer.To == "" {
			errs = append(errs, missing("to"))
		}
	default:
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unknown layer %q (want relay, scale, offset or copy)", layer.Kind),
			Code:    ErrUnknownLayer,
			Line:    line,
		})
	}
	return errs
}
