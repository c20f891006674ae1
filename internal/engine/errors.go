package engine

import (
	"errors"
	"fmt"
)

// EngineError is returned by engine operations that name nodes or need the
// run loop.
type EngineError struct {
	// Code identifies the error category.
	Code EngineErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the node name or uid involved, if any.
	Node string
}

// EngineErrorCode categorizes engine errors.
type EngineErrorCode string

const (
	// ErrCodeUnknownNode indicates a name or uid that is not a member.
	ErrCodeUnknownNode EngineErrorCode = "UNKNOWN_NODE"

	// ErrCodeStopped indicates work submitted after the run loop stopped.
	ErrCodeStopped EngineErrorCode = "ENGINE_STOPPED"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownNode returns true if the error reports a missing node.
// Uses errors.As to handle wrapped errors.
func IsUnknownNode(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeUnknownNode
	}
	return false
}

// IsStopped returns true if the error reports a stopped run loop.
func IsStopped(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeStopped
	}
	return false
}

// NewUnknownNodeError creates an EngineError for a missing node.
func NewUnknownNodeError(identifier string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownNode,
		Message: "no node with this name or uid",
		Node:    identifier,
	}
}

func newStoppedError() *EngineError {
	return &EngineError{
		Code:    ErrCodeStopped,
		Message: "engine run loop is stopped",
	}
}
