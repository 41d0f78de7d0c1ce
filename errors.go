package qoptim

import (
	"errors"
	"fmt"
)

/*
Sentinel errors for everything that can be rejected before a simulation or
optimization run starts. Callers match them with errors.Is; the wrapped message
carries the offending values.
*/
var (
	ErrInvalidQubitCount      = errors.New("invalid qubit count")
	ErrInvalidGateTarget      = errors.New("invalid gate target")
	ErrInvalidGateControl     = errors.New("invalid gate control")
	ErrDimensionMismatch      = errors.New("dimension mismatch")
	ErrUnsupportedProblemType = errors.New("unsupported problem type")
	ErrUnsupportedAlgorithm   = errors.New("unsupported algorithm")
	ErrUnknownObjective       = errors.New("unknown objective")
	ErrInvalidParameter       = errors.New("invalid parameter")
)

// Pool errors are delivered on the result channel rather than returned.
var (
	ErrSchedulingTimeout = errors.New("scheduling timeout")
	ErrPoolClosed        = errors.New("pool closed")
)

// WorkflowErrorKind classifies structural problems in a step list.
type WorkflowErrorKind string

const (
	WorkflowDuplicateID       WorkflowErrorKind = "duplicate_id"
	WorkflowUnknownDependency WorkflowErrorKind = "unknown_dependency"
	WorkflowSelfReference     WorkflowErrorKind = "self_reference"
	WorkflowCycle             WorkflowErrorKind = "cycle"
	WorkflowEmpty             WorkflowErrorKind = "empty"
)

// WorkflowError reports a structural violation found by ValidateWorkflow.
type WorkflowError struct {
	Kind WorkflowErrorKind
	Msg  string
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow %s: %s", e.Kind, e.Msg)
}

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
