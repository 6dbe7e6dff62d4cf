package sat

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies the errors surfaced by solvers and explanation
// creators. Callers are expected to branch on it.
type Kind int

const (
	// UnknownKind is reported for errors that did not originate here.
	UnknownKind Kind = iota
	// MalformedProblem means a literal references an unregistered variable.
	MalformedProblem
	// ContradictionAtConstruction means the backend found the problem
	// unsatisfiable while building a capability, before any query.
	ContradictionAtConstruction
	// ProblemIsSatisfiable means a MUS was requested for a satisfiable
	// problem.
	ProblemIsSatisfiable
	// UnsupportedCapability means the backend cannot provide the requested
	// capability.
	UnsupportedCapability
	// Cancelled means the operation honored a cancellation or deadline.
	Cancelled
	// BackendFailure means the underlying solver failed internally.
	BackendFailure
	// Infeasible means the hard clauses of an extended problem admit no
	// model, so there is nothing to optimise.
	Infeasible
)

func (k Kind) String() string {
	switch k {
	case MalformedProblem:
		return "malformed problem"
	case ContradictionAtConstruction:
		return "contradiction at construction"
	case ProblemIsSatisfiable:
		return "problem is satisfiable"
	case UnsupportedCapability:
		return "unsupported capability"
	case Cancelled:
		return "cancelled"
	case BackendFailure:
		return "backend failure"
	case Infeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// Error is the typed error returned across the package boundary.
type Error struct {
	Kind       Kind
	Op         string
	Backend    string
	Capability Capability
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Kind == UnsupportedCapability {
		msg = fmt.Sprintf("%s %s", msg, e.Capability)
	}
	if e.Backend != "" {
		msg = fmt.Sprintf("%s: %s", e.Backend, msg)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels below can be
// used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMalformedProblem            = &Error{Kind: MalformedProblem}
	ErrContradictionAtConstruction = &Error{Kind: ContradictionAtConstruction}
	ErrProblemIsSatisfiable        = &Error{Kind: ProblemIsSatisfiable}
	ErrUnsupportedCapability       = &Error{Kind: UnsupportedCapability}
	ErrCancelled                   = &Error{Kind: Cancelled}
	ErrBackendFailure              = &Error{Kind: BackendFailure}
	ErrInfeasible                  = &Error{Kind: Infeasible}
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnknownKind
}

func malformed(format string, args ...interface{}) error {
	return &Error{Kind: MalformedProblem, Err: fmt.Errorf(format, args...)}
}

// Unsupported returns the error a factory reports for a capability it
// does not provide.
func Unsupported(backend string, c Capability) error {
	return &Error{Kind: UnsupportedCapability, Op: "construct", Backend: backend, Capability: c}
}

// CancelledError converts a context error into a Cancelled error.
func CancelledError(op string, err error) error {
	return &Error{Kind: Cancelled, Op: op, Err: err}
}

// CheckContext returns a Cancelled error if ctx is done.
func CheckContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return CancelledError(op, err)
	}
	return nil
}
