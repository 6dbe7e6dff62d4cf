// Package explanation turns defects of a feature model into ranked,
// causally ordered explanations.
//
// A Creator frames the defect as one or more unsatisfiable problems, asks
// a solver backend for an unsatisfiable subset of each, minimises subsets
// the backend could not prove minimal, and maps the result back to the
// source constraints of the original problem.
package explanation

import (
	"fmt"
	"strings"
)

// Reason is one source constraint taking part in a defect.
type Reason struct {
	// Constraint indexes the source constraints of the explained problem.
	Constraint int
	Label      string
	// Clauses are the clauses of the constraint that take part, as
	// indices into the explained problem.
	Clauses []int
	// Rank is the 1-based position of the reason in traversal order.
	Rank int
	// Confidence is 1 for reasons of a minimal subset. For unminimised
	// propagation results it decreases with the distance from the
	// contradiction.
	Confidence float64
}

func (r Reason) String() string {
	if r.Confidence < 1 {
		return fmt.Sprintf("%d. %s (confidence %.2f)", r.Rank, r.Label, r.Confidence)
	}
	return fmt.Sprintf("%d. %s", r.Rank, r.Label)
}

// Explanation is the immutable result of explaining a defect.
type Explanation struct {
	defect  Defect
	subject string
	reasons []Reason
	backend string
	minimal bool
}

func (e *Explanation) Defect() Defect {
	return e.defect
}

// Reasons returns a copy of the reasons in rank order.
func (e *Explanation) Reasons() []Reason {
	out := make([]Reason, len(e.reasons))
	for i, r := range e.reasons {
		r.Clauses = append([]int(nil), r.Clauses...)
		out[i] = r
	}
	return out
}

// Len returns the number of reasons.
func (e *Explanation) Len() int {
	return len(e.reasons)
}

// Backend names the solver backend that produced the explanation.
func (e *Explanation) Backend() string {
	return e.backend
}

// Minimal reports whether every reason is necessary.
func (e *Explanation) Minimal() bool {
	return e.minimal
}

// Constraints returns the source constraints of the reasons in rank
// order.
func (e *Explanation) Constraints() []int {
	out := make([]int, len(e.reasons))
	for i, r := range e.reasons {
		out[i] = r.Constraint
	}
	return out
}

func (e *Explanation) String() string {
	var b strings.Builder
	if len(e.reasons) == 0 {
		fmt.Fprintf(&b, "%s trivially", e.subject)
		return b.String()
	}
	fmt.Fprintf(&b, "%s because of:", e.subject)
	for _, r := range e.reasons {
		fmt.Fprintf(&b, "\n%s", r)
	}
	return b.String()
}
