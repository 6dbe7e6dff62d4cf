// Package mus minimises unsatisfiable sets of units (clauses or groups of
// clauses) independently of the backend that decides satisfiability.
package mus

import (
	"context"
	"sort"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Oracle decides satisfiability of a selection of units. Background
// clauses, if any, are always enabled.
type Oracle interface {
	// Check reports whether the units in active are jointly satisfiable.
	// When they are not, core may be a subset of active that is still
	// unsatisfiable, or nil if the backend cannot tell.
	Check(ctx context.Context, active []int) (satisfiable bool, core []int, err error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, active []int) (bool, []int, error)

func (f OracleFunc) Check(ctx context.Context, active []int) (bool, []int, error) {
	return f(ctx, active)
}

type position struct {
	active      []int
	satisfiable bool
}

func (p position) Active() []int {
	return p.active
}

func (p position) Satisfiable() bool {
	return p.satisfiable
}

type checker struct {
	oracle Oracle
	tracer sat.Tracer
	calls  int
}

func (c *checker) check(ctx context.Context, active []int) (bool, []int, error) {
	if err := sat.CheckContext(ctx, "extract"); err != nil {
		return false, nil, err
	}
	c.calls++
	ok, core, err := c.oracle.Check(ctx, active)
	if err != nil {
		return false, nil, err
	}
	c.tracer.Trace(position{active: active, satisfiable: ok})
	return ok, core, nil
}

// Minimize returns a minimal unsatisfiable subset of units, in the order
// the units were given. It fails with ProblemIsSatisfiable if the units
// are satisfiable and with Cancelled if ctx is done before the search
// completes.
func Minimize(ctx context.Context, o Oracle, units []int, strategy sat.Strategy, tracer sat.Tracer) ([]int, error) {
	if tracer == nil {
		tracer = sat.DefaultTracer{}
	}
	c := &checker{oracle: o, tracer: tracer}

	ok, core, err := c.check(ctx, units)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, &sat.Error{Kind: sat.ProblemIsSatisfiable, Op: "extract"}
	}
	work := refine(units, core)

	var result []int
	switch strategy {
	case sat.QuickXplainStrategy:
		if len(work) == 0 {
			return nil, nil
		}
		result, err = c.quickXplain(ctx, nil, false, work)
	default:
		result, err = c.deletion(ctx, work)
	}
	if err != nil {
		return nil, err
	}
	return inOrder(units, result), nil
}

// deletion tries to drop each unit in turn. A unit whose removal makes
// the rest satisfiable is necessary and is kept; cores returned by the
// oracle shrink the working set without losing necessary units.
func (c *checker) deletion(ctx context.Context, work []int) ([]int, error) {
	for i := 0; i < len(work); {
		candidate := make([]int, 0, len(work)-1)
		candidate = append(candidate, work[:i]...)
		candidate = append(candidate, work[i+1:]...)
		ok, core, err := c.check(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			i++
			continue
		}
		work = refine(candidate, core)
	}
	return work, nil
}

// quickXplain returns a minimal subset of cs that is unsatisfiable
// together with background, assuming background ∪ cs is unsatisfiable.
func (c *checker) quickXplain(ctx context.Context, background []int, delta bool, cs []int) ([]int, error) {
	if delta {
		ok, _, err := c.check(ctx, background)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}
	if len(cs) == 1 {
		return cs, nil
	}

	k := len(cs) / 2
	c1, c2 := cs[:k], cs[k:]

	d2, err := c.quickXplain(ctx, join(background, c1), len(c1) > 0, c2)
	if err != nil {
		return nil, err
	}
	d1, err := c.quickXplain(ctx, join(background, d2), len(d2) > 0, c1)
	if err != nil {
		return nil, err
	}
	return join(d1, d2), nil
}

func join(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// refine keeps the elements of set that appear in core. A nil core leaves
// set unchanged.
func refine(set, core []int) []int {
	if core == nil {
		return set
	}
	keep := make(map[int]struct{}, len(core))
	for _, u := range core {
		keep[u] = struct{}{}
	}
	out := make([]int, 0, len(core))
	for _, u := range set {
		if _, ok := keep[u]; ok {
			out = append(out, u)
		}
	}
	return out
}

func inOrder(order, set []int) []int {
	pos := make(map[int]int, len(order))
	for i, u := range order {
		pos[u] = i
	}
	out := make([]int, len(set))
	copy(out, set)
	sort.Slice(out, func(i, j int) bool {
		return pos[out[i]] < pos[out[j]]
	})
	return out
}
