package mus

import (
	"context"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// ClauseCheck decides satisfiability of a selection of clause indices,
// optionally returning an unsatisfiable core of clause indices.
type ClauseCheck func(ctx context.Context, clauses []int) (satisfiable bool, core []int, err error)

// Extract minimises the clauses of p at the granularity of opts, using
// check to decide satisfiability of clause selections.
func Extract(ctx context.Context, p *sat.Problem, check ClauseCheck, opts sat.MusOptions) (*sat.MinimalUnsatisfiableSubset, error) {
	return ExtractFrom(ctx, p, nil, check, opts)
}

// ExtractFrom is like Extract but only considers the given clauses of p.
// A nil selection means every clause.
func ExtractFrom(ctx context.Context, p *sat.Problem, clauses []int, check ClauseCheck, opts sat.MusOptions) (*sat.MinimalUnsatisfiableSubset, error) {
	units := selectUnits(p, clauses, opts.Granularity)

	unitOf := make(map[int]int)
	for u, cs := range units {
		for _, i := range cs {
			unitOf[i] = u
		}
	}

	oracle := OracleFunc(func(ctx context.Context, active []int) (bool, []int, error) {
		selected := make([]int, 0, len(active))
		for _, u := range active {
			selected = append(selected, units[u]...)
		}
		ok, core, err := check(ctx, selected)
		if err != nil || ok || core == nil {
			return ok, nil, err
		}
		seen := make(map[int]struct{})
		coreUnits := make([]int, 0, len(core))
		for _, i := range core {
			u, known := unitOf[i]
			if !known {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			coreUnits = append(coreUnits, u)
		}
		return false, coreUnits, nil
	})

	all := make([]int, len(units))
	for u := range units {
		all[u] = u
	}
	chosen, err := Minimize(ctx, oracle, all, opts.Strategy, opts.Tracer)
	if err != nil {
		return nil, err
	}

	var result []int
	for _, u := range chosen {
		result = append(result, units[u]...)
	}
	return sat.NewMinimalUnsatisfiableSubset(p, result, opts.Granularity, true), nil
}

// selectUnits groups the selected clauses into units. Clauses of one
// source constraint form one unit at constraint granularity.
func selectUnits(p *sat.Problem, clauses []int, g sat.Granularity) [][]int {
	if clauses == nil {
		return sat.Units(p, g)
	}
	var units [][]int
	if g != sat.ConstraintGranularity {
		for _, i := range clauses {
			units = append(units, []int{i})
		}
		return units
	}
	byConstraint := make(map[int]int)
	for _, i := range clauses {
		j := p.ConstraintOf(i)
		u, ok := byConstraint[j]
		if !ok {
			u = len(units)
			byConstraint[j] = u
			units = append(units, nil)
		}
		units[u] = append(units[u], i)
	}
	return units
}
