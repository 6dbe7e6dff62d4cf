// Package satcheck decides small problems by enumerating assignments. It
// is a reference for tests and for validating backend answers.
package satcheck

import (
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// MaxVariables bounds the problems Satisfiable will enumerate.
const MaxVariables = 20

// Satisfiable reports whether the background of p together with the
// selected clauses has a model, and returns one if so. A nil selection
// means every clause.
func Satisfiable(p *sat.Problem, selected []int, assumptions ...sat.Literal) (bool, sat.Model) {
	n := p.NumVariables()
	if n > MaxVariables {
		panic("satcheck: too many variables")
	}
	var clauses []sat.Clause
	clauses = append(clauses, p.Background()...)
	if selected == nil {
		p.Clauses(func(_ int, c sat.Clause) bool {
			clauses = append(clauses, c)
			return true
		})
	} else {
		for _, i := range selected {
			clauses = append(clauses, p.Clause(i))
		}
	}
	for _, m := range assumptions {
		clauses = append(clauses, sat.Clause{m})
	}

	m := sat.NewModel(n)
	for bits := 0; bits < 1<<n; bits++ {
		for v := 1; v <= n; v++ {
			m[v] = bits&(1<<(v-1)) != 0
		}
		if all(m, clauses) {
			return true, m
		}
	}
	return false, nil
}

func all(m sat.Model, clauses []sat.Clause) bool {
	for _, c := range clauses {
		if !m.Satisfies(c) {
			return false
		}
	}
	return true
}

// Minimal reports whether the clauses of mus are unsatisfiable and
// removing any single unit leaves them satisfiable.
func Minimal(mus *sat.MinimalUnsatisfiableSubset) bool {
	p := mus.Source()
	clauses := mus.Clauses()
	if ok, _ := Satisfiable(p, nonNil(clauses)); ok {
		return false
	}
	units := group(p, clauses, mus.Granularity())
	for skip := range units {
		var rest []int
		for u, cs := range units {
			if u != skip {
				rest = append(rest, cs...)
			}
		}
		if ok, _ := Satisfiable(p, nonNil(rest)); !ok {
			return false
		}
	}
	return true
}

func group(p *sat.Problem, clauses []int, g sat.Granularity) [][]int {
	var units [][]int
	if g != sat.ConstraintGranularity {
		for _, i := range clauses {
			units = append(units, []int{i})
		}
		return units
	}
	at := make(map[int]int)
	for _, i := range clauses {
		j := p.ConstraintOf(i)
		u, ok := at[j]
		if !ok {
			u = len(units)
			at[j] = u
			units = append(units, nil)
		}
		units[u] = append(units[u], i)
	}
	return units
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
