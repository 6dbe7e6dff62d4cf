package dimacs

import (
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Constraints groups the clauses into source constraints in order of
// first appearance. Clauses outside a "c constraint" block stand alone
// and are labelled with their own text.
func (d *Dimacs) Constraints() []sat.Constraint {
	constraints := make([]sat.Constraint, 0, len(d.groups))
	for _, g := range d.groups {
		clauses := make([]sat.Clause, 0, len(g.clauses))
		for _, i := range g.clauses {
			clauses = append(clauses, d.clauses[i])
		}
		constraints = append(constraints, sat.Constraint{Label: g.label, Clauses: clauses})
	}
	return constraints
}

// Problem compiles the parsed file into a problem. Clause indices of the
// problem follow file order.
func (d *Dimacs) Problem() (*sat.Problem, error) {
	return sat.NewProblemFromConstraints(d.variables, d.Constraints())
}
