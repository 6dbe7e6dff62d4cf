// Package featuremodel compiles feature diagrams and cross-tree
// constraints into problems whose source constraints are the relations of
// the model.
package featuremodel

import (
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Model is a feature model under construction. Features are registered in
// the order they are first mentioned.
type Model struct {
	features  []Feature
	index     map[Feature]sat.Variable
	relations []Relation
}

// New returns a model with root as its root feature.
func New(root Feature) *Model {
	m := &Model{index: make(map[Feature]sat.Variable)}
	m.Add(Root(root))
	return m
}

// Add appends relations to the model.
func (m *Model) Add(relations ...Relation) *Model {
	for _, r := range relations {
		for _, f := range r.Features() {
			if _, ok := m.index[f]; !ok {
				m.features = append(m.features, f)
				m.index[f] = sat.Variable(len(m.features))
			}
		}
		m.relations = append(m.relations, r)
	}
	return m
}

// Features returns the features in registration order.
func (m *Model) Features() []Feature {
	return append([]Feature(nil), m.features...)
}

// Relations returns the relations in the order they were added. The
// index of a relation is the index of its source constraint.
func (m *Model) Relations() []Relation {
	return append([]Relation(nil), m.relations...)
}

func (m *Model) LitOf(f Feature) sat.Literal {
	return m.index[f].Pos()
}

// Problem compiles the model.
func (m *Model) Problem() (*sat.Problem, error) {
	names := make([]string, len(m.features))
	for i, f := range m.features {
		names[i] = string(f)
	}
	constraints := make([]sat.Constraint, len(m.relations))
	for i, r := range m.relations {
		constraints[i] = sat.Constraint{Label: r.String(), Clauses: r.Apply(m)}
	}
	return sat.NewProblemFromConstraints(names, constraints)
}
