package explanation

import (
	"fmt"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// DefectKind classifies the anomalies of a feature model that can be
// explained.
type DefectKind int

const (
	// VoidModel means the model admits no configuration at all.
	VoidModel DefectKind = iota
	// DeadFeature means a feature can never be selected.
	DeadFeature
	// FalseOptionalFeature means a feature is selected whenever its
	// parent is, although it is modelled as optional.
	FalseOptionalFeature
	// RedundantConstraint means a constraint is implied by the others.
	RedundantConstraint
)

func (k DefectKind) String() string {
	switch k {
	case VoidModel:
		return "void-model"
	case DeadFeature:
		return "dead-feature"
	case FalseOptionalFeature:
		return "false-optional"
	case RedundantConstraint:
		return "redundant-constraint"
	default:
		return fmt.Sprintf("DefectKind(%d)", int(k))
	}
}

// ParseDefectKind is the inverse of DefectKind.String.
func ParseDefectKind(s string) (DefectKind, error) {
	for _, k := range []DefectKind{VoidModel, DeadFeature, FalseOptionalFeature, RedundantConstraint} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown defect kind %q", s)
}

// Defect is an anomaly to be explained. Feature and Parent name
// variables; Constraint indexes the source constraints of the problem.
type Defect struct {
	Kind       DefectKind
	Feature    string
	Parent     string
	Constraint int
}

func Void() Defect {
	return Defect{Kind: VoidModel}
}

func Dead(feature string) Defect {
	return Defect{Kind: DeadFeature, Feature: feature}
}

func FalseOptional(feature, parent string) Defect {
	return Defect{Kind: FalseOptionalFeature, Feature: feature, Parent: parent}
}

func Redundant(constraint int) Defect {
	return Defect{Kind: RedundantConstraint, Constraint: constraint}
}

func (d Defect) String() string {
	switch d.Kind {
	case VoidModel:
		return "the model is void"
	case DeadFeature:
		return fmt.Sprintf("feature %s is dead", d.Feature)
	case FalseOptionalFeature:
		return fmt.Sprintf("feature %s is false-optional under %s", d.Feature, d.Parent)
	case RedundantConstraint:
		return fmt.Sprintf("constraint %d is redundant", d.Constraint)
	}
	return d.Kind.String()
}

// describe renders d with the names and labels of p.
func (d Defect) describe(p *sat.Problem) string {
	if d.Kind == RedundantConstraint && d.Constraint >= 0 && d.Constraint < p.NumConstraints() {
		return fmt.Sprintf("constraint %q is redundant", p.ConstraintLabel(d.Constraint))
	}
	return d.String()
}

// diagnosis is one unsatisfiable framing of a defect. Its constraints are
// the kept source constraints followed by premises.
type diagnosis struct {
	problem *sat.Problem
	// source maps constraints of problem to source constraints of the
	// original problem, or to -1 for premises.
	source []int
	// clauses maps clauses of problem to clauses of the original
	// problem, or to -1 for premises.
	clauses []int
}

func (g *diagnosis) premise(j int) bool {
	return g.source[j] < 0
}

// frame returns the diagnoses whose unsatisfiability proves d. Every one
// of them must be explained.
func (d Defect) frame(p *sat.Problem) ([]*diagnosis, error) {
	literal := func(name string) (sat.Literal, error) {
		v, ok := p.Variable(name)
		if !ok {
			return 0, &sat.Error{Kind: sat.MalformedProblem, Op: "frame", Err: fmt.Errorf("unknown feature %q", name)}
		}
		return v.Pos(), nil
	}

	switch d.Kind {
	case VoidModel:
		return []*diagnosis{build(p, -1, nil)}, nil
	case DeadFeature:
		f, err := literal(d.Feature)
		if err != nil {
			return nil, err
		}
		return []*diagnosis{build(p, -1, []sat.Literal{f})}, nil
	case FalseOptionalFeature:
		f, err := literal(d.Feature)
		if err != nil {
			return nil, err
		}
		parent, err := literal(d.Parent)
		if err != nil {
			return nil, err
		}
		return []*diagnosis{build(p, -1, []sat.Literal{parent, f.Not()})}, nil
	case RedundantConstraint:
		if d.Constraint < 0 || d.Constraint >= p.NumConstraints() {
			return nil, &sat.Error{Kind: sat.MalformedProblem, Op: "frame", Err: fmt.Errorf("constraint %d out of range", d.Constraint)}
		}
		// the rest of the problem must refute every clause of the
		// constraint being negated
		var out []*diagnosis
		for _, i := range p.ConstraintClauses(d.Constraint) {
			var premises []sat.Literal
			for _, m := range p.Clause(i) {
				premises = append(premises, m.Not())
			}
			out = append(out, build(p, d.Constraint, premises))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown defect kind %v", d.Kind)
}

// build copies the constraints of p except skip, then appends one unit
// premise constraint per literal.
func build(p *sat.Problem, skip int, premises []sat.Literal) *diagnosis {
	g := &diagnosis{}
	var constraints []sat.Constraint
	for j := 0; j < p.NumConstraints(); j++ {
		if j == skip {
			continue
		}
		indices := p.ConstraintClauses(j)
		c := sat.Constraint{Label: p.ConstraintLabel(j)}
		for _, i := range indices {
			c.Clauses = append(c.Clauses, p.Clause(i))
			g.clauses = append(g.clauses, i)
		}
		constraints = append(constraints, c)
		g.source = append(g.source, j)
	}
	for _, m := range premises {
		constraints = append(constraints, sat.Constraint{
			Label:   "assume " + p.LiteralString(m),
			Clauses: []sat.Clause{{m}},
		})
		g.source = append(g.source, -1)
		g.clauses = append(g.clauses, -1)
	}
	problem, err := sat.NewProblemFromConstraints(p.Names(), constraints, sat.WithBackground(p.Background()...))
	if err != nil {
		// every literal comes from p
		panic(err)
	}
	g.problem = problem
	return g
}
