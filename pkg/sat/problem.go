package sat

import (
	"fmt"
	"strconv"
	"strings"
)

// Variable is the 1-based index of a boolean feature variable within a
// Problem.
type Variable int

// Literal is a signed variable index in DIMACS style: +v asserts that
// variable v is true, -v that it is false. Zero is not a literal.
type Literal int

// Var returns the variable of m.
func (m Literal) Var() Variable {
	if m < 0 {
		return Variable(-m)
	}
	return Variable(m)
}

// IsPositive is true iff m asserts its variable.
func (m Literal) IsPositive() bool {
	return m > 0
}

// Not returns the complement of m.
func (m Literal) Not() Literal {
	return -m
}

// Pos returns the positive literal of v.
func (v Variable) Pos() Literal {
	return Literal(v)
}

// Neg returns the negative literal of v.
func (v Variable) Neg() Literal {
	return Literal(-v)
}

// Clause is a disjunction of literals.
type Clause []Literal

// Tautology reports whether c contains a literal and its complement.
func (c Clause) Tautology() bool {
	seen := make(map[Literal]struct{}, len(c))
	for _, m := range c {
		if _, ok := seen[m.Not()]; ok {
			return true
		}
		seen[m] = struct{}{}
	}
	return false
}

// Constraint is a source constraint, i.e. a user level rule which
// compiles to one or more clauses.
type Constraint struct {
	Label   string
	Clauses []Clause
}

// Problem is an immutable CNF formula over named boolean variables.
//
// Clauses are grouped into source constraints. Background clauses are
// part of the formula but never part of a diagnosis.
type Problem struct {
	names      []string // names[v-1] is the name of variable v
	index      map[string]Variable
	clauses    []Clause
	owner      []int // owner[i] is the constraint of clause i
	labels     []string
	groups     [][]int // groups[j] are the clauses of constraint j
	background []Clause
}

type problemOptions struct {
	background []Clause
}

// ProblemOption configures Problem construction.
type ProblemOption func(o *problemOptions)

// WithBackground adds clauses which always hold, such as variable domain
// constraints. They are never reported as part of an unsatisfiable subset.
func WithBackground(clauses ...Clause) ProblemOption {
	return func(o *problemOptions) {
		o.background = append(o.background, clauses...)
	}
}

// NewProblem returns a Problem in which every clause is its own source
// constraint.
func NewProblem(names []string, clauses []Clause, opts ...ProblemOption) (*Problem, error) {
	constraints := make([]Constraint, len(clauses))
	for i, c := range clauses {
		constraints[i] = Constraint{Clauses: []Clause{c}}
	}
	return NewProblemFromConstraints(names, constraints, opts...)
}

// NewProblemFromConstraints returns a Problem whose clauses keep the
// grouping of the given source constraints. A constraint without a label
// is labelled with the text of its clauses.
func NewProblemFromConstraints(names []string, constraints []Constraint, opts ...ProblemOption) (*Problem, error) {
	var o problemOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := Problem{
		names: make([]string, len(names)),
		index: make(map[string]Variable, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, malformed("variable %d has an empty name", i+1)
		}
		if _, ok := p.index[name]; ok {
			return nil, malformed("duplicate variable name %q", name)
		}
		p.names[i] = name
		p.index[name] = Variable(i + 1)
	}

	for j, constraint := range constraints {
		if len(constraint.Clauses) == 0 {
			return nil, malformed("constraint %d has no clauses", j)
		}
		group := make([]int, 0, len(constraint.Clauses))
		for _, c := range constraint.Clauses {
			normalized, err := p.normalize(c)
			if err != nil {
				return nil, err
			}
			group = append(group, len(p.clauses))
			p.clauses = append(p.clauses, normalized)
			p.owner = append(p.owner, j)
		}
		label := constraint.Label
		if label == "" {
			label = p.describe(p.clauses[group[0]:])
		}
		p.labels = append(p.labels, label)
		p.groups = append(p.groups, group)
	}

	for _, c := range o.background {
		normalized, err := p.normalize(c)
		if err != nil {
			return nil, err
		}
		p.background = append(p.background, normalized)
	}

	return &p, nil
}

// normalize validates the literals of c and returns a private copy with
// repeated literals collapsed.
func (p *Problem) normalize(c Clause) (Clause, error) {
	out := make(Clause, 0, len(c))
	seen := make(map[Literal]struct{}, len(c))
	for _, m := range c {
		if err := p.checkLiteral(m); err != nil {
			return nil, err
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

func (p *Problem) checkLiteral(m Literal) error {
	if m == 0 {
		return malformed("0 is not a valid literal")
	}
	if int(m.Var()) > len(p.names) {
		return malformed("literal %d references unregistered variable %d", m, m.Var())
	}
	return nil
}

// CheckLiterals fails with a MalformedProblem error if any literal does
// not reference a variable of p.
func (p *Problem) CheckLiterals(ms ...Literal) error {
	for _, m := range ms {
		if err := p.checkLiteral(m); err != nil {
			return err
		}
	}
	return nil
}

func (p *Problem) describe(clauses []Clause) string {
	if len(clauses) == 1 {
		return p.ClauseString(clauses[0])
	}
	s := make([]string, len(clauses))
	for i, c := range clauses {
		s[i] = fmt.Sprintf("(%s)", p.ClauseString(c))
	}
	return strings.Join(s, " ∧ ")
}

// NumVariables returns the number of registered variables.
func (p *Problem) NumVariables() int {
	return len(p.names)
}

// Name returns the name bound to v, or the empty string if v is not
// registered.
func (p *Problem) Name(v Variable) string {
	if v < 1 || int(v) > len(p.names) {
		return ""
	}
	return p.names[v-1]
}

// Names returns the variable names in index order.
func (p *Problem) Names() []string {
	names := make([]string, len(p.names))
	copy(names, p.names)
	return names
}

// Variable returns the variable bound to name.
func (p *Problem) Variable(name string) (Variable, bool) {
	v, ok := p.index[name]
	return v, ok
}

// NumClauses returns the number of diagnosable clauses.
func (p *Problem) NumClauses() int {
	return len(p.clauses)
}

// Clause returns a copy of clause i.
func (p *Problem) Clause(i int) Clause {
	c := make(Clause, len(p.clauses[i]))
	copy(c, p.clauses[i])
	return c
}

// Clauses calls fn for every clause in order until fn returns false. The
// clause passed to fn must not be modified.
func (p *Problem) Clauses(fn func(i int, c Clause) bool) {
	for i, c := range p.clauses {
		if !fn(i, c) {
			return
		}
	}
}

// ConstraintOf returns the source constraint clause i belongs to.
func (p *Problem) ConstraintOf(i int) int {
	return p.owner[i]
}

// NumConstraints returns the number of source constraints.
func (p *Problem) NumConstraints() int {
	return len(p.groups)
}

// ConstraintLabel returns the human readable label of constraint j.
func (p *Problem) ConstraintLabel(j int) string {
	return p.labels[j]
}

// ConstraintClauses returns the clause indices of constraint j.
func (p *Problem) ConstraintClauses(j int) []int {
	group := make([]int, len(p.groups[j]))
	copy(group, p.groups[j])
	return group
}

// Background returns a copy of the background clauses.
func (p *Problem) Background() []Clause {
	bg := make([]Clause, len(p.background))
	for i, c := range p.background {
		bg[i] = append(Clause(nil), c...)
	}
	return bg
}

// Subset returns the problem restricted to the given clauses, in the given
// order. The variable table, background and constraint labels are shared
// with p; clauses of the same source constraint stay grouped together.
func (p *Problem) Subset(indices []int) (*Problem, error) {
	sub := Problem{
		names:      p.names,
		index:      p.index,
		background: p.background,
	}
	remap := make(map[int]int)
	for _, i := range indices {
		if i < 0 || i >= len(p.clauses) {
			return nil, malformed("clause %d out of range", i)
		}
		j := p.owner[i]
		k, ok := remap[j]
		if !ok {
			k = len(sub.groups)
			remap[j] = k
			sub.groups = append(sub.groups, nil)
			sub.labels = append(sub.labels, p.labels[j])
		}
		sub.groups[k] = append(sub.groups[k], len(sub.clauses))
		sub.clauses = append(sub.clauses, p.clauses[i])
		sub.owner = append(sub.owner, k)
	}
	return &sub, nil
}

// ClauseSatisfied reports whether model satisfies clause i.
func (p *Problem) ClauseSatisfied(i int, model Model) bool {
	return model.Satisfies(p.clauses[i])
}

// Satisfies reports whether model satisfies every clause of p, including
// the background.
func (p *Problem) Satisfies(model Model) bool {
	for _, c := range p.background {
		if !model.Satisfies(c) {
			return false
		}
	}
	for _, c := range p.clauses {
		if !model.Satisfies(c) {
			return false
		}
	}
	return true
}

// LiteralString renders m using variable names.
func (p *Problem) LiteralString(m Literal) string {
	name := p.Name(m.Var())
	if name == "" {
		name = strconv.Itoa(int(m.Var()))
	}
	if m.IsPositive() {
		return name
	}
	return "¬" + name
}

// ClauseString renders c using variable names.
func (p *Problem) ClauseString(c Clause) string {
	if len(c) == 0 {
		return "⊥"
	}
	s := make([]string, len(c))
	for i, m := range c {
		s[i] = p.LiteralString(m)
	}
	return strings.Join(s, " ∨ ")
}

func (p *Problem) String() string {
	s := make([]string, len(p.clauses))
	for i, c := range p.clauses {
		s[i] = fmt.Sprintf("(%s)", p.ClauseString(c))
	}
	return strings.Join(s, " ∧ ")
}
