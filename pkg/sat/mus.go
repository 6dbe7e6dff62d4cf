package sat

import "fmt"

// Granularity selects the unit at which minimality is evaluated.
type Granularity int

const (
	// ClauseGranularity makes every clause a unit: removing any single
	// clause of the subset makes it satisfiable.
	ClauseGranularity Granularity = iota
	// ConstraintGranularity groups clauses back to their source
	// constraints: removing any single constraint, with all its clauses,
	// makes the subset satisfiable.
	ConstraintGranularity
)

func (g Granularity) String() string {
	switch g {
	case ClauseGranularity:
		return "clause"
	case ConstraintGranularity:
		return "constraint"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

// ParseGranularity is the inverse of Granularity.String.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "clause":
		return ClauseGranularity, nil
	case "constraint":
		return ConstraintGranularity, nil
	}
	return 0, fmt.Errorf("unknown granularity %q", s)
}

// Strategy selects the minimisation algorithm.
type Strategy int

const (
	DeletionStrategy Strategy = iota
	QuickXplainStrategy
)

func (s Strategy) String() string {
	switch s {
	case DeletionStrategy:
		return "deletion"
	case QuickXplainStrategy:
		return "quickxplain"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy is the inverse of Strategy.String.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "deletion":
		return DeletionStrategy, nil
	case "quickxplain":
		return QuickXplainStrategy, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// MusOptions holds the settings of a MusExtractor.
type MusOptions struct {
	Granularity Granularity
	Strategy    Strategy
	Tracer      Tracer
}

// MusOption configures a MusExtractor.
type MusOption func(o *MusOptions)

func WithGranularity(g Granularity) MusOption {
	return func(o *MusOptions) {
		o.Granularity = g
	}
}

func WithStrategy(s Strategy) MusOption {
	return func(o *MusOptions) {
		o.Strategy = s
	}
}

func WithTracer(t Tracer) MusOption {
	return func(o *MusOptions) {
		o.Tracer = t
	}
}

// NewMusOptions applies opts over the defaults.
func NewMusOptions(opts ...MusOption) MusOptions {
	o := MusOptions{
		Granularity: ClauseGranularity,
		Strategy:    DeletionStrategy,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Tracer == nil {
		o.Tracer = DefaultTracer{}
	}
	return o
}

// Units splits the clauses of p into minimisation units according to g.
// Each unit is a list of clause indices.
func Units(p *Problem, g Granularity) [][]int {
	if g == ConstraintGranularity {
		units := make([][]int, p.NumConstraints())
		for j := range units {
			units[j] = p.ConstraintClauses(j)
		}
		return units
	}
	units := make([][]int, p.NumClauses())
	for i := range units {
		units[i] = []int{i}
	}
	return units
}

// MinimalUnsatisfiableSubset is an unsatisfiable subset of the clauses of
// a problem.
//
// When Minimal is true, removing any single unit (a clause or, at
// ConstraintGranularity, all clauses of one source constraint) makes the
// subset satisfiable. Propagation based backends report implicated
// supersets with Minimal false.
type MinimalUnsatisfiableSubset struct {
	problem     *Problem
	clauses     []int
	granularity Granularity
	minimal     bool
}

// NewMinimalUnsatisfiableSubset binds clause indices, in traversal order,
// to the problem they index.
func NewMinimalUnsatisfiableSubset(p *Problem, clauses []int, g Granularity, minimal bool) *MinimalUnsatisfiableSubset {
	cs := make([]int, len(clauses))
	copy(cs, clauses)
	return &MinimalUnsatisfiableSubset{
		problem:     p,
		clauses:     cs,
		granularity: g,
		minimal:     minimal,
	}
}

// Clauses returns the clause indices of the subset in traversal order.
func (m *MinimalUnsatisfiableSubset) Clauses() []int {
	cs := make([]int, len(m.clauses))
	copy(cs, m.clauses)
	return cs
}

// Len returns the number of clauses in the subset.
func (m *MinimalUnsatisfiableSubset) Len() int {
	return len(m.clauses)
}

// Constraints returns the source constraints of the subset in order of
// first appearance.
func (m *MinimalUnsatisfiableSubset) Constraints() []int {
	var out []int
	seen := make(map[int]struct{})
	for _, i := range m.clauses {
		j := m.problem.ConstraintOf(i)
		if _, ok := seen[j]; ok {
			continue
		}
		seen[j] = struct{}{}
		out = append(out, j)
	}
	return out
}

func (m *MinimalUnsatisfiableSubset) Granularity() Granularity {
	return m.granularity
}

func (m *MinimalUnsatisfiableSubset) Minimal() bool {
	return m.minimal
}

// Source returns the problem the clause indices refer to.
func (m *MinimalUnsatisfiableSubset) Source() *Problem {
	return m.problem
}

// Problem returns the subset as a problem sharing the variable table of
// the source problem.
func (m *MinimalUnsatisfiableSubset) Problem() *Problem {
	sub, err := m.problem.Subset(m.clauses)
	if err != nil {
		// indices were validated on construction by the backend
		panic(err)
	}
	return sub
}

func (m *MinimalUnsatisfiableSubset) String() string {
	return m.Problem().String()
}
