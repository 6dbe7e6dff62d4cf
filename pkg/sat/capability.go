package sat

import (
	"context"
	"fmt"
	"strings"
)

// Capability names one of the narrow solver interfaces a backend may
// implement.
type Capability int

const (
	SatSolverCapability Capability = iota
	MusExtractorCapability
	OptimizationSolverCapability
)

func (c Capability) String() string {
	switch c {
	case SatSolverCapability:
		return "SatSolver"
	case MusExtractorCapability:
		return "MusExtractor"
	case OptimizationSolverCapability:
		return "OptimizationSolver"
	default:
		return fmt.Sprintf("Capability(%d)", int(c))
	}
}

// Descriptor identifies a backend and the capabilities it provides.
type Descriptor struct {
	Name         string
	Capabilities []Capability
}

// Supports reports whether c is among the capabilities of d.
func (d Descriptor) Supports(c Capability) bool {
	for _, each := range d.Capabilities {
		if each == c {
			return true
		}
	}
	return false
}

func (d Descriptor) String() string {
	s := make([]string, len(d.Capabilities))
	for i, c := range d.Capabilities {
		s[i] = c.String()
	}
	return fmt.Sprintf("%s (%s)", d.Name, strings.Join(s, ", "))
}

// SatSolver decides satisfiability of the problem it is bound to.
type SatSolver interface {
	// IsSatisfiable checks the bound problem under the assumptions of
	// this view.
	IsSatisfiable(ctx context.Context) (bool, error)
	// Model returns a satisfying assignment. It fails unless the last
	// call to IsSatisfiable on this view returned true.
	Model() (Model, error)
	// WithAssumptions returns a view which additionally assumes lits.
	// The receiver is left untouched.
	WithAssumptions(lits ...Literal) SatSolver
}

// MusExtractor computes unsatisfiable subsets of the problem it is bound
// to.
type MusExtractor interface {
	Extract(ctx context.Context) (*MinimalUnsatisfiableSubset, error)
}

// OptimizationSolver finds minimum cost models of an ExtendedProblem.
type OptimizationSolver interface {
	Optimize(ctx context.Context, objective Objective) (OptimalModel, error)
}

// SolverFactory constructs capability instances bound to a problem.
// Implementations hold no per-problem state and may be shared between
// goroutines.
type SolverFactory interface {
	Descriptor() Descriptor
	Supports(c Capability) bool
	NewSolver(p *Problem) (SatSolver, error)
	NewMusExtractor(p *Problem, opts ...MusOption) (MusExtractor, error)
	NewOptimizationSolver(p *ExtendedProblem) (OptimizationSolver, error)
}

// WeightedClause is a soft clause whose violation costs Weight.
type WeightedClause struct {
	Clause Clause
	Weight int
}

// ExtendedProblem adds weighted soft clauses to a Problem.
type ExtendedProblem struct {
	*Problem
	Soft []WeightedClause
}

// Preference is a literal the optimiser should make true; missing it
// costs Weight.
type Preference struct {
	Literal Literal
	Weight  int
}

// Objective is a set of weighted preferences to minimise the cost of.
type Objective struct {
	Preferences []Preference
}

// OptimalModel is a model of minimum cost.
type OptimalModel struct {
	Model Model
	Cost  int
}

// Validate checks soft clauses and objective against the problem.
func (p *ExtendedProblem) Validate(objective Objective) error {
	if p.Problem == nil {
		return malformed("extended problem without base problem")
	}
	for _, s := range p.Soft {
		if s.Weight <= 0 {
			return malformed("soft clause weight %d is not positive", s.Weight)
		}
		if err := p.CheckLiterals(s.Clause...); err != nil {
			return err
		}
	}
	for _, pref := range objective.Preferences {
		if pref.Weight <= 0 {
			return malformed("preference weight %d is not positive", pref.Weight)
		}
		if err := p.CheckLiterals(pref.Literal); err != nil {
			return err
		}
	}
	return nil
}

// Cost evaluates the objective and soft clauses under model.
func (p *ExtendedProblem) Cost(objective Objective, model Model) int {
	cost := 0
	for _, s := range p.Soft {
		if !model.Satisfies(s.Clause) {
			cost += s.Weight
		}
	}
	for _, pref := range objective.Preferences {
		if !model.Holds(pref.Literal) {
			cost += pref.Weight
		}
	}
	return cost
}
