package ltms

import (
	"context"
	"fmt"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Name identifies this backend.
const Name = "ltms"

var _ sat.SolverFactory = Factory{}

// Factory provides LTMS backed SatSolvers and MusExtractors. The subsets
// its extractors return are implicated by propagation and are not
// necessarily minimal.
type Factory struct{}

func NewFactory() Factory {
	return Factory{}
}

func (Factory) Descriptor() sat.Descriptor {
	return sat.Descriptor{
		Name:         Name,
		Capabilities: []sat.Capability{sat.SatSolverCapability, sat.MusExtractorCapability},
	}
}

func (f Factory) Supports(c sat.Capability) bool {
	return f.Descriptor().Supports(c)
}

func (Factory) NewSolver(p *sat.Problem) (sat.SatSolver, error) {
	l, err := load(p)
	if err != nil {
		return nil, err
	}
	return &view{l: l}, nil
}

func (Factory) NewMusExtractor(p *sat.Problem, opts ...sat.MusOption) (sat.MusExtractor, error) {
	l, err := load(p)
	if err != nil {
		return nil, err
	}
	return &extractor{l: l, opts: sat.NewMusOptions(opts...)}, nil
}

func (Factory) NewOptimizationSolver(_ *sat.ExtendedProblem) (sat.OptimizationSolver, error) {
	return nil, sat.Unsupported(Name, sat.OptimizationSolverCapability)
}

// load builds an Ltms for p after checking that its background does not
// refute itself by propagation.
func load(p *sat.Problem) (*Ltms, error) {
	background, err := p.Subset([]int{})
	if err != nil {
		return nil, err
	}
	ok, err := New(background).Propagate(context.Background())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &sat.Error{Kind: sat.ContradictionAtConstruction, Op: "construct", Backend: Name}
	}
	return New(p), nil
}

type view struct {
	l           *Ltms
	assumptions []sat.Literal
	model       sat.Model
}

func (v *view) IsSatisfiable(ctx context.Context) (bool, error) {
	v.model = nil
	ok, _, err := v.l.Solve(ctx, v.assumptions...)
	if err != nil || !ok {
		return false, err
	}
	v.model = v.l.Model()
	return true, nil
}

func (v *view) Model() (sat.Model, error) {
	if v.model == nil {
		return nil, fmt.Errorf("no model: last satisfiability check did not succeed")
	}
	m := make(sat.Model, len(v.model))
	copy(m, v.model)
	return m, nil
}

func (v *view) WithAssumptions(lits ...sat.Literal) sat.SatSolver {
	assumptions := make([]sat.Literal, 0, len(v.assumptions)+len(lits))
	assumptions = append(assumptions, v.assumptions...)
	assumptions = append(assumptions, lits...)
	return &view{l: v.l, assumptions: assumptions}
}

type extractor struct {
	l    *Ltms
	opts sat.MusOptions
}

func (x *extractor) Extract(ctx context.Context) (*sat.MinimalUnsatisfiableSubset, error) {
	ok, implicated, err := x.l.Solve(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, &sat.Error{Kind: sat.ProblemIsSatisfiable, Op: "extract", Backend: Name}
	}
	if x.opts.Granularity == sat.ConstraintGranularity {
		implicated = byConstraint(x.l.p, implicated)
	}
	return sat.NewMinimalUnsatisfiableSubset(x.l.p, implicated, x.opts.Granularity, false), nil
}

// byConstraint widens clauses to every clause of their source
// constraints, keeping constraints in order of first appearance.
func byConstraint(p *sat.Problem, clauses []int) []int {
	var out []int
	seen := make(map[int]struct{})
	for _, i := range clauses {
		j := p.ConstraintOf(i)
		if _, ok := seen[j]; ok {
			continue
		}
		seen[j] = struct{}{}
		out = append(out, p.ConstraintClauses(j)...)
	}
	return out
}
