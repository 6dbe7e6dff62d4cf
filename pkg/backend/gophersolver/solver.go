// Package gophersolver binds problems to the gophersat MAXSAT solver.
//
// gophersat is not incremental: every check builds a fresh maxsat.Problem
// from the enabled clauses. Soft clauses and preferences become weighted
// clauses, so this is the only bundled backend that optimises.
//
// Among models of equal optimal cost, the one returned is the last
// improving model found by gophersat's linear search. It depends on the
// order in which clauses are given and is stable for a fixed problem.
package gophersolver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/crillab/gophersat/maxsat"
	"github.com/pkg/errors"

	"github.com/operator-framework/fmexplain/internal/mus"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Name identifies this backend.
const Name = "gophersat"

var _ sat.SolverFactory = Factory{}

// Factory provides gophersat backed capabilities. It supports all of
// them.
type Factory struct {
	verbose bool
}

type Option func(f *Factory)

// WithVerbose makes gophersat print its search statistics to stdout.
func WithVerbose(verbose bool) Option {
	return func(f *Factory) {
		f.verbose = verbose
	}
}

func NewFactory(options ...Option) Factory {
	f := Factory{}
	for _, option := range options {
		option(&f)
	}
	return f
}

func (Factory) Descriptor() sat.Descriptor {
	return sat.Descriptor{
		Name: Name,
		Capabilities: []sat.Capability{
			sat.SatSolverCapability,
			sat.MusExtractorCapability,
			sat.OptimizationSolverCapability,
		},
	}
}

func (f Factory) Supports(c sat.Capability) bool {
	return f.Descriptor().Supports(c)
}

func (f Factory) NewSolver(p *sat.Problem) (sat.SatSolver, error) {
	e, err := f.newEngine(p)
	if err != nil {
		return nil, err
	}
	return &view{e: e}, nil
}

func (f Factory) NewMusExtractor(p *sat.Problem, opts ...sat.MusOption) (sat.MusExtractor, error) {
	e, err := f.newEngine(p)
	if err != nil {
		return nil, err
	}
	return &extractor{e: e, opts: sat.NewMusOptions(opts...)}, nil
}

func (f Factory) NewOptimizationSolver(p *sat.ExtendedProblem) (sat.OptimizationSolver, error) {
	if p == nil || p.Problem == nil {
		return nil, &sat.Error{Kind: sat.MalformedProblem, Op: "construct", Backend: Name, Err: fmt.Errorf("no problem")}
	}
	e, err := f.newEngine(p.Problem)
	if err != nil {
		return nil, err
	}
	return &optimizer{e: e, p: p}, nil
}

type engine struct {
	p          *sat.Problem
	verbose    bool
	background []sat.Clause
	all        []int
}

func (f Factory) newEngine(p *sat.Problem) (*engine, error) {
	e := &engine{
		p:          p,
		verbose:    f.verbose,
		background: p.Background(),
		all:        make([]int, p.NumClauses()),
	}
	for i := range e.all {
		e.all[i] = i
	}
	if len(e.background) == 0 {
		return e, nil
	}
	_, ok, err := e.solve(context.Background(), "construct", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &sat.Error{Kind: sat.ContradictionAtConstruction, Op: "construct", Backend: Name}
	}
	return e, nil
}

func name(v sat.Variable) string {
	return "v" + strconv.Itoa(int(v))
}

func lits(c sat.Clause) []maxsat.Lit {
	out := make([]maxsat.Lit, len(c))
	for i, m := range c {
		if m.IsPositive() {
			out[i] = maxsat.Var(name(m.Var()))
		} else {
			out[i] = maxsat.Not(name(m.Var()))
		}
	}
	return out
}

// solve runs one MAXSAT search over the background, the selected clauses
// and the unit assumptions, minimising the weight of violated soft
// constraints.
func (e *engine) solve(ctx context.Context, op string, selected []int, assumptions []sat.Literal, soft []maxsat.Constr) (model sat.Model, ok bool, err error) {
	if err := sat.CheckContext(ctx, op); err != nil {
		return nil, false, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = &sat.Error{Kind: sat.BackendFailure, Op: op, Backend: Name, Err: errors.Errorf("%v", r)}
		}
	}()

	constrs := make([]maxsat.Constr, 0, len(e.background)+len(selected)+len(assumptions)+len(soft))
	hard := func(c sat.Clause) bool {
		if len(c) == 0 {
			return false
		}
		if !c.Tautology() {
			constrs = append(constrs, maxsat.HardClause(lits(c)...))
		}
		return true
	}
	for _, c := range e.background {
		if !hard(c) {
			return nil, false, nil
		}
	}
	for _, i := range selected {
		if !hard(e.p.Clause(i)) {
			return nil, false, nil
		}
	}
	for _, m := range assumptions {
		hard(sat.Clause{m})
	}
	constrs = append(constrs, soft...)

	model = sat.NewModel(e.p.NumVariables())
	if len(constrs) == 0 {
		return model, true, nil
	}

	pb := maxsat.New(constrs...)
	pb.SetVerbose(e.verbose)
	bindings, _ := pb.Solve()
	if bindings == nil {
		return nil, false, nil
	}
	for v := sat.Variable(1); int(v) <= e.p.NumVariables(); v++ {
		model[v] = bindings[name(v)]
	}
	return model, true, nil
}

type view struct {
	e           *engine
	assumptions []sat.Literal
	model       sat.Model
}

func (v *view) IsSatisfiable(ctx context.Context) (bool, error) {
	v.model = nil
	if err := v.e.p.CheckLiterals(v.assumptions...); err != nil {
		return false, err
	}
	model, ok, err := v.e.solve(ctx, "solve", v.e.all, v.assumptions, nil)
	if err != nil || !ok {
		return false, err
	}
	v.model = model
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
	return &view{e: v.e, assumptions: assumptions}
}

type extractor struct {
	e    *engine
	opts sat.MusOptions
}

func (x *extractor) Extract(ctx context.Context) (*sat.MinimalUnsatisfiableSubset, error) {
	return mus.Extract(ctx, x.e.p, func(ctx context.Context, clauses []int) (bool, []int, error) {
		_, ok, err := x.e.solve(ctx, "extract", clauses, nil, nil)
		return ok, nil, err
	}, x.opts)
}

type optimizer struct {
	e *engine
	p *sat.ExtendedProblem
}

func (o *optimizer) Optimize(ctx context.Context, objective sat.Objective) (sat.OptimalModel, error) {
	if err := o.p.Validate(objective); err != nil {
		return sat.OptimalModel{}, err
	}

	var soft []maxsat.Constr
	weighted := func(c sat.Clause, w int) {
		// empty soft clauses cost their weight in every model
		if len(c) == 0 || c.Tautology() {
			return
		}
		soft = append(soft, maxsat.WeightedClause(lits(c), w))
	}
	for _, s := range o.p.Soft {
		weighted(s.Clause, s.Weight)
	}
	for _, pref := range objective.Preferences {
		weighted(sat.Clause{pref.Literal}, pref.Weight)
	}

	model, ok, err := o.e.solve(ctx, "optimize", o.e.all, nil, soft)
	if err != nil {
		return sat.OptimalModel{}, err
	}
	if !ok {
		return sat.OptimalModel{}, &sat.Error{Kind: sat.Infeasible, Op: "optimize", Backend: Name}
	}
	return sat.OptimalModel{Model: model, Cost: o.p.Cost(objective, model)}, nil
}
