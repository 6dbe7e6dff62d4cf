// Package ginisolver binds problems to the incremental gini SAT solver.
//
// Every clause is guarded by a selector variable, so any subset of the
// clauses can be enabled through assumptions without rebuilding the
// solver. This makes the backend well suited for MUS extraction.
package ginisolver

import (
	"context"
	"fmt"

	"github.com/go-air/gini"
	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"

	"github.com/operator-framework/fmexplain/internal/mus"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Name identifies this backend.
const Name = "gini"

const (
	satisfiable   = 1
	unsatisfiable = -1
	unknown       = 0
)

var _ sat.SolverFactory = Factory{}

// Factory provides gini backed SatSolvers and MusExtractors. It does not
// support optimisation.
type Factory struct {
	newS func(vars, clauses int) inter.S
}

// Option configures a Factory.
type Option func(f *Factory)

// WithSolverConstructor replaces the constructor of the underlying
// inter.S.
func WithSolverConstructor(fn func(vars, clauses int) inter.S) Option {
	return func(f *Factory) {
		f.newS = fn
	}
}

func NewFactory(options ...Option) Factory {
	f := Factory{}
	for _, option := range append(options, defaults...) {
		option(&f)
	}
	return f
}

var defaults = []Option{
	func(f *Factory) {
		if f.newS == nil {
			f.newS = func(vars, clauses int) inter.S {
				return gini.NewVc(vars, clauses)
			}
		}
	},
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

func (Factory) NewOptimizationSolver(_ *sat.ExtendedProblem) (sat.OptimizationSolver, error) {
	return nil, sat.Unsupported(Name, sat.OptimizationSolverCapability)
}

// engine owns one gini instance loaded with a problem.
type engine struct {
	p         *sat.Problem
	g         inter.S
	selectors []z.Lit
	clauseOf  map[z.Lit]int
	all       []int
	buffer    []z.Lit
}

func (f Factory) newEngine(p *sat.Problem) (e *engine, err error) {
	defer recoverFailure("construct", &err)

	n := p.NumVariables()
	e = &engine{
		p:         p,
		g:         f.newS(n+p.NumClauses(), p.NumClauses()+len(p.Background())),
		selectors: make([]z.Lit, p.NumClauses()),
		clauseOf:  make(map[z.Lit]int, p.NumClauses()),
		all:       make([]int, p.NumClauses()),
	}

	for _, c := range p.Background() {
		if len(c) == 0 {
			return nil, contradiction()
		}
		for _, m := range c {
			e.g.Add(lit(m))
		}
		e.g.Add(z.LitNull)
	}

	p.Clauses(func(i int, c sat.Clause) bool {
		s := z.Var(n + 1 + i).Pos()
		e.selectors[i] = s
		e.clauseOf[s] = i
		e.all[i] = i
		for _, m := range c {
			e.g.Add(lit(m))
		}
		e.g.Add(s.Not())
		e.g.Add(z.LitNull)
		return true
	})

	// background units may already conflict under propagation
	outcome, _ := e.g.Test(nil)
	if outcome == unsatisfiable {
		return nil, contradiction()
	}
	e.g.Untest()
	return e, nil
}

func lit(m sat.Literal) z.Lit {
	return z.Dimacs2Lit(int(m))
}

func contradiction() error {
	return &sat.Error{Kind: sat.ContradictionAtConstruction, Op: "construct", Backend: Name}
}

func recoverFailure(op string, err *error) {
	if r := recover(); r != nil {
		*err = &sat.Error{Kind: sat.BackendFailure, Op: op, Backend: Name, Err: errors.Errorf("%v", r)}
	}
}

// solve checks the given clauses under assumptions. It returns the
// failed selectors as clause indices when the result is unsatisfiable.
func (e *engine) solve(ctx context.Context, clauses []int, assumptions []sat.Literal) (result int, core []int, err error) {
	if err := sat.CheckContext(ctx, "solve"); err != nil {
		return unknown, nil, err
	}
	defer recoverFailure("solve", &err)

	for _, i := range clauses {
		e.g.Assume(e.selectors[i])
	}
	for _, m := range assumptions {
		e.g.Assume(lit(m))
	}

	switch result = e.g.Solve(); result {
	case satisfiable:
		return result, nil, nil
	case unsatisfiable:
		e.buffer = e.g.Why(e.buffer[:0])
		core = make([]int, 0, len(e.buffer))
		for _, m := range e.buffer {
			if i, ok := e.clauseOf[m]; ok {
				core = append(core, i)
			}
		}
		return result, core, nil
	}
	return unknown, nil, &sat.Error{Kind: sat.BackendFailure, Op: "solve", Backend: Name, Err: fmt.Errorf("solver returned an unknown result")}
}

func (e *engine) model() sat.Model {
	n := e.p.NumVariables()
	m := sat.NewModel(n)
	maxVar := int(e.g.MaxVar())
	for v := 1; v <= n && v <= maxVar; v++ {
		m[v] = e.g.Value(z.Var(v).Pos())
	}
	return m
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
	result, _, err := v.e.solve(ctx, v.e.all, v.assumptions)
	if err != nil {
		return false, err
	}
	if result != satisfiable {
		return false, nil
	}
	v.model = v.e.model()
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
		result, core, err := x.e.solve(ctx, clauses, nil)
		if err != nil {
			return false, nil, err
		}
		return result == satisfiable, core, nil
	}, x.opts)
}
