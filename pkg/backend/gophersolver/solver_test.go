package gophersolver_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/operator-framework/fmexplain/internal/satcheck"
	"github.com/operator-framework/fmexplain/pkg/backend/gophersolver"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

func TestGopherSolver(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gophersat Solver Suite")
}

func mustProblem(names []string, clauses ...sat.Clause) *sat.Problem {
	p, err := sat.NewProblem(names, clauses)
	Expect(err).ToNot(HaveOccurred())
	return p
}

var _ = Describe("Factory", func() {
	var (
		ctx     context.Context
		factory sat.SolverFactory
	)

	BeforeEach(func() {
		ctx = context.Background()
		factory = gophersolver.NewFactory()
	})

	It("supports every capability", func() {
		for _, c := range []sat.Capability{sat.SatSolverCapability, sat.MusExtractorCapability, sat.OptimizationSolverCapability} {
			Expect(factory.Supports(c)).To(BeTrue())
		}
		Expect(factory.Descriptor().String()).To(Equal("gophersat (SatSolver, MusExtractor, OptimizationSolver)"))
	})

	Describe("SatSolver", func() {
		It("returns a model that satisfies every clause", func() {
			p := mustProblem([]string{"a", "b", "c"}, sat.Clause{1, 2}, sat.Clause{-1}, sat.Clause{-2, 3})
			s, err := factory.NewSolver(p)
			Expect(err).ToNot(HaveOccurred())
			ok, err := s.IsSatisfiable(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			m, err := s.Model()
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Satisfies(m)).To(BeTrue())
		})

		It("treats an empty clause as unsatisfiable", func() {
			p := mustProblem([]string{"a"}, sat.Clause{1}, sat.Clause{})
			s, err := factory.NewSolver(p)
			Expect(err).ToNot(HaveOccurred())
			ok, err := s.IsSatisfiable(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("satisfies a problem made only of tautologies", func() {
			p := mustProblem([]string{"a"}, sat.Clause{1, -1})
			s, err := factory.NewSolver(p)
			Expect(err).ToNot(HaveOccurred())
			ok, err := s.IsSatisfiable(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("scopes assumptions to the derived view", func() {
			p := mustProblem([]string{"a", "b"}, sat.Clause{1, 2})
			s, err := factory.NewSolver(p)
			Expect(err).ToNot(HaveOccurred())

			ok, err := s.WithAssumptions(-1).WithAssumptions(-2).IsSatisfiable(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())

			ok, err = s.IsSatisfiable(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("detects contradicting background clauses", func() {
			p, err := sat.NewProblem([]string{"a", "b"}, []sat.Clause{{2}}, sat.WithBackground(sat.Clause{1}, sat.Clause{-1}))
			Expect(err).ToNot(HaveOccurred())
			_, err = factory.NewSolver(p)
			Expect(err).To(MatchError(sat.ErrContradictionAtConstruction))
		})

		It("honours cancellation", func() {
			p := mustProblem([]string{"a"}, sat.Clause{1})
			s, err := factory.NewSolver(p)
			Expect(err).ToNot(HaveOccurred())
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err = s.IsSatisfiable(cancelled)
			Expect(err).To(MatchError(sat.ErrCancelled))
		})
	})

	Describe("MusExtractor", func() {
		It("excludes a tautological clause", func() {
			p := mustProblem([]string{"A", "B", "C"}, sat.Clause{1}, sat.Clause{-1, 2}, sat.Clause{-2}, sat.Clause{3, -3})
			x, err := factory.NewMusExtractor(p)
			Expect(err).ToNot(HaveOccurred())
			m, err := x.Extract(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(m.Clauses()).To(Equal([]int{0, 1, 2}))
		})

		It("fails on satisfiable problems", func() {
			p := mustProblem([]string{"A", "B"}, sat.Clause{1}, sat.Clause{2})
			x, err := factory.NewMusExtractor(p, sat.WithStrategy(sat.QuickXplainStrategy))
			Expect(err).ToNot(HaveOccurred())
			_, err = x.Extract(ctx)
			Expect(err).To(MatchError(sat.ErrProblemIsSatisfiable))
		})

		It("finds minimal subsets of random problems", func() {
			for seed := int64(1); seed <= 5; seed++ {
				p := satcheck.Random(seed, 6, 20)
				if ok, _ := satcheck.Satisfiable(p, nil); ok {
					continue
				}
				x, err := factory.NewMusExtractor(p)
				Expect(err).ToNot(HaveOccurred())
				m, err := x.Extract(ctx)
				Expect(err).ToNot(HaveOccurred())
				Expect(satcheck.Minimal(m)).To(BeTrue(), "seed %d", seed)
			}
		})
	})

	Describe("OptimizationSolver", func() {
		It("minimises the weight of unmet preferences", func() {
			p := mustProblem([]string{"a", "b"}, sat.Clause{1, 2})
			o, err := factory.NewOptimizationSolver(&sat.ExtendedProblem{Problem: p})
			Expect(err).ToNot(HaveOccurred())
			result, err := o.Optimize(ctx, sat.Objective{Preferences: []sat.Preference{
				{Literal: -1, Weight: 3},
				{Literal: -2, Weight: 1},
			}})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Cost).To(Equal(1))
			Expect(p.Satisfies(result.Model)).To(BeTrue())
			Expect(result.Model.Value(1)).To(BeFalse())
		})

		It("counts violated soft clauses", func() {
			p := mustProblem([]string{"a", "b"}, sat.Clause{-1})
			ep := &sat.ExtendedProblem{Problem: p, Soft: []sat.WeightedClause{
				{Clause: sat.Clause{1}, Weight: 2},
				{Clause: sat.Clause{2}, Weight: 5},
				{Clause: sat.Clause{}, Weight: 4},
			}}
			o, err := factory.NewOptimizationSolver(ep)
			Expect(err).ToNot(HaveOccurred())
			result, err := o.Optimize(ctx, sat.Objective{})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Cost).To(Equal(6))
			Expect(result.Model.Value(2)).To(BeTrue())
		})

		It("is zero cost when all preferences can be met", func() {
			p := mustProblem([]string{"a", "b"}, sat.Clause{1, 2})
			o, err := factory.NewOptimizationSolver(&sat.ExtendedProblem{Problem: p})
			Expect(err).ToNot(HaveOccurred())
			result, err := o.Optimize(ctx, sat.Objective{Preferences: []sat.Preference{{Literal: 2, Weight: 1}}})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Cost).To(BeZero())
		})

		It("reports infeasible hard clauses", func() {
			p := mustProblem([]string{"a"}, sat.Clause{1}, sat.Clause{-1})
			o, err := factory.NewOptimizationSolver(&sat.ExtendedProblem{Problem: p})
			Expect(err).ToNot(HaveOccurred())
			_, err = o.Optimize(ctx, sat.Objective{})
			Expect(err).To(MatchError(sat.ErrInfeasible))
		})

		It("rejects non-positive weights", func() {
			p := mustProblem([]string{"a"}, sat.Clause{1})
			o, err := factory.NewOptimizationSolver(&sat.ExtendedProblem{Problem: p})
			Expect(err).ToNot(HaveOccurred())
			_, err = o.Optimize(ctx, sat.Objective{Preferences: []sat.Preference{{Literal: 1, Weight: 0}}})
			Expect(err).To(MatchError(sat.ErrMalformedProblem))
		})

		It("rejects preferences over unknown variables", func() {
			p := mustProblem([]string{"a"}, sat.Clause{1})
			o, err := factory.NewOptimizationSolver(&sat.ExtendedProblem{Problem: p})
			Expect(err).ToNot(HaveOccurred())
			_, err = o.Optimize(ctx, sat.Objective{Preferences: []sat.Preference{{Literal: -4, Weight: 1}}})
			Expect(err).To(MatchError(sat.ErrMalformedProblem))
		})
	})
})
