package explanation_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/operator-framework/fmexplain/pkg/backend/gophersolver"
	"github.com/operator-framework/fmexplain/pkg/explanation"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

func TestExplanation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Explanation Suite")
}

func mustProblem(names []string, constraints ...sat.Constraint) *sat.Problem {
	p, err := sat.NewProblemFromConstraints(names, constraints)
	Expect(err).ToNot(HaveOccurred())
	return p
}

func labels(e *explanation.Explanation) []string {
	var out []string
	for _, r := range e.Reasons() {
		out = append(out, r.Label)
	}
	return out
}

// R is the root, A is a mandatory child, B and D are optional, C requires
// B and A excludes B. B and C are dead.
func deadFeatures() *sat.Problem {
	return mustProblem([]string{"R", "A", "B", "C", "D"},
		sat.Constraint{Label: "R is the root", Clauses: []sat.Clause{{1}}},
		sat.Constraint{Label: "A is a mandatory child of R", Clauses: []sat.Clause{{-1, 2}}},
		sat.Constraint{Label: "A excludes B", Clauses: []sat.Clause{{-2, -3}}},
		sat.Constraint{Label: "C requires B", Clauses: []sat.Clause{{-4, 3}}},
		sat.Constraint{Label: "D is an optional child of R", Clauses: []sat.Clause{{-5, 1}}},
	)
}

// propagation implicates the link clause a→x although the conflict among
// x and y does not need it
func detour() *sat.Problem {
	return mustProblem([]string{"a", "b", "x", "y"},
		sat.Constraint{Clauses: []sat.Clause{{1, 2}}},
		sat.Constraint{Clauses: []sat.Clause{{-1, 3}}},
		sat.Constraint{Clauses: []sat.Clause{{3, 4}}},
		sat.Constraint{Clauses: []sat.Clause{{-3, 4}}},
		sat.Constraint{Clauses: []sat.Clause{{3, -4}}},
		sat.Constraint{Clauses: []sat.Clause{{-3, -4}}},
	)
}

var _ = Describe("Creator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	for _, variant := range []struct {
		name    string
		factory func(opts ...explanation.Option) *explanation.CreatorFactory
	}{
		{name: "mus", factory: explanation.NewMusCreatorFactory},
		{name: "ltms", factory: explanation.NewLtmsCreatorFactory},
		{name: "gophersat", factory: func(opts ...explanation.Option) *explanation.CreatorFactory {
			return explanation.NewCreatorFactory(gophersolver.NewFactory(), opts...)
		}},
	} {
		variant := variant

		Describe(variant.name, func() {
			var creator *explanation.Creator

			BeforeEach(func() {
				creator = variant.factory().NewCreator()
				Expect(creator.State()).To(Equal(explanation.Idle))
			})

			It("explains a void model without the irrelevant tautology", func() {
				p := mustProblem([]string{"A", "B", "C"},
					sat.Constraint{Clauses: []sat.Clause{{1}}},
					sat.Constraint{Clauses: []sat.Clause{{-1, 2}}},
					sat.Constraint{Clauses: []sat.Clause{{-2}}},
					sat.Constraint{Clauses: []sat.Clause{{3, -3}}},
				)
				e, err := creator.Explain(ctx, p, explanation.Void())
				Expect(err).ToNot(HaveOccurred())
				Expect(labels(e)).To(Equal([]string{"A", "¬A ∨ B", "¬B"}))
				Expect(e.Minimal()).To(BeTrue())
				Expect(creator.State()).To(Equal(explanation.Explained))
				Expect(creator.Explanation()).To(Equal(e))
				Expect(e.String()).To(Equal("the model is void because of:\n1. A\n2. ¬A ∨ B\n3. ¬B"))
			})

			It("explains a dead feature without reporting the premise", func() {
				e, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("C"))
				Expect(err).ToNot(HaveOccurred())
				Expect(e.Constraints()).To(Equal([]int{0, 1, 2, 3}))
				for i, r := range e.Reasons() {
					Expect(r.Rank).To(Equal(i + 1))
					Expect(r.Confidence).To(Equal(1.0))
				}
			})

			It("explains a directly dead feature", func() {
				e, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("B"))
				Expect(err).ToNot(HaveOccurred())
				Expect(labels(e)).To(Equal([]string{"R is the root", "A is a mandatory child of R", "A excludes B"}))
			})

			It("explains a false-optional feature", func() {
				p := mustProblem([]string{"R", "A", "B"},
					sat.Constraint{Label: "A is an optional child of R", Clauses: []sat.Clause{{-2, 1}}},
					sat.Constraint{Label: "B is a mandatory child of R", Clauses: []sat.Clause{{-1, 3}, {-3, 1}}},
					sat.Constraint{Label: "B requires A", Clauses: []sat.Clause{{-3, 2}}},
				)
				e, err := creator.Explain(ctx, p, explanation.FalseOptional("A", "R"))
				Expect(err).ToNot(HaveOccurred())
				Expect(e.Constraints()).To(Equal([]int{1, 2}))
				Expect(e.Reasons()[0].Clauses).To(Equal([]int{1}))
			})

			It("explains a redundant constraint", func() {
				p := mustProblem([]string{"A", "B", "C"},
					sat.Constraint{Label: "A requires B", Clauses: []sat.Clause{{-1, 2}}},
					sat.Constraint{Label: "B requires C", Clauses: []sat.Clause{{-2, 3}}},
					sat.Constraint{Label: "A requires C", Clauses: []sat.Clause{{-1, 3}}},
				)
				e, err := creator.Explain(ctx, p, explanation.Redundant(2))
				Expect(err).ToNot(HaveOccurred())
				Expect(e.Constraints()).To(Equal([]int{0, 1}))
				Expect(e.String()).To(HavePrefix(`constraint "A requires C" is redundant because of:`))
			})

			It("explains every clause of a redundant constraint", func() {
				p := mustProblem([]string{"A", "B", "C"},
					sat.Constraint{Label: "A requires B", Clauses: []sat.Clause{{-1, 2}}},
					sat.Constraint{Label: "A requires C", Clauses: []sat.Clause{{-1, 3}}},
					sat.Constraint{Label: "A requires B and C", Clauses: []sat.Clause{{-1, 2}, {-1, 3}}},
				)
				e, err := creator.Explain(ctx, p, explanation.Redundant(2))
				Expect(err).ToNot(HaveOccurred())
				Expect(e.Constraints()).To(Equal([]int{0, 1}))
				Expect(e.Reasons()[1].Rank).To(Equal(2))
			})

			It("fails when the defect does not exist", func() {
				_, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("D"))
				Expect(err).To(MatchError(sat.ErrProblemIsSatisfiable))
				Expect(creator.State()).To(Equal(explanation.Failed))
				Expect(creator.Err()).To(Equal(err))
				Expect(creator.Explanation()).To(BeNil())
			})

			It("fails on unknown features", func() {
				_, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("Z"))
				Expect(err).To(MatchError(sat.ErrMalformedProblem))
			})

			It("fails on constraints out of range", func() {
				_, err := creator.Explain(ctx, deadFeatures(), explanation.Redundant(5))
				Expect(err).To(MatchError(sat.ErrMalformedProblem))
			})

			It("can explain again after failing", func() {
				_, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("D"))
				Expect(err).To(HaveOccurred())
				_, err = creator.Explain(ctx, deadFeatures(), explanation.Dead("B"))
				Expect(err).ToNot(HaveOccurred())
				Expect(creator.State()).To(Equal(explanation.Explained))
				Expect(creator.Err()).ToNot(HaveOccurred())
			})

			It("honours cancellation", func() {
				cancelled, cancel := context.WithCancel(ctx)
				cancel()
				_, err := creator.Explain(cancelled, deadFeatures(), explanation.Dead("B"))
				Expect(sat.KindOf(err)).To(Equal(sat.Cancelled))
				Expect(creator.State()).To(Equal(explanation.Failed))
			})

			It("minimises at constraint granularity", func() {
				p := mustProblem([]string{"A", "B", "C"},
					sat.Constraint{Label: "A and C", Clauses: []sat.Clause{{1}, {3}}},
					sat.Constraint{Label: "A requires B", Clauses: []sat.Clause{{-1, 2}}},
					sat.Constraint{Label: "B excludes C", Clauses: []sat.Clause{{-2, -3}}},
				)
				creator := variant.factory(explanation.WithGranularity(sat.ConstraintGranularity)).NewCreator()
				e, err := creator.Explain(ctx, p, explanation.Void())
				Expect(err).ToNot(HaveOccurred())
				Expect(e.Constraints()).To(Equal([]int{0, 1, 2}))
				Expect(e.Reasons()[0].Clauses).To(Equal([]int{0, 1}))
			})
		})
	}

	Describe("LTMS results", func() {
		It("are minimised by default", func() {
			creator := explanation.NewLtmsCreatorFactory().NewCreator()
			e, err := creator.Explain(ctx, detour(), explanation.Void())
			Expect(err).ToNot(HaveOccurred())
			Expect(e.Minimal()).To(BeTrue())
			Expect(e.Constraints()).To(ConsistOf(2, 3, 4, 5))
			Expect(e.Backend()).To(Equal("ltms"))
		})

		It("keep causal order and graded confidence when not minimised", func() {
			creator := explanation.NewLtmsCreatorFactory(explanation.WithMinimization(false)).NewCreator()
			e, err := creator.Explain(ctx, detour(), explanation.Void())
			Expect(err).ToNot(HaveOccurred())
			Expect(e.Minimal()).To(BeFalse())
			Expect(e.Constraints()).To(Equal([]int{1, 3, 5, 2, 4}))
			reasons := e.Reasons()
			Expect(reasons[0].Confidence).To(BeNumerically("~", 0.2))
			Expect(reasons[4].Confidence).To(BeNumerically("~", 1.0))
			Expect(e.String()).To(ContainSubstring("1. ¬a ∨ x (confidence 0.20)"))
		})

		It("match the gini subset after minimisation", func() {
			mus, err := explanation.NewMusCreatorFactory().NewCreator().Explain(ctx, detour(), explanation.Void())
			Expect(err).ToNot(HaveOccurred())
			ltms, err := explanation.NewLtmsCreatorFactory().NewCreator().Explain(ctx, detour(), explanation.Void())
			Expect(err).ToNot(HaveOccurred())
			Expect(mus.Constraints()).To(Equal([]int{2, 3, 4, 5}))
			Expect(ltms.Constraints()).To(ConsistOf(mus.Constraints()))
		})
	})

	Describe("backend failures", func() {
		It("are retried once with a fresh capability", func() {
			f := &flakyFactory{SolverFactory: gophersolver.NewFactory(), failures: 1}
			creator := explanation.NewCreatorFactory(f).NewCreator()
			e, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("B"))
			Expect(err).ToNot(HaveOccurred())
			Expect(e.Len()).To(Equal(3))
			Expect(f.extractors).To(Equal(2))
		})

		It("are terminal the second time", func() {
			f := &flakyFactory{SolverFactory: gophersolver.NewFactory(), failures: 2}
			creator := explanation.NewCreatorFactory(f).NewCreator()
			_, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("B"))
			Expect(err).To(MatchError(sat.ErrBackendFailure))
			Expect(creator.State()).To(Equal(explanation.Failed))
			Expect(f.extractors).To(Equal(2))
		})
	})

	It("requires a MUS capable backend", func() {
		creator := explanation.NewCreatorFactory(satOnlyFactory{gophersolver.NewFactory()}).NewCreator()
		_, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("B"))
		Expect(err).To(MatchError(sat.ErrUnsupportedCapability))
	})

	It("rejects a second diagnosis while busy", func() {
		f := &blockingFactory{SolverFactory: gophersolver.NewFactory(), entered: make(chan struct{}), release: make(chan struct{})}
		creator := explanation.NewCreatorFactory(f).NewCreator()

		done := make(chan error)
		go func() {
			defer GinkgoRecover()
			_, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("B"))
			done <- err
		}()
		Eventually(f.entered).Should(BeClosed())
		Expect(creator.State()).To(Equal(explanation.Diagnosing))

		_, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("C"))
		Expect(err).To(MatchError(explanation.ErrBusy))

		close(f.release)
		Eventually(done).Should(Receive(BeNil()))
		Expect(creator.State()).To(Equal(explanation.Explained))
	})

	It("times out", func() {
		f := &blockingFactory{SolverFactory: gophersolver.NewFactory(), entered: make(chan struct{}), release: make(chan struct{})}
		creator := explanation.NewCreatorFactory(f, explanation.WithTimeout(20*time.Millisecond)).NewCreator()
		_, err := creator.Explain(ctx, deadFeatures(), explanation.Dead("B"))
		Expect(sat.KindOf(err)).To(Equal(sat.Cancelled))
	})

	It("explains concurrently with separate creators", func() {
		factory := explanation.NewMusCreatorFactory()
		results := make(chan []int, 8)
		for i := 0; i < cap(results); i++ {
			go func() {
				defer GinkgoRecover()
				e, err := factory.NewCreator().Explain(ctx, deadFeatures(), explanation.Dead("C"))
				Expect(err).ToNot(HaveOccurred())
				results <- e.Constraints()
			}()
		}
		for i := 0; i < cap(results); i++ {
			Eventually(results).Should(Receive(Equal([]int{0, 1, 2, 3})))
		}
	})
})

type flakyFactory struct {
	sat.SolverFactory
	failures   int
	extractors int
}

func (f *flakyFactory) NewMusExtractor(p *sat.Problem, opts ...sat.MusOption) (sat.MusExtractor, error) {
	f.extractors++
	x, err := f.SolverFactory.NewMusExtractor(p, opts...)
	if err != nil {
		return nil, err
	}
	if f.failures > 0 {
		f.failures--
		return failingExtractor{}, nil
	}
	return x, nil
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context) (*sat.MinimalUnsatisfiableSubset, error) {
	return nil, &sat.Error{Kind: sat.BackendFailure, Op: "extract", Backend: "flaky"}
}

type satOnlyFactory struct {
	sat.SolverFactory
}

func (satOnlyFactory) Supports(c sat.Capability) bool {
	return c == sat.SatSolverCapability
}

type blockingFactory struct {
	sat.SolverFactory
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFactory) NewMusExtractor(p *sat.Problem, opts ...sat.MusOption) (sat.MusExtractor, error) {
	x, err := f.SolverFactory.NewMusExtractor(p, opts...)
	if err != nil {
		return nil, err
	}
	return blockingExtractor{x: x, f: f}, nil
}

type blockingExtractor struct {
	x sat.MusExtractor
	f *blockingFactory
}

func (b blockingExtractor) Extract(ctx context.Context) (*sat.MinimalUnsatisfiableSubset, error) {
	close(b.f.entered)
	select {
	case <-b.f.release:
		return b.x.Extract(ctx)
	case <-ctx.Done():
		return nil, sat.CancelledError("extract", ctx.Err())
	}
}
