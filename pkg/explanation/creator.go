package explanation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/operator-framework/fmexplain/internal/mus"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// State is the lifecycle state of a Creator.
type State int

const (
	Idle State = iota
	Diagnosing
	Explained
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Diagnosing:
		return "diagnosing"
	case Explained:
		return "explained"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrBusy is returned by Explain while another call on the same Creator
// is diagnosing.
var ErrBusy = errors.New("explanation creator is busy")

type options struct {
	granularity sat.Granularity
	strategy    sat.Strategy
	minimize    bool
	logger      logr.Logger
	tracer      sat.Tracer
	timeout     time.Duration
}

// Option configures a Creator.
type Option func(o *options)

// WithGranularity selects whether clauses or whole source constraints are
// the units of minimality.
func WithGranularity(g sat.Granularity) Option {
	return func(o *options) {
		o.granularity = g
	}
}

func WithStrategy(s sat.Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithMinimization controls whether subsets that the backend does not
// prove minimal are minimised before reasons are built. It is on by
// default.
func WithMinimization(minimize bool) Option {
	return func(o *options) {
		o.minimize = minimize
	}
}

func WithLogger(logger logr.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithTracer(t sat.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithTimeout bounds every call to Explain. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

var defaults = []Option{
	func(o *options) {
		if o.tracer == nil {
			o.tracer = sat.DefaultTracer{}
		}
	},
}

func newOptions(opts ...Option) options {
	o := options{
		granularity: sat.ClauseGranularity,
		strategy:    sat.DeletionStrategy,
		minimize:    true,
		logger:      logr.Discard(),
	}
	for _, opt := range append(opts, defaults...) {
		opt(&o)
	}
	return o
}

func (o options) musOptions() []sat.MusOption {
	return []sat.MusOption{
		sat.WithGranularity(o.granularity),
		sat.WithStrategy(o.strategy),
		sat.WithTracer(o.tracer),
	}
}

// Creator explains defects with the capabilities of one solver factory.
// A Creator is safe for concurrent use, but diagnoses one defect at a
// time.
type Creator struct {
	factory sat.SolverFactory
	opts    options

	mu          sync.Mutex
	state       State
	explanation *Explanation
	err         error
}

func (c *Creator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Explanation returns the result of the last successful call to
// Explain, or nil unless the state is Explained.
func (c *Creator) Explanation() *Explanation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.explanation
}

// Err returns the error of the last failed call to Explain, or nil
// unless the state is Failed.
func (c *Creator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Creator) enter() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Diagnosing {
		return ErrBusy
	}
	c.state = Diagnosing
	c.explanation = nil
	c.err = nil
	return nil
}

func (c *Creator) leave(e *Explanation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = Failed
		c.err = err
		return
	}
	c.state = Explained
	c.explanation = e
}

// Explain diagnoses d in p. Errors are *sat.Error values: callers
// distinguish a satisfiable framing (the defect does not exist), a
// cancelled diagnosis and backend failures by their kind.
func (c *Creator) Explain(ctx context.Context, p *sat.Problem, d Defect) (*Explanation, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	e, err := c.explain(ctx, p, d)
	c.leave(e, err)
	return e, err
}

func (c *Creator) explain(ctx context.Context, p *sat.Problem, d Defect) (*Explanation, error) {
	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}
	name := c.factory.Descriptor().Name
	if !c.factory.Supports(sat.MusExtractorCapability) {
		return nil, sat.Unsupported(name, sat.MusExtractorCapability)
	}
	log := c.opts.logger.WithValues("defect", d.String(), "backend", name)

	diagnoses, err := d.frame(p)
	if err != nil {
		return nil, err
	}

	e := &Explanation{defect: d, subject: d.describe(p), backend: name, minimal: true}
	seen := make(map[int]struct{})
	for k, g := range diagnoses {
		log.V(1).Info("diagnosing", "framing", k, "clauses", g.problem.NumClauses())
		subset, err := c.diagnose(ctx, log, g.problem)
		if err != nil {
			return nil, err
		}
		if !subset.Minimal() {
			e.minimal = false
		}
		for _, r := range reasons(p, g, subset) {
			if _, ok := seen[r.Constraint]; ok {
				continue
			}
			seen[r.Constraint] = struct{}{}
			r.Rank = len(e.reasons) + 1
			e.reasons = append(e.reasons, r)
		}
	}
	log.V(1).Info("explained", "reasons", len(e.reasons), "minimal", e.minimal)
	return e, nil
}

// diagnose extracts, and if needed minimises, an unsatisfiable subset of
// p. A backend failure is retried once with fresh capabilities.
func (c *Creator) diagnose(ctx context.Context, log logr.Logger, p *sat.Problem) (*sat.MinimalUnsatisfiableSubset, error) {
	subset, err := c.attempt(ctx, p)
	if sat.KindOf(err) == sat.BackendFailure {
		log.Info("retrying after backend failure", "error", err.Error())
		subset, err = c.attempt(ctx, p)
	}
	return subset, err
}

func (c *Creator) attempt(ctx context.Context, p *sat.Problem) (*sat.MinimalUnsatisfiableSubset, error) {
	x, err := c.factory.NewMusExtractor(p, c.opts.musOptions()...)
	if err != nil {
		return nil, err
	}
	subset, err := x.Extract(ctx)
	if err != nil {
		return nil, err
	}
	if subset.Minimal() || !c.opts.minimize {
		return subset, nil
	}
	return c.minimize(ctx, subset)
}

// minimize shrinks a superset reported by the backend, asking the same
// factory for a SatSolver per candidate subset.
func (c *Creator) minimize(ctx context.Context, subset *sat.MinimalUnsatisfiableSubset) (*sat.MinimalUnsatisfiableSubset, error) {
	p := subset.Source()
	check := func(ctx context.Context, clauses []int) (bool, []int, error) {
		sub, err := p.Subset(clauses)
		if err != nil {
			return false, nil, err
		}
		s, err := c.factory.NewSolver(sub)
		if sat.KindOf(err) == sat.ContradictionAtConstruction {
			return false, nil, nil
		}
		if err != nil {
			return false, nil, err
		}
		ok, err := s.IsSatisfiable(ctx)
		return ok, nil, err
	}
	return mus.ExtractFrom(ctx, p, subset.Clauses(), check, sat.NewMusOptions(c.opts.musOptions()...))
}

// reasons maps the subset of diagnosis g back to the source constraints
// of p. Premises are dropped.
func reasons(p *sat.Problem, g *diagnosis, subset *sat.MinimalUnsatisfiableSubset) []Reason {
	byConstraint := make(map[int][]int)
	for _, i := range subset.Clauses() {
		j := g.problem.ConstraintOf(i)
		byConstraint[j] = append(byConstraint[j], g.clauses[i])
	}
	var kept []int
	for _, j := range subset.Constraints() {
		if !g.premise(j) {
			kept = append(kept, j)
		}
	}
	out := make([]Reason, len(kept))
	for k, j := range kept {
		confidence := 1.0
		if !subset.Minimal() {
			confidence = float64(k+1) / float64(len(kept))
		}
		source := g.source[j]
		out[k] = Reason{
			Constraint: source,
			Label:      p.ConstraintLabel(source),
			Clauses:    byConstraint[j],
			Confidence: confidence,
		}
	}
	return out
}
