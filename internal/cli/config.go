package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/operator-framework/fmexplain/pkg/backend"
	"github.com/operator-framework/fmexplain/pkg/explanation"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Config carries the flags common to every command.
type Config struct {
	Backend     string
	Timeout     time.Duration
	Verbose     bool
	Granularity string
	Strategy    string
	NoMinimize  bool
	Trace       bool
}

// AddFlags binds the global flags of c to fs.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Backend, "backend", "b", backend.Default, fmt.Sprintf("solver backend, one of %v", backend.Names()))
	fs.DurationVar(&c.Timeout, "timeout", 0, "abort after this long, 0 disables the limit")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "log every solver step")
}

// AddMusFlags binds the flags of commands that extract unsatisfiable
// subsets to fs.
func (c *Config) AddMusFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Granularity, "granularity", sat.ClauseGranularity.String(), "unit of minimality, clause or constraint")
	fs.StringVar(&c.Strategy, "strategy", sat.DeletionStrategy.String(), "minimisation strategy, deletion or quickxplain")
	fs.BoolVar(&c.NoMinimize, "no-minimize", false, "report implicated subsets without minimising them")
	fs.BoolVar(&c.Trace, "trace", false, "log every satisfiability check of the minimisation")
}

// Factory returns the solver factory chosen with --backend.
func (c *Config) Factory() (sat.SolverFactory, error) {
	return backend.New(c.Backend)
}

// Context bounds ctx by --timeout.
func (c *Config) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// MusOptions translates the minimisation flags.
func (c *Config) MusOptions(logger logr.Logger) ([]sat.MusOption, error) {
	g, s, err := c.parse()
	if err != nil {
		return nil, err
	}
	opts := []sat.MusOption{sat.WithGranularity(g), sat.WithStrategy(s)}
	if c.Trace {
		opts = append(opts, sat.WithTracer(sat.LogrTracer{Logger: logger}))
	}
	return opts, nil
}

// ExplanationOptions translates the minimisation flags for a Creator.
func (c *Config) ExplanationOptions(logger logr.Logger) ([]explanation.Option, error) {
	g, s, err := c.parse()
	if err != nil {
		return nil, err
	}
	opts := []explanation.Option{
		explanation.WithGranularity(g),
		explanation.WithStrategy(s),
		explanation.WithMinimization(!c.NoMinimize),
		explanation.WithLogger(logger),
	}
	if c.Trace {
		opts = append(opts, explanation.WithTracer(sat.LogrTracer{Logger: logger}))
	}
	return opts, nil
}

func (c *Config) parse() (sat.Granularity, sat.Strategy, error) {
	granularity := c.Granularity
	if granularity == "" {
		granularity = sat.ClauseGranularity.String()
	}
	g, err := sat.ParseGranularity(granularity)
	if err != nil {
		return 0, 0, err
	}
	strategy := c.Strategy
	if strategy == "" {
		strategy = sat.DeletionStrategy.String()
	}
	s, err := sat.ParseStrategy(strategy)
	if err != nil {
		return 0, 0, err
	}
	return g, s, nil
}
