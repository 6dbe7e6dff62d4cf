package dimacs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/operator-framework/fmexplain/internal/cli"
	"github.com/operator-framework/fmexplain/pkg/explanation"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

const format = `
Problems are read in dimacs format. For instance:
c
c this is a comment
c header: p cnf <number of variable> <number of clauses>
c variables may be named: c <index> <name>
c 1 engine
c 2 electric
p cnf 2 2
c clauses end in zero, negative means 'not'
c 0 (zero) is not a valid literal
c consecutive clauses may form one constraint
c constraint engine is electric
1 2 0
1 -2 0
c end
c cnf: (1 or 2) and (1 and not 2)
`

func requireFile(_ *cobra.Command, args []string) error {
	if _, err := os.Stat(args[0]); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file (%s) not found", args[0])
	}
	return nil
}

// NewSolveCommand checks satisfiability and prints a model.
func NewSolveCommand(cfg *cli.Config) *cobra.Command {
	var assume []string
	cmd := &cobra.Command{
		Use:     "solve <path>",
		Short:   "Solves a sat problem given in dimacs format",
		Long:    "Solves a sat problem given in dimacs format." + format,
		Args:    cobra.ExactArgs(1),
		PreRunE: requireFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, args[0], func(ctx context.Context, _ logr.Logger, p *sat.Problem, out io.Writer) error {
				return solve(ctx, cfg, p, assume, out)
			})
		},
	}
	cmd.Flags().StringSliceVar(&assume, "assume", nil, "assume the named variables, prefix a name with - to assume it false")
	return cmd
}

// NewMusCommand prints an unsatisfiable subset of the clauses.
func NewMusCommand(cfg *cli.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mus <path>",
		Short:   "Prints a minimal unsatisfiable subset of a problem given in dimacs format",
		Long:    "Prints a minimal unsatisfiable subset of a problem given in dimacs format." + format,
		Args:    cobra.ExactArgs(1),
		PreRunE: requireFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, args[0], func(ctx context.Context, log logr.Logger, p *sat.Problem, out io.Writer) error {
				return extract(ctx, cfg, log, p, out)
			})
		},
	}
	cfg.AddMusFlags(cmd.Flags())
	return cmd
}

// NewExplainCommand explains a defect of the feature model in a file.
func NewExplainCommand(cfg *cli.Config) *cobra.Command {
	var (
		kind       string
		defect     explanation.Defect
		constraint int
	)
	cmd := &cobra.Command{
		Use:   "explain <path>",
		Short: "Explains a defect of a feature model given in dimacs format",
		Long: `Explains why a feature model is void, why a feature is dead or
false-optional, or why a constraint is redundant.` + format,
		Args:    cobra.ExactArgs(1),
		PreRunE: requireFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := explanation.ParseDefectKind(kind)
			if err != nil {
				return err
			}
			defect.Kind = k
			defect.Constraint = constraint
			return run(cmd, cfg, args[0], func(ctx context.Context, log logr.Logger, p *sat.Problem, out io.Writer) error {
				return explain(ctx, cfg, log, p, defect, out)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "defect", explanation.VoidModel.String(), "defect to explain: void-model, dead-feature, false-optional or redundant-constraint")
	cmd.Flags().StringVar(&defect.Feature, "feature", "", "feature of a dead-feature or false-optional defect")
	cmd.Flags().StringVar(&defect.Parent, "parent", "", "parent of a false-optional feature")
	cmd.Flags().IntVar(&constraint, "constraint", 0, "index of a redundant constraint")
	cfg.AddMusFlags(cmd.Flags())
	return cmd
}

// NewOptimizeCommand finds a minimum cost model for weighted preferences.
func NewOptimizeCommand(cfg *cli.Config) *cobra.Command {
	var prefer map[string]int
	cmd := &cobra.Command{
		Use:   "optimize <path>",
		Short: "Finds a model of a problem given in dimacs format that best meets weighted preferences",
		Long: `Finds a model of a problem given in dimacs format that best meets
weighted preferences. Each preference names a variable, prefixed with - to
prefer it false, and the cost of missing it, e.g. --prefer tow=2,-electric=1.` + format,
		Args:    cobra.ExactArgs(1),
		PreRunE: requireFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, args[0], func(ctx context.Context, _ logr.Logger, p *sat.Problem, out io.Writer) error {
				return optimize(ctx, cfg, p, prefer, out)
			})
		},
	}
	cmd.Flags().StringToIntVar(&prefer, "prefer", nil, "weighted preferences as name=weight pairs")
	return cmd
}

type action func(ctx context.Context, log logr.Logger, p *sat.Problem, out io.Writer) error

func run(cmd *cobra.Command, cfg *cli.Config, path string, fn action) error {
	log, flush, err := cli.NewLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}
	defer flush()

	p, err := Load(path)
	if err != nil {
		return err
	}
	log.V(1).Info("loaded problem", "path", path, "variables", p.NumVariables(), "clauses", p.NumClauses(), "constraints", p.NumConstraints())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := cfg.Context(ctx)
	defer cancel()

	out := cmd.OutOrStdout()
	err = fn(ctx, log, p, out)
	if sat.KindOf(err) == sat.Cancelled {
		fmt.Fprintf(out, "cancelled: %s\n", err)
		return nil
	}
	return err
}

func solve(ctx context.Context, cfg *cli.Config, p *sat.Problem, assume []string, out io.Writer) error {
	assumptions, err := literals(p, assume)
	if err != nil {
		return err
	}
	f, err := cfg.Factory()
	if err != nil {
		return err
	}
	s, err := f.NewSolver(p)
	if sat.KindOf(err) == sat.ContradictionAtConstruction {
		fmt.Fprintf(out, "no solution found: %s\n", err)
		return nil
	}
	if err != nil {
		return err
	}
	s = s.WithAssumptions(assumptions...)
	ok, err := s.IsSatisfiable(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "no solution found")
		return nil
	}
	model, err := s.Model()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "solution found:")
	printModel(out, p, model)
	return nil
}

func extract(ctx context.Context, cfg *cli.Config, log logr.Logger, p *sat.Problem, out io.Writer) error {
	f, err := cfg.Factory()
	if err != nil {
		return err
	}
	opts, err := cfg.MusOptions(log)
	if err != nil {
		return err
	}
	x, err := f.NewMusExtractor(p, opts...)
	if sat.KindOf(err) == sat.ContradictionAtConstruction {
		fmt.Fprintf(out, "no subset found: %s\n", err)
		return nil
	}
	if err != nil {
		return err
	}
	subset, err := x.Extract(ctx)
	if sat.KindOf(err) == sat.ProblemIsSatisfiable {
		fmt.Fprintln(out, "problem is satisfiable")
		return nil
	}
	if err != nil {
		return err
	}
	kind := "minimal"
	if !subset.Minimal() {
		kind = "implicated"
	}
	fmt.Fprintf(out, "%s unsatisfiable subset of %d clauses:\n", kind, subset.Len())
	for _, i := range subset.Clauses() {
		fmt.Fprintf(out, "%d: %s [%s]\n", i, p.ClauseString(p.Clause(i)), p.ConstraintLabel(p.ConstraintOf(i)))
	}
	return nil
}

func explain(ctx context.Context, cfg *cli.Config, log logr.Logger, p *sat.Problem, d explanation.Defect, out io.Writer) error {
	f, err := cfg.Factory()
	if err != nil {
		return err
	}
	opts, err := cfg.ExplanationOptions(log)
	if err != nil {
		return err
	}
	e, err := explanation.NewCreatorFactory(f, opts...).NewCreator().Explain(ctx, p, d)
	if sat.KindOf(err) == sat.ProblemIsSatisfiable {
		fmt.Fprintf(out, "no defect: %q is satisfiable\n", d.String())
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, e)
	return nil
}

func optimize(ctx context.Context, cfg *cli.Config, p *sat.Problem, prefer map[string]int, out io.Writer) error {
	names := make([]string, 0, len(prefer))
	for name := range prefer {
		names = append(names, name)
	}
	sort.Strings(names)
	var objective sat.Objective
	for _, name := range names {
		m, err := literals(p, []string{name})
		if err != nil {
			return err
		}
		objective.Preferences = append(objective.Preferences, sat.Preference{Literal: m[0], Weight: prefer[name]})
	}

	f, err := cfg.Factory()
	if err != nil {
		return err
	}
	o, err := f.NewOptimizationSolver(&sat.ExtendedProblem{Problem: p})
	if err != nil {
		return err
	}
	best, err := o.Optimize(ctx, objective)
	if sat.KindOf(err) == sat.Infeasible {
		fmt.Fprintln(out, "no solution found")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "solution found with cost %d:\n", best.Cost)
	printModel(out, p, best.Model)
	return nil
}

// literals resolves variable names, a leading - negating the literal.
func literals(p *sat.Problem, names []string) ([]sat.Literal, error) {
	out := make([]sat.Literal, 0, len(names))
	for _, name := range names {
		negated := strings.HasPrefix(name, "-")
		v, ok := p.Variable(strings.TrimPrefix(name, "-"))
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", strings.TrimPrefix(name, "-"))
		}
		if negated {
			out = append(out, v.Neg())
		} else {
			out = append(out, v.Pos())
		}
	}
	return out, nil
}

func printModel(out io.Writer, p *sat.Problem, model sat.Model) {
	for v := sat.Variable(1); int(v) <= p.NumVariables(); v++ {
		fmt.Fprintf(out, "%s = %t\n", p.Name(v), model.Value(v))
	}
}
