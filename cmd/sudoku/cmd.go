package sudoku

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/operator-framework/fmexplain/internal/cli"
	"github.com/operator-framework/fmexplain/pkg/explanation"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

func NewSudokuCommand(cfg *cli.Config) *cobra.Command {
	var (
		seed   int64
		givens []string
	)
	cmd := &cobra.Command{
		Use:   "sudoku",
		Short: "Returns a solved sudoku board, or explains why the givens admit none",
		Long: `Returns a solved sudoku board. Givens are written as three digits,
row, column and number, e.g. --given 115 places a 5 in the top left corner.
When the givens contradict each other the command explains which of them
do.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]Given, 0, len(givens))
			for _, s := range givens {
				g, err := ParseGiven(s)
				if err != nil {
					return err
				}
				parsed = append(parsed, g)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := cfg.Context(ctx)
			defer cancel()
			err := solve(ctx, cfg, seed, parsed, cmd.OutOrStdout())
			if sat.KindOf(err) == sat.Cancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "cancelled: %s\n", err)
				return nil
			}
			return err
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "shuffle the search to produce other boards, 0 keeps it deterministic")
	cmd.Flags().StringArrayVar(&givens, "given", nil, "a number placed before solving as <row><col><num>")
	return cmd
}

func solve(ctx context.Context, cfg *cli.Config, seed int64, givens []Given, out io.Writer) error {
	log, flush, err := cli.NewLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}
	defer flush()

	p, err := NewSudoku(seed, givens...)
	if err != nil {
		return err
	}
	f, err := cfg.Factory()
	if err != nil {
		return err
	}

	s, err := f.NewSolver(p)
	if err != nil {
		return err
	}
	ok, err := s.IsSatisfiable(ctx)
	if err != nil {
		return err
	}
	if ok {
		model, err := s.Model()
		if err != nil {
			return err
		}
		printBoard(out, Board(model))
		return nil
	}

	log.V(1).Info("no solution found, explaining", "givens", len(givens))
	e, err := explanation.NewCreatorFactory(f, explanation.WithLogger(log)).NewCreator().Explain(ctx, p, explanation.Void())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "no solution found:")
	fmt.Fprintln(out, e)
	return nil
}

func printBoard(out io.Writer, board [9][9]int) {
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			if board[row][col] == 0 {
				fmt.Fprint(out, " ")
			} else {
				fmt.Fprintf(out, "%d", board[row][col])
			}
			if col != 8 {
				fmt.Fprint(out, " ")
			}
		}
		fmt.Fprint(out, "\n")
	}
}
