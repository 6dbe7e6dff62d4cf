package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/operator-framework/fmexplain/cmd/sudoku"

	"github.com/operator-framework/fmexplain/cmd/dimacs"
	"github.com/operator-framework/fmexplain/internal/cli"
	"github.com/operator-framework/fmexplain/pkg/backend"
)

func NewRootCmd() *cobra.Command {
	cfg := &cli.Config{}
	rootCmd := &cobra.Command{
		Use:   "fmexplain",
		Short: "fmexplain explains the defects of feature models",
		Long: `Explains why a feature model is void, why features are dead or
false-optional and why constraints are redundant, in terms of the
constraints of the model. Problems are read in dimacs format.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfg.AddFlags(rootCmd.PersistentFlags())

	// add sub-commands
	rootCmd.AddCommand(dimacs.NewSolveCommand(cfg))
	rootCmd.AddCommand(dimacs.NewMusCommand(cfg))
	rootCmd.AddCommand(dimacs.NewExplainCommand(cfg))
	rootCmd.AddCommand(dimacs.NewOptimizeCommand(cfg))
	rootCmd.AddCommand(sudoku.NewSudokuCommand(cfg))
	rootCmd.AddCommand(newBackendsCommand())

	return rootCmd
}

func newBackendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "Lists the solver backends and their capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, d := range backend.Descriptors() {
				marker := " "
				if d.Name == backend.Default {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, d)
			}
			return nil
		},
	}
}
