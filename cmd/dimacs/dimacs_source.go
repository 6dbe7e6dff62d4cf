package dimacs

import (
	"fmt"
	"os"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Load parses the DIMACS file at path into a problem.
func Load(path string) (*sat.Problem, error) {
	dimacsFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening dimacs file (%s): %w", path, err)
	}
	defer dimacsFile.Close()

	dimacs, err := NewDimacs(dimacsFile)
	if err != nil {
		return nil, fmt.Errorf("error parsing dimacs file (%s): %w", path, err)
	}
	p, err := dimacs.Problem()
	if err != nil {
		return nil, fmt.Errorf("error building problem from dimacs file (%s): %w", path, err)
	}
	return p, nil
}
