package sudoku

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Given is a number placed on the board before solving. Row, Col and Num
// are 1-based.
type Given struct {
	Row, Col, Num int
}

func (g Given) String() string {
	return fmt.Sprintf("r%dc%d is %d", g.Row, g.Col, g.Num)
}

// ParseGiven reads a given written as three digits: row, column, number.
func ParseGiven(s string) (Given, error) {
	if len(s) != 3 {
		return Given{}, fmt.Errorf("invalid given %q: expected <row><col><num>", s)
	}
	var d [3]int
	for i := range d {
		n, err := strconv.Atoi(s[i : i+1])
		if err != nil || n < 1 || n > 9 {
			return Given{}, fmt.Errorf("invalid given %q: digits must be between 1 and 9", s)
		}
		d[i] = n
	}
	return Given{Row: d[0], Col: d[1], Num: d[2]}, nil
}

// GetID returns the variable asserting that num (0-based) is placed at
// row, col (0-based).
func GetID(row int, col int, num int) sat.Variable {
	n := num
	n += col * 9
	n += row * 81
	return sat.Variable(n + 1)
}

// NewSudoku returns the 9x9 board as a problem. The rules of the game
// are background clauses; every given is its own source constraint. A
// non-zero seed shuffles the literals of the cell clauses, which steers
// the solver to a different board.
func NewSudoku(seed int64, givens ...Given) (*sat.Problem, error) {
	// adapted from: https://github.com/go-air/gini/blob/871d828a26852598db2b88f436549634ba9533ff/sudoku_test.go#L10
	names := make([]string, 0, 9*9*9)
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			for n := 0; n < 9; n++ {
				names = append(names, fmt.Sprintf("r%dc%d=%d", row+1, col+1, n+1))
			}
		}
	}

	var rules []sat.Clause
	conflict := func(a, b sat.Variable) {
		rules = append(rules, sat.Clause{a.Neg(), b.Neg()})
	}
	r := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: board variety, not security

	// every position on the board has a number
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			c := make(sat.Clause, 9)
			for n := 0; n < 9; n++ {
				c[n] = GetID(row, col, n).Pos()
			}
			if seed != 0 {
				r.Shuffle(len(c), func(i, j int) { c[i], c[j] = c[j], c[i] })
			}
			rules = append(rules, c)
		}
	}

	// every position holds at most one number
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			for a := 0; a < 9; a++ {
				for b := a + 1; b < 9; b++ {
					conflict(GetID(row, col, a), GetID(row, col, b))
				}
			}
		}
	}

	// every row has unique numbers
	for n := 0; n < 9; n++ {
		for row := 0; row < 9; row++ {
			for colA := 0; colA < 9; colA++ {
				for colB := colA + 1; colB < 9; colB++ {
					conflict(GetID(row, colA, n), GetID(row, colB, n))
				}
			}
		}
	}

	// every column has unique numbers
	for n := 0; n < 9; n++ {
		for col := 0; col < 9; col++ {
			for rowA := 0; rowA < 9; rowA++ {
				for rowB := rowA + 1; rowB < 9; rowB++ {
					conflict(GetID(rowA, col, n), GetID(rowB, col, n))
				}
			}
		}
	}

	// every box rooted at x, y has unique numbers
	offs := []struct{ x, y int }{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}, {2, 0}, {2, 1}, {2, 2}}
	for x := 0; x < 9; x += 3 {
		for y := 0; y < 9; y += 3 {
			for n := 0; n < 9; n++ {
				for i, offA := range offs {
					for _, offB := range offs[i+1:] {
						conflict(GetID(x+offA.x, y+offA.y, n), GetID(x+offB.x, y+offB.y, n))
					}
				}
			}
		}
	}

	constraints := make([]sat.Constraint, 0, len(givens))
	for _, g := range givens {
		if g.Row < 1 || g.Row > 9 || g.Col < 1 || g.Col > 9 || g.Num < 1 || g.Num > 9 {
			return nil, fmt.Errorf("invalid given %s: outside of the board", g)
		}
		constraints = append(constraints, sat.Constraint{
			Label:   g.String(),
			Clauses: []sat.Clause{{GetID(g.Row-1, g.Col-1, g.Num-1).Pos()}},
		})
	}
	return sat.NewProblemFromConstraints(names, constraints, sat.WithBackground(rules...))
}

// Board reads the numbers placed by model, 1-based, with 0 for an empty
// position.
func Board(model sat.Model) [9][9]int {
	var board [9][9]int
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			for n := 0; n < 9; n++ {
				if model.Value(GetID(row, col, n)) {
					board[row][col] = n + 1
					break
				}
			}
		}
	}
	return board
}
