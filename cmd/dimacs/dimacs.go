package dimacs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Dimacs contains the variables and clauses that make up a CNF problem
// described in DIMACS format
// see: https://logic.pdmi.ras.ru/~basolver/dimacs.html
//
// Two comment forms carry meaning. "c <index> <name>" names a variable,
// as written by FeatureIDE. "c constraint <label>" starts a source
// constraint which owns every following clause up to the next
// "c constraint" or "c end" line.
type Dimacs struct {
	variables []string
	clauses   []sat.Clause
	groups    []group
}

type group struct {
	label   string
	clauses []int
}

func (d *Dimacs) Variables() []string {
	return d.variables
}

func (d *Dimacs) Clauses() []sat.Clause {
	return d.clauses
}

var (
	commentLine    = regexp.MustCompile(`^c(\s.*)?$`)
	nameLine       = regexp.MustCompile(`^c\s+(\d+)\s+(\S+)\s*$`)
	constraintLine = regexp.MustCompile(`^c\s+constraint\s+(.+)$`)
	endLine        = regexp.MustCompile(`^c\s+end\s*$`)
	headerLine     = regexp.MustCompile(`^p cnf\s+\d+\s+\d+\s*`)
	clauseLine     = regexp.MustCompile(`^(-?\d+\s+)*0`)
	cleanInput     = regexp.MustCompile(`\s\s+`)
)

// NewDimacs creates a Dimacs struct with the values
// parsed from the DIMACS formatted stream afforded by dimacsReader
func NewDimacs(dimacsReader io.Reader) (*Dimacs, error) {
	reader := bufio.NewReader(dimacsReader)

	names := map[int]string{}
	numVariables := 0
	numClauses := 0
	header := false
	var clauses []sat.Clause
	var groups []group
	open := -1

	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading dimacs data: %w", err)
		}
		eof := err != nil
		line = strings.TrimSpace(line)

		switch {
		case line == "":
		case constraintLine.MatchString(line):
			label := strings.TrimSpace(constraintLine.FindStringSubmatch(line)[1])
			groups = append(groups, group{label: label})
			open = len(groups) - 1
		case endLine.MatchString(line):
			open = -1
		case nameLine.MatchString(line):
			m := nameLine.FindStringSubmatch(line)
			index, err := strconv.Atoi(m[1])
			if err != nil || index == 0 {
				return nil, fmt.Errorf("invalid variable name comment (%s)", line)
			}
			names[index] = m[2]
		case commentLine.MatchString(line):
			// ignore comments

		case headerLine.MatchString(line):
			if header {
				return nil, fmt.Errorf("invalid dimacs format: duplicate header (%s)", line)
			}
			line = cleanInput.ReplaceAllString(line, " ")
			problem := strings.Split(line, " ")
			if len(problem) != 4 {
				return nil, fmt.Errorf("invalid statement: (%s). Valid format is p cnf <variables> <clauses>", line)
			}
			numVariables, err = strconv.Atoi(problem[2])
			if err != nil {
				return nil, fmt.Errorf("invalid number (%s) in statement (%s)", problem[2], line)
			}
			numClauses, err = strconv.Atoi(problem[3])
			if err != nil {
				return nil, fmt.Errorf("invalid number (%s) in statement (%s)", problem[3], line)
			}
			clauses = make([]sat.Clause, 0, numClauses)
			header = true

		case clauseLine.MatchString(line):
			if !header {
				return nil, fmt.Errorf("invalid dimacs format: missing header 'p cnf <variable> <clauses>'")
			}
			line = cleanInput.ReplaceAllString(line, " ")
			fields := strings.Split(line, " ")
			if fields[len(fields)-1] != "0" {
				return nil, fmt.Errorf("invalid clause (%s): does not end with 0", line)
			}
			clause, err := parseClause(fields[:len(fields)-1], numVariables)
			if err != nil {
				return nil, fmt.Errorf("invalid clause (%s): %w", line, err)
			}
			if open >= 0 {
				groups[open].clauses = append(groups[open].clauses, len(clauses))
			} else {
				groups = append(groups, group{clauses: []int{len(clauses)}})
			}
			clauses = append(clauses, clause)

		default:
			// error out if the instruction is invalid
			return nil, fmt.Errorf("invalid dimacs command: %s", line)
		}

		if eof {
			break
		}
	}

	if !header || numVariables == 0 {
		return nil, fmt.Errorf("invalid format: no variables or clauses found")
	}

	if len(clauses) != numClauses {
		return nil, fmt.Errorf("invalid format: number of clauses in header differ from the total number of clauses")
	}

	// create variables, numbered unless a comment names them
	variables := make([]string, 0, numVariables)
	for i := 1; i <= numVariables; i++ {
		name, ok := names[i]
		if !ok {
			name = fmt.Sprint(i)
		}
		variables = append(variables, name)
	}
	for index := range names {
		if index > numVariables {
			return nil, fmt.Errorf("invalid format: variable %d is named but the header declares %d variables", index, numVariables)
		}
	}

	kept := groups[:0]
	for _, g := range groups {
		if len(g.clauses) > 0 {
			kept = append(kept, g)
		}
	}

	return &Dimacs{
		variables: variables,
		clauses:   clauses,
		groups:    kept,
	}, nil
}

func parseClause(fields []string, numVariables int) (sat.Clause, error) {
	clause := make(sat.Clause, 0, len(fields))
	for _, lit := range fields {
		litInt, err := strconv.Atoi(lit)
		if err != nil {
			return nil, fmt.Errorf("%s is not a number", lit)
		}
		if litInt == 0 {
			return nil, fmt.Errorf("0 is not a valid variable")
		}
		if litInt > numVariables || litInt < -numVariables {
			return nil, fmt.Errorf("%s is not a valid variable", lit)
		}
		clause = append(clause, sat.Literal(litInt))
	}
	return clause, nil
}
