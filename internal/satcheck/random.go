package satcheck

import (
	"fmt"
	"math/rand"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Random returns a random 3-CNF style problem. With enough clauses per
// variable most instances are unsatisfiable.
func Random(seed int64, vars, clauses int) *sat.Problem {
	random := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: not security sensitive

	names := make([]string, vars)
	for i := range names {
		names[i] = fmt.Sprintf("x%d", i+1)
	}
	cs := make([]sat.Clause, clauses)
	for i := range cs {
		width := 1 + random.Intn(3)
		c := make(sat.Clause, 0, width)
		for k := 0; k < width; k++ {
			m := sat.Literal(1 + random.Intn(vars))
			if random.Intn(2) == 0 {
				m = m.Not()
			}
			c = append(c, m)
		}
		cs[i] = c
	}
	p, err := sat.NewProblem(names, cs)
	if err != nil {
		panic(err)
	}
	return p
}
