package mus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/fmexplain/internal/satcheck"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// bruteForce checks unit selections of p by enumeration. With cores set
// it reports the active set itself as a core, which is always sound.
func bruteForce(p *sat.Problem, cores bool) ClauseCheck {
	return func(_ context.Context, clauses []int) (bool, []int, error) {
		ok, _ := satcheck.Satisfiable(p, clauses)
		if ok || !cores {
			return ok, nil, nil
		}
		return false, clauses, nil
	}
}

func problem(t *testing.T, names []string, clauses ...sat.Clause) *sat.Problem {
	t.Helper()
	p, err := sat.NewProblem(names, clauses)
	require.NoError(t, err)
	return p
}

func TestExtract(t *testing.T) {
	type tc struct {
		Name     string
		Names    []string
		Clauses  []sat.Clause
		Expected []int
	}

	for _, tt := range []tc{
		{
			Name:     "chain with irrelevant unit",
			Names:    []string{"A", "B", "C"},
			Clauses:  []sat.Clause{{1}, {-1, 2}, {-2}, {3}},
			Expected: []int{0, 1, 2},
		},
		{
			Name:     "direct contradiction",
			Names:    []string{"A"},
			Clauses:  []sat.Clause{{1}, {-1}},
			Expected: []int{0, 1},
		},
		{
			Name:     "empty clause alone",
			Names:    []string{"A"},
			Clauses:  []sat.Clause{{1}, {}},
			Expected: []int{1},
		},
		{
			Name:     "tautology never in subset",
			Names:    []string{"A", "C"},
			Clauses:  []sat.Clause{{2, -2}, {1}, {-1}},
			Expected: []int{1, 2},
		},
		{
			Name:     "later conflict kept in order",
			Names:    []string{"A", "B", "C"},
			Clauses:  []sat.Clause{{3}, {2}, {1}, {-1, -2}},
			Expected: []int{1, 2, 3},
		},
	} {
		for _, strategy := range []sat.Strategy{sat.DeletionStrategy, sat.QuickXplainStrategy} {
			for _, cores := range []bool{false, true} {
				t.Run(tt.Name+"/"+strategy.String(), func(t *testing.T) {
					p := problem(t, tt.Names, tt.Clauses...)
					opts := sat.NewMusOptions(sat.WithStrategy(strategy))
					m, err := Extract(context.Background(), p, bruteForce(p, cores), opts)
					require.NoError(t, err)
					assert.Equal(t, tt.Expected, m.Clauses())
					assert.True(t, m.Minimal())
					assert.True(t, satcheck.Minimal(m))
				})
			}
		}
	}
}

func TestExtractSatisfiable(t *testing.T) {
	p := problem(t, []string{"A", "B"}, sat.Clause{1}, sat.Clause{-1, 2})
	_, err := Extract(context.Background(), p, bruteForce(p, false), sat.NewMusOptions())
	assert.True(t, errors.Is(err, sat.ErrProblemIsSatisfiable))
}

func TestExtractConstraintGranularity(t *testing.T) {
	p, err := sat.NewProblemFromConstraints([]string{"A", "B", "C"}, []sat.Constraint{
		{Label: "a and c", Clauses: []sat.Clause{{1}, {3}}},
		{Label: "not a", Clauses: []sat.Clause{{-1}}},
		{Label: "b", Clauses: []sat.Clause{{2}}},
	})
	require.NoError(t, err)

	opts := sat.NewMusOptions(sat.WithGranularity(sat.ConstraintGranularity))
	m, err := Extract(context.Background(), p, bruteForce(p, false), opts)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, m.Clauses())
	assert.Equal(t, []int{0, 1}, m.Constraints())
	assert.Equal(t, sat.ConstraintGranularity, m.Granularity())
	assert.True(t, satcheck.Minimal(m))
}

func TestExtractFrom(t *testing.T) {
	p := problem(t, []string{"A", "B"}, sat.Clause{1}, sat.Clause{-1}, sat.Clause{2}, sat.Clause{-2})
	m, err := ExtractFrom(context.Background(), p, []int{2, 3}, bruteForce(p, false), sat.NewMusOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, m.Clauses())
}

func TestMinimizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	oracle := OracleFunc(func(context.Context, []int) (bool, []int, error) {
		calls++
		return false, nil, nil
	})
	_, err := Minimize(ctx, oracle, []int{0, 1}, sat.DeletionStrategy, nil)
	assert.True(t, errors.Is(err, sat.ErrCancelled))
	assert.Equal(t, 0, calls)
}

func TestMinimizeCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	oracle := OracleFunc(func(_ context.Context, active []int) (bool, []int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return len(active) < 2, nil, nil
	})
	_, err := Minimize(ctx, oracle, []int{0, 1, 2, 3}, sat.DeletionStrategy, nil)
	assert.Equal(t, sat.Cancelled, sat.KindOf(err))
	assert.Equal(t, 2, calls)
}

func TestMinimizeOracleError(t *testing.T) {
	failure := &sat.Error{Kind: sat.BackendFailure, Backend: "test"}
	oracle := OracleFunc(func(context.Context, []int) (bool, []int, error) {
		return false, nil, failure
	})
	_, err := Minimize(context.Background(), oracle, []int{0}, sat.QuickXplainStrategy, nil)
	assert.Equal(t, failure, err)
}

func TestMinimizeUsesCores(t *testing.T) {
	var traced []bool
	tracer := tracerFunc(func(p sat.SearchPosition) {
		traced = append(traced, p.Satisfiable())
	})
	// units 2 and 5 conflict; the oracle always knows it
	oracle := OracleFunc(func(_ context.Context, active []int) (bool, []int, error) {
		has := map[int]bool{}
		for _, u := range active {
			has[u] = true
		}
		if has[2] && has[5] {
			return false, []int{5, 2}, nil
		}
		return true, nil, nil
	})
	result, err := Minimize(context.Background(), oracle, []int{0, 1, 2, 3, 4, 5, 6, 7}, sat.DeletionStrategy, tracer)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, result)
	assert.Equal(t, []bool{false, true, true}, traced)
}

type tracerFunc func(p sat.SearchPosition)

func (f tracerFunc) Trace(p sat.SearchPosition) {
	f(p)
}

func TestRandomProblemsAreMinimal(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		p := satcheck.Random(seed, 6, 24)
		if ok, _ := satcheck.Satisfiable(p, nil); ok {
			continue
		}
		for _, strategy := range []sat.Strategy{sat.DeletionStrategy, sat.QuickXplainStrategy} {
			m, err := Extract(context.Background(), p, bruteForce(p, true), sat.NewMusOptions(sat.WithStrategy(strategy)))
			require.NoError(t, err)
			assert.Truef(t, satcheck.Minimal(m), "seed %d, %s: %v", seed, strategy, m.Clauses())
		}
	}
}
