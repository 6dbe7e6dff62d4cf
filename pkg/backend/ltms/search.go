package ltms

import (
	"context"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Solve decides the problem under premises with a chronological DPLL
// search over the propagation engine. When the problem is unsatisfiable,
// implicated is the union of the clauses implicated at every refuted
// branch, in order of discovery. When it is satisfiable, the believed
// literals form a model.
func (l *Ltms) Solve(ctx context.Context, premises ...sat.Literal) (satisfiable bool, implicated []int, err error) {
	ok, err := l.Propagate(ctx, premises...)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, l.Implicated(), nil
	}
	u := union{seen: make(map[int]struct{})}
	satisfiable, err = l.search(ctx, &u)
	if err != nil {
		return false, nil, err
	}
	if satisfiable {
		return true, nil, nil
	}
	return false, u.clauses, nil
}

type union struct {
	seen    map[int]struct{}
	clauses []int
}

func (u *union) add(clauses []int) {
	for _, i := range clauses {
		if _, ok := u.seen[i]; ok {
			continue
		}
		u.seen[i] = struct{}{}
		u.clauses = append(u.clauses, i)
	}
}

func (l *Ltms) search(ctx context.Context, u *union) (bool, error) {
	m := l.branch()
	if m == 0 {
		return true, nil
	}
	if err := sat.CheckContext(ctx, "search"); err != nil {
		return false, err
	}
	for _, d := range []sat.Literal{m, m.Not()} {
		n := len(l.trail)
		l.assign(d, decision, NoClause)
		ok, err := l.propagate(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			found, err := l.search(ctx, u)
			if err != nil || found {
				return found, err
			}
		} else {
			u.add(l.Implicated())
		}
		l.undo(n)
	}
	return false, nil
}

// branch returns an open literal of the first clause that is not yet
// satisfied, or 0 if every clause is.
func (l *Ltms) branch() sat.Literal {
next:
	for _, c := range l.clauses {
		open := sat.Literal(0)
		for _, m := range c.lits {
			switch l.valueOf(m) {
			case 1:
				continue next
			case 0:
				if open == 0 {
					open = m
				}
			}
		}
		if open != 0 {
			return open
		}
	}
	return 0
}

// Model returns the believed assignment. Variables without a value are
// false.
func (l *Ltms) Model() sat.Model {
	m := sat.NewModel(l.p.NumVariables())
	for v := 1; v < len(l.value); v++ {
		m[v] = l.value[v] > 0
	}
	return m
}
