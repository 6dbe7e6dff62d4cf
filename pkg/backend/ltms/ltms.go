// Package ltms implements a logic based truth maintenance system over a
// sat.Problem.
//
// Literals forced by unit propagation are recorded together with the
// clause that forced them and the facts that made the other literals of
// that clause false. When propagation reaches a contradiction, the
// recorded justifications are walked backward to find the clauses that
// took part in it.
package ltms

import (
	"context"
	"sort"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// NoClause is the clause of a premise or a decision.
const NoClause = -1

// Justification records why a literal holds. The contradiction node has a
// zero Literal.
type Justification struct {
	Literal sat.Literal
	// Clause is the index of the problem clause that forced Literal, or
	// NoClause for premises and decisions.
	Clause int
	// Background is set when the forcing clause is a background clause,
	// in which case Clause indexes Problem.Background.
	Background bool
	// Antecedents are the facts that falsified the rest of the clause.
	Antecedents []sat.Literal
}

// Premise reports whether j was assumed rather than derived.
func (j Justification) Premise() bool {
	return j.Clause == NoClause
}

type clause struct {
	lits       sat.Clause
	index      int
	background bool
}

type origin uint8

const (
	unassigned origin = iota
	premise
	decision
	derived
)

// Ltms propagates the clauses of a problem under premises. It is not safe
// for concurrent use.
type Ltms struct {
	p       *sat.Problem
	clauses []clause
	occur   map[sat.Literal][]int

	value  []int8 // 1 true, -1 false, 0 unknown
	origin []origin
	reason []int // forcing clause per variable
	stamp  []int // trail position per variable
	trail  []sat.Literal
	queue  int

	conflict int // clause that became false, -1 if none
	rounds   int
}

// New loads the background and the clauses of p.
func New(p *sat.Problem) *Ltms {
	n := p.NumVariables()
	l := &Ltms{
		p:        p,
		occur:    make(map[sat.Literal][]int),
		value:    make([]int8, n+1),
		origin:   make([]origin, n+1),
		reason:   make([]int, n+1),
		stamp:    make([]int, n+1),
		conflict: -1,
	}
	for v := range l.reason {
		l.reason[v] = NoClause
	}
	p.Clauses(func(i int, c sat.Clause) bool {
		l.add(clause{lits: c, index: i})
		return true
	})
	for i, c := range p.Background() {
		l.add(clause{lits: c, index: i, background: true})
	}
	return l
}

func (l *Ltms) add(c clause) {
	id := len(l.clauses)
	l.clauses = append(l.clauses, c)
	for _, m := range c.lits {
		l.occur[m] = append(l.occur[m], id)
	}
}

func (l *Ltms) valueOf(m sat.Literal) int8 {
	v := l.value[m.Var()]
	if m.IsPositive() {
		return v
	}
	return -v
}

func (l *Ltms) assign(m sat.Literal, o origin, reason int) {
	v := m.Var()
	if m.IsPositive() {
		l.value[v] = 1
	} else {
		l.value[v] = -1
	}
	l.origin[v] = o
	l.reason[v] = reason
	l.stamp[v] = len(l.trail)
	l.trail = append(l.trail, m)
}

// undo retracts every assignment made after the trail had length n.
func (l *Ltms) undo(n int) {
	for _, m := range l.trail[n:] {
		v := m.Var()
		l.value[v] = 0
		l.origin[v] = unassigned
		l.reason[v] = NoClause
	}
	l.trail = l.trail[:n]
	if l.queue > n {
		l.queue = n
	}
	l.conflict = -1
}

// Reset retracts every premise and derived literal.
func (l *Ltms) Reset() {
	l.undo(0)
}

// Propagate assumes premises and propagates to a fixpoint. It returns
// false when a contradiction is reached, after which Contradiction and
// Implicated describe it. Previous premises are retracted first.
func (l *Ltms) Propagate(ctx context.Context, premises ...sat.Literal) (bool, error) {
	if err := l.p.CheckLiterals(premises...); err != nil {
		return false, err
	}
	if err := sat.CheckContext(ctx, "propagate"); err != nil {
		return false, err
	}
	l.Reset()
	for _, m := range premises {
		switch l.valueOf(m) {
		case 1:
			continue
		case -1:
			// complementary premises conflict without any clause
			l.conflict = len(l.clauses)
			return false, nil
		}
		l.assign(m, premise, NoClause)
	}
	for id, c := range l.clauses {
		if !l.examine(id, c) {
			return false, nil
		}
	}
	return l.propagate(ctx)
}

// examine forces the last open literal of c or records c as the
// conflict. It returns false on conflict.
func (l *Ltms) examine(id int, c clause) bool {
	open := sat.Literal(0)
	count := 0
	for _, m := range c.lits {
		switch l.valueOf(m) {
		case 1:
			return true
		case 0:
			open = m
			count++
		}
	}
	switch count {
	case 0:
		l.conflict = id
		return false
	case 1:
		l.assign(open, derived, id)
	}
	return true
}

const roundsPerCheck = 256

func (l *Ltms) propagate(ctx context.Context) (bool, error) {
	for l.queue < len(l.trail) {
		l.rounds++
		if l.rounds%roundsPerCheck == 0 {
			if err := sat.CheckContext(ctx, "propagate"); err != nil {
				return false, err
			}
		}
		m := l.trail[l.queue]
		l.queue++
		for _, id := range l.occur[m.Not()] {
			if !l.examine(id, l.clauses[id]) {
				return false, nil
			}
		}
	}
	return true, nil
}

// Value returns the truth value of v and whether it is known.
func (l *Ltms) Value(v sat.Variable) (value bool, known bool) {
	if v < 1 || int(v) >= len(l.value) {
		return false, false
	}
	return l.value[v] > 0, l.value[v] != 0
}

// Justifications returns the justification of every literal currently
// believed, in derivation order.
func (l *Ltms) Justifications() []Justification {
	out := make([]Justification, len(l.trail))
	for i, m := range l.trail {
		out[i] = l.justification(m)
	}
	return out
}

func (l *Ltms) justification(m sat.Literal) Justification {
	v := m.Var()
	if l.origin[v] != derived {
		return Justification{Literal: m, Clause: NoClause}
	}
	c := l.clauses[l.reason[v]]
	j := Justification{Literal: m, Clause: c.index, Background: c.background}
	for _, other := range c.lits {
		if other != m {
			j.Antecedents = append(j.Antecedents, other.Not())
		}
	}
	return j
}

// Contradiction returns the contradiction node, if propagation reached
// one.
func (l *Ltms) Contradiction() (Justification, bool) {
	if l.conflict < 0 {
		return Justification{}, false
	}
	if l.conflict == len(l.clauses) {
		return Justification{Clause: NoClause}, true
	}
	c := l.clauses[l.conflict]
	j := Justification{Clause: c.index, Background: c.background}
	for _, m := range c.lits {
		j.Antecedents = append(j.Antecedents, m.Not())
	}
	return j, true
}

// Implicated returns the problem clauses that the contradiction
// transitively depends on, ordered by the time they forced a literal. The
// clause that became false comes last. Background clauses and premises
// are not reported.
func (l *Ltms) Implicated() []int {
	if l.conflict < 0 || l.conflict == len(l.clauses) {
		return nil
	}
	type entry struct {
		clause int
		time   int
	}
	var found []entry
	seen := make(map[int]struct{})
	visited := make(map[sat.Variable]struct{})

	var visit func(id, time int)
	visit = func(id, time int) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		c := l.clauses[id]
		if !c.background {
			found = append(found, entry{clause: c.index, time: time})
		}
		for _, m := range c.lits {
			v := m.Var()
			if _, ok := visited[v]; ok {
				continue
			}
			visited[v] = struct{}{}
			if l.value[v] != 0 && l.origin[v] == derived {
				visit(l.reason[v], l.stamp[v])
			}
		}
	}
	visit(l.conflict, len(l.trail))

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].time < found[j].time
	})
	out := make([]int, len(found))
	for i, e := range found {
		out[i] = e.clause
	}
	return out
}

// Decisions returns the literals chosen by search, in order.
func (l *Ltms) Decisions() []sat.Literal {
	var out []sat.Literal
	for _, m := range l.trail {
		if l.origin[m.Var()] == decision {
			out = append(out, m)
		}
	}
	return out
}
