package sat

// Model is a total assignment of truth values to the variables of the
// Problem it was computed for. Index 0 is unused.
type Model []bool

// NewModel returns an all-false model for n variables.
func NewModel(n int) Model {
	return make(Model, n+1)
}

// Value returns the value of v. Unknown variables are false.
func (m Model) Value(v Variable) bool {
	if v < 1 || int(v) >= len(m) {
		return false
	}
	return m[v]
}

// Holds reports whether literal l is true under m.
func (m Model) Holds(l Literal) bool {
	return m.Value(l.Var()) == l.IsPositive()
}

// Literal returns the literal of v which is true under m.
func (m Model) Literal(v Variable) Literal {
	if m.Value(v) {
		return v.Pos()
	}
	return v.Neg()
}

// Satisfies reports whether some literal of c is true under m.
func (m Model) Satisfies(c Clause) bool {
	for _, l := range c {
		if m.Holds(l) {
			return true
		}
	}
	return false
}

// Selected returns the names of the variables of p that are true under m,
// in index order.
func (m Model) Selected(p *Problem) []string {
	var names []string
	for v := Variable(1); int(v) <= p.NumVariables(); v++ {
		if m.Value(v) {
			names = append(names, p.Name(v))
		}
	}
	return names
}
