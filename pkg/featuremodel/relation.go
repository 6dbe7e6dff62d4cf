package featuremodel

import (
	"fmt"
	"strings"

	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Feature names a feature of a model.
type Feature string

// LitMapping binds features to the variables of the compiled problem.
type LitMapping interface {
	LitOf(f Feature) sat.Literal
}

// Relation is a user level rule between features. Every relation becomes
// one source constraint of the compiled problem.
type Relation interface {
	String() string
	Apply(lm LitMapping) []sat.Clause
	// Features returns the features the relation mentions, in order.
	Features() []Feature
}

func names(fs []Feature) string {
	s := make([]string, len(fs))
	for i, f := range fs {
		s[i] = string(f)
	}
	return strings.Join(s, ", ")
}

// implies returns ¬a ∨ b₁ ∨ … ∨ bₙ.
func implies(lm LitMapping, a Feature, bs ...Feature) sat.Clause {
	c := sat.Clause{lm.LitOf(a).Not()}
	for _, b := range bs {
		c = append(c, lm.LitOf(b))
	}
	return c
}

func pairwiseExclusive(lm LitMapping, fs []Feature) []sat.Clause {
	var out []sat.Clause
	for i := range fs {
		for j := i + 1; j < len(fs); j++ {
			out = append(out, sat.Clause{lm.LitOf(fs[i]).Not(), lm.LitOf(fs[j]).Not()})
		}
	}
	return out
}

type RootRelation struct {
	root Feature
}

func (r *RootRelation) String() string {
	return fmt.Sprintf("%s is the root", r.root)
}

func (r *RootRelation) Apply(lm LitMapping) []sat.Clause {
	return []sat.Clause{{lm.LitOf(r.root)}}
}

func (r *RootRelation) Features() []Feature {
	return []Feature{r.root}
}

// Root returns a relation that selects the root feature in every
// configuration.
func Root(root Feature) Relation {
	return &RootRelation{root: root}
}

type MandatoryRelation struct {
	parent, child Feature
}

func (r *MandatoryRelation) String() string {
	return fmt.Sprintf("%s is a mandatory child of %s", r.child, r.parent)
}

func (r *MandatoryRelation) Apply(lm LitMapping) []sat.Clause {
	return []sat.Clause{implies(lm, r.parent, r.child), implies(lm, r.child, r.parent)}
}

func (r *MandatoryRelation) Features() []Feature {
	return []Feature{r.parent, r.child}
}

// Mandatory returns a relation that selects child exactly when parent is
// selected.
func Mandatory(parent, child Feature) Relation {
	return &MandatoryRelation{parent: parent, child: child}
}

type OptionalRelation struct {
	parent, child Feature
}

func (r *OptionalRelation) String() string {
	return fmt.Sprintf("%s is an optional child of %s", r.child, r.parent)
}

func (r *OptionalRelation) Apply(lm LitMapping) []sat.Clause {
	return []sat.Clause{implies(lm, r.child, r.parent)}
}

func (r *OptionalRelation) Features() []Feature {
	return []Feature{r.parent, r.child}
}

// Optional returns a relation that permits child only when parent is
// selected.
func Optional(parent, child Feature) Relation {
	return &OptionalRelation{parent: parent, child: child}
}

type GroupRelation struct {
	parent      Feature
	children    []Feature
	alternative bool
}

func (r *GroupRelation) String() string {
	kind := "an or-group"
	if r.alternative {
		kind = "an alternative group"
	}
	if len(r.children) == 0 {
		return fmt.Sprintf("%s has %s without any children", r.parent, kind)
	}
	return fmt.Sprintf("%s has %s of %s", r.parent, kind, names(r.children))
}

func (r *GroupRelation) Apply(lm LitMapping) []sat.Clause {
	out := []sat.Clause{implies(lm, r.parent, r.children...)}
	for _, child := range r.children {
		out = append(out, implies(lm, child, r.parent))
	}
	if r.alternative {
		out = append(out, pairwiseExclusive(lm, r.children)...)
	}
	return out
}

func (r *GroupRelation) Features() []Feature {
	return append([]Feature{r.parent}, r.children...)
}

// Or returns a relation that selects at least one of children whenever
// parent is selected, and none of them otherwise.
func Or(parent Feature, children ...Feature) Relation {
	return &GroupRelation{parent: parent, children: children}
}

// Alternative is like Or but selects exactly one child.
func Alternative(parent Feature, children ...Feature) Relation {
	return &GroupRelation{parent: parent, children: children, alternative: true}
}

type RequiresRelation struct {
	subject      Feature
	dependencies []Feature
}

func (r *RequiresRelation) String() string {
	switch len(r.dependencies) {
	case 0:
		return fmt.Sprintf("%s requires something without any candidates to satisfy it", r.subject)
	case 1:
		return fmt.Sprintf("%s requires %s", r.subject, r.dependencies[0])
	}
	return fmt.Sprintf("%s requires at least one of %s", r.subject, names(r.dependencies))
}

func (r *RequiresRelation) Apply(lm LitMapping) []sat.Clause {
	return []sat.Clause{implies(lm, r.subject, r.dependencies...)}
}

func (r *RequiresRelation) Features() []Feature {
	return append([]Feature{r.subject}, r.dependencies...)
}

// Requires returns a relation that permits subject only if at least one
// of dependencies is selected too.
func Requires(subject Feature, dependencies ...Feature) Relation {
	return &RequiresRelation{subject: subject, dependencies: dependencies}
}

type ExcludesRelation struct {
	subject, excluded Feature
}

func (r *ExcludesRelation) String() string {
	return fmt.Sprintf("%s excludes %s", r.subject, r.excluded)
}

func (r *ExcludesRelation) Apply(lm LitMapping) []sat.Clause {
	return []sat.Clause{{lm.LitOf(r.subject).Not(), lm.LitOf(r.excluded).Not()}}
}

func (r *ExcludesRelation) Features() []Feature {
	return []Feature{r.subject, r.excluded}
}

// Excludes returns a relation that forbids selecting both features.
func Excludes(subject, excluded Feature) Relation {
	return &ExcludesRelation{subject: subject, excluded: excluded}
}

type AtMostOneRelation struct {
	features []Feature
}

func (r *AtMostOneRelation) String() string {
	return fmt.Sprintf("at most one of %s", names(r.features))
}

func (r *AtMostOneRelation) Apply(lm LitMapping) []sat.Clause {
	out := pairwiseExclusive(lm, r.features)
	if len(out) == 0 {
		// a single feature is trivially at most one
		out = append(out, sat.Clause{lm.LitOf(r.features[0]), lm.LitOf(r.features[0]).Not()})
	}
	return out
}

func (r *AtMostOneRelation) Features() []Feature {
	return r.features
}

// AtMostOne returns a relation that selects at most one of features. It
// panics without any feature.
func AtMostOne(features ...Feature) Relation {
	if len(features) == 0 {
		panic("featuremodel: AtMostOne without features")
	}
	return &AtMostOneRelation{features: features}
}

// Lit is a possibly negated feature in a cross-tree constraint.
type Lit struct {
	Feature Feature
	Negated bool
}

// Is returns the literal selecting f.
func Is(f Feature) Lit {
	return Lit{Feature: f}
}

// Not returns the literal deselecting f.
func Not(f Feature) Lit {
	return Lit{Feature: f, Negated: true}
}

type CustomRelation struct {
	label   string
	clauses [][]Lit
}

func (r *CustomRelation) String() string {
	return r.label
}

func (r *CustomRelation) Apply(lm LitMapping) []sat.Clause {
	out := make([]sat.Clause, len(r.clauses))
	for i, lits := range r.clauses {
		c := make(sat.Clause, len(lits))
		for k, l := range lits {
			c[k] = lm.LitOf(l.Feature)
			if l.Negated {
				c[k] = c[k].Not()
			}
		}
		out[i] = c
	}
	return out
}

func (r *CustomRelation) Features() []Feature {
	var out []Feature
	for _, lits := range r.clauses {
		for _, l := range lits {
			out = append(out, l.Feature)
		}
	}
	return out
}

// Constraint returns a cross-tree constraint given in CNF. Each argument
// is one clause.
func Constraint(label string, clauses ...[]Lit) Relation {
	return &CustomRelation{label: label, clauses: clauses}
}
