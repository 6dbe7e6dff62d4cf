package explanation

import (
	"github.com/operator-framework/fmexplain/pkg/backend/ginisolver"
	"github.com/operator-framework/fmexplain/pkg/backend/ltms"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// CreatorFactory makes Creators that share a solver factory and options.
// Variants differ only in the solver factory they are given.
type CreatorFactory struct {
	factory sat.SolverFactory
	opts    []Option
}

func NewCreatorFactory(factory sat.SolverFactory, opts ...Option) *CreatorFactory {
	return &CreatorFactory{factory: factory, opts: opts}
}

// NewMusCreatorFactory explains defects with minimal unsatisfiable subsets
// found by the gini backend.
func NewMusCreatorFactory(opts ...Option) *CreatorFactory {
	return NewCreatorFactory(ginisolver.NewFactory(), opts...)
}

// NewLtmsCreatorFactory explains defects with the causally ordered clauses
// implicated by the LTMS backend.
func NewLtmsCreatorFactory(opts ...Option) *CreatorFactory {
	return NewCreatorFactory(ltms.NewFactory(), opts...)
}

func (f *CreatorFactory) Descriptor() sat.Descriptor {
	return f.factory.Descriptor()
}

// NewCreator returns an idle Creator. Options given here are applied
// after those of the factory.
func (f *CreatorFactory) NewCreator(opts ...Option) *Creator {
	all := make([]Option, 0, len(f.opts)+len(opts))
	all = append(all, f.opts...)
	all = append(all, opts...)
	return &Creator{factory: f.factory, opts: newOptions(all...)}
}
