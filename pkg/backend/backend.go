// Package backend looks up the bundled solver factories by name.
package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/operator-framework/fmexplain/pkg/backend/ginisolver"
	"github.com/operator-framework/fmexplain/pkg/backend/gophersolver"
	"github.com/operator-framework/fmexplain/pkg/backend/ltms"
	"github.com/operator-framework/fmexplain/pkg/sat"
)

// Default is the backend used when none is named.
const Default = ginisolver.Name

var registry = map[string]func() sat.SolverFactory{
	ginisolver.Name: func() sat.SolverFactory {
		return ginisolver.NewFactory()
	},
	gophersolver.Name: func() sat.SolverFactory {
		return gophersolver.NewFactory()
	},
	ltms.Name: func() sat.SolverFactory {
		return ltms.NewFactory()
	},
}

// New returns the factory registered under name.
func New(name string) (sat.SolverFactory, error) {
	if name == "" {
		name = Default
	}
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q, expected one of: %s", name, strings.Join(Names(), ", "))
	}
	return fn(), nil
}

// Names returns the registered backend names in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the descriptors of every registered backend, in the
// order of Names.
func Descriptors() []sat.Descriptor {
	var out []sat.Descriptor
	for _, name := range Names() {
		out = append(out, registry[name]().Descriptor())
	}
	return out
}
