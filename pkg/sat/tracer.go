package sat

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
)

// SearchPosition describes one oracle check made while minimising an
// unsatisfiable subset.
type SearchPosition interface {
	// Active returns the units enabled for the check.
	Active() []int
	// Satisfiable reports the outcome of the check.
	Satisfiable() bool
}

type Tracer interface {
	Trace(p SearchPosition)
}

type DefaultTracer struct{}

func (DefaultTracer) Trace(_ SearchPosition) {
}

type LoggingTracer struct {
	Writer io.Writer
}

func (t LoggingTracer) Trace(p SearchPosition) {
	fmt.Fprintf(t.Writer, "---\nActive:\n")
	for _, i := range p.Active() {
		fmt.Fprintf(t.Writer, "- %d\n", i)
	}
	fmt.Fprintf(t.Writer, "Satisfiable: %t\n", p.Satisfiable())
}

// LogrTracer reports checks at verbosity 1.
type LogrTracer struct {
	Logger logr.Logger
}

func (t LogrTracer) Trace(p SearchPosition) {
	t.Logger.V(1).Info("mus check", "active", len(p.Active()), "satisfiable", p.Satisfiable())
}
