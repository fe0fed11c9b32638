package pass

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/closure"
	"github.com/slowlang/aot/compiler/pipeline"
)

func computeCallsClosure(ctx context.Context, st *pipeline.State) (err error) {
	var exp []closure.Expander
	if st.Platform != nil {
		exp = append(exp, st.Platform)
	}

	st.Closure, err = closure.Compute(ctx, st.Program, exp...)

	return err
}

// reduceTypeSystem drops methods and types the closure did not reach.
// Program order is kept.
func reduceTypeSystem(ctx context.Context, st *pipeline.State) error {
	c := st.Closure
	if c == nil {
		return errors.New("calls closure was not computed")
	}

	p := *st.Program
	p.Methods = nil
	p.Types = nil

	for _, m := range st.Program.Methods {
		if c.HasMethod(m.Name) {
			p.Methods = append(p.Methods, m)
		}
	}

	for _, t := range st.Program.Types {
		if c.HasType(t.Name) {
			p.Types = append(p.Types, t)
		}
	}

	tlog.SpanFromContext(ctx).Printw("type system reduced",
		"methods", len(p.Methods), "methods_before", len(st.Program.Methods),
		"types", len(p.Types), "types_before", len(st.Program.Types))

	st.Program = &p

	return nil
}
