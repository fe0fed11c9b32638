package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
	"tlog.app/go/errors"

	"github.com/slowlang/aot/compiler/ir"
)

// ForEachMethod calls fn for every method with code.
// Methods are independent, so with st.Workers > 1 they run in parallel.
func ForEachMethod(ctx context.Context, st *State, fn func(ctx context.Context, m *ir.Method) error) error {
	if st.Workers <= 1 {
		for _, m := range st.Program.Methods {
			if !m.HasCode() {
				continue
			}

			if err := fn(ctx, m); err != nil {
				return errors.Wrap(err, "method %v", m.Name)
			}
		}

		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(st.Workers)

	for _, m := range st.Program.Methods {
		if !m.HasCode() {
			continue
		}

		m := m

		g.Go(func() error {
			if err := fn(ctx, m); err != nil {
				return errors.Wrap(err, "method %v", m.Name)
			}

			return nil
		})
	}

	return g.Wait()
}
