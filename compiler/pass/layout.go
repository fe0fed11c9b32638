package pass

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/pipeline"
	"github.com/slowlang/aot/compiler/set"
)

func layoutBlocks(ctx context.Context, st *pipeline.State) error {
	return pipeline.ForEachMethod(ctx, st, func(ctx context.Context, m *ir.Method) error {
		order := Layout(m.CFG)

		st.SetLayout(m.Name, order)

		tlog.SpanFromContext(ctx).V("layout").Printw("layout", "method", m.Name, "order", order)

		return nil
	})
}

// Layout orders the reachable blocks for emission.
// Blocks are chained along fall-through successors in depth first order,
// exception handlers go last.
func Layout(g *ir.ControlFlowGraph) []ir.BlockID {
	tree := g.SpanningTree()

	placed := set.MakeBits[ir.BlockID](len(g.Blocks))
	order := make([]ir.BlockID, 0, len(tree.Blocks))

	var handlers []ir.BlockID

	next := func(id ir.BlockID) ir.BlockID {
		b := g.Block(id)

		for _, s := range b.Successors() {
			n := g.Block(s)

			if !placed.IsSet(s) && n.Kind != ir.BlockHandler && b.ShouldIncludeInScheduling(n) {
				return s
			}
		}

		return ir.NoBlock
	}

	chain := func(id ir.BlockID) {
		for id != ir.NoBlock && !placed.IsSet(id) {
			placed.Set(id)
			order = append(order, id)

			id = next(id)
		}
	}

	for _, id := range tree.Blocks {
		if g.Block(id).Kind == ir.BlockHandler {
			handlers = append(handlers, id)
			continue
		}

		chain(id)
	}

	for _, id := range handlers {
		chain(id)
	}

	return order
}
