package pass

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/pipeline"
	"github.com/slowlang/aot/compiler/transform"
)

// MaxSimplifyIterations bounds the fixed point loop of SimplifyControlFlow.
const MaxSimplifyIterations = 64

func simplifyControlFlow(ctx context.Context, st *pipeline.State) error {
	return pipeline.ForEachMethod(ctx, st, simplifyMethod)
}

func simplifyMethod(ctx context.Context, m *ir.Method) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "simplify", "method", m.Name)
	defer tr.Finish("err", &err)

	g := m.CFG
	blocks, exprs := len(g.Blocks), len(g.Exprs)

	iter := 0

	for ; ; iter++ {
		if iter == MaxSimplifyIterations {
			return errors.New("no fixed point after %d iterations", iter)
		}

		v := g.Version()

		err = simplifyOnce(g)
		if err != nil {
			return err
		}

		if g.Version() == v {
			break
		}

		g = transform.Compact(g)
	}

	g = transform.Compact(g)
	m.CFG = g

	tr.V("simplify").Printw("simplified", "iterations", iter,
		"blocks", len(g.Blocks), "blocks_before", blocks,
		"exprs", len(g.Exprs), "exprs_before", exprs)

	return nil
}

func simplifyOnce(g *ir.ControlFlowGraph) error {
	var ops []ir.Operator

	g.Operators(func(_ *ir.BasicBlock, op ir.Operator) bool {
		ops = append(ops, op)
		return true
	})

	for _, op := range ops {
		if op.Base().Block() == nil {
			continue // replaced earlier in this round
		}

		_, err := ir.Simplify(op, g.DataFlow())
		if err != nil {
			return err
		}
	}

	threadJumps(g)
	mergeBlocks(g)

	return nil
}

// threadJumps retargets branches to blocks that only jump somewhere else.
func threadJumps(g *ir.ControlFlowGraph) {
	for _, b := range g.Blocks {
		if b.ID == g.Entry || b.Kind != ir.BlockNormal || len(b.Ops) != 1 || len(b.ProtectedBy) != 0 {
			continue
		}

		u, ok := b.Ops[0].(*ir.Unconditional)
		if !ok || u.Target == b.ID {
			continue
		}

		preds := append([]ir.BlockID(nil), b.Predecessors()...)

		for _, p := range preds {
			if p == b.ID {
				continue
			}

			if c := g.Block(p).Control(); c != nil {
				c.SubstituteTarget(b.ID, u.Target)
			}
		}
	}
}

func mergeBlocks(g *ir.ControlFlowGraph) {
	for _, b := range g.Blocks {
		for {
			u, ok := b.Control().(*ir.Unconditional)
			if !ok {
				break
			}

			n := g.Block(u.Target)
			if !b.CanMerge(n) {
				break
			}

			b.Merge(n)
		}
	}
}
