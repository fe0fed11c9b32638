package transform

import (
	"github.com/slowlang/aot/compiler/ir"
)

// Compact returns a copy of g without unreachable blocks and unused
// expressions. Blocks keep their relative order.
func Compact(g *ir.ControlFlowGraph) *ir.ControlFlowGraph {
	tree := g.SpanningTree()

	dst := &ir.ControlFlowGraph{
		Method: g.Method,
		Result: ir.NoExpr,
	}

	c := &Cloner{
		blocks: make([]ir.BlockID, len(g.Blocks)),
		exprs:  make([]ir.ExprID, len(g.Exprs)),
		src:    g,
		dst:    dst,
	}

	var next ir.BlockID

	for i := range g.Blocks {
		if !tree.Reachable.IsSet(ir.BlockID(i)) {
			c.blocks[i] = blockDropped
			continue
		}

		c.blocks[i] = next
		next++
	}

	for i := range c.exprs {
		c.exprs[i] = exprUnmapped
	}

	c.Push(g)
	defer c.Pop()

	for _, id := range g.Args {
		c.Expr(&id)
		dst.Args = append(dst.Args, id)
	}

	if g.Result != ir.NoExpr {
		dst.Result = g.Result
		c.Expr(&dst.Result)
	}

	for i, b := range g.Blocks {
		if c.blocks[i] == blockDropped {
			continue
		}

		c.BasicBlock(&b)
		dst.Blocks = append(dst.Blocks, b)
	}

	dst.Entry = c.blocks[g.Entry]

	dst.Exit = ir.NoBlock
	if g.Exit != ir.NoBlock && c.blocks[g.Exit] != blockDropped {
		dst.Exit = c.blocks[g.Exit]
	}

	dst.Relink()

	return dst
}
