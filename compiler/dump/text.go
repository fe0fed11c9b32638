package dump

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/aot/compiler/ir"
)

// AppendText appends a readable listing of m with blocks in the given order.
// A nil order lists reachable blocks depth first.
func AppendText(b []byte, m *ir.Method, order []ir.BlockID) []byte {
	b = hfmt.Appendf(b, "method %s", m.Name)

	if !m.Return.IsVoid() {
		b = hfmt.Appendf(b, " returns %v", m.Return)
	}

	b = append(b, '\n')

	g := m.CFG
	if g == nil {
		return append(b, "\t<no code>\n"...)
	}

	b = append(b, "variables:\n"...)

	for id, x := range g.Exprs {
		switch x := x.(type) {
		case *ir.Variable:
			b = hfmt.Appendf(b, "\t%s: %v", g.AppendExpr(nil, ir.ExprID(id)), x.Type)

			if x.Alias != ir.NoExpr {
				b = hfmt.Appendf(b, " at %s", g.AppendExpr(nil, x.Alias))
			}

			b = append(b, '\n')
		case *ir.Temporary:
			b = hfmt.Appendf(b, "\t%s: %v\n", g.AppendExpr(nil, ir.ExprID(id)), x.Type)
		}
	}

	if order == nil {
		order = g.SpanningTree().Blocks
	}

	idom := g.Dominators()

	for i, id := range order {
		bl := g.Block(id)

		b = hfmt.Appendf(b, "%s: [Index:%d] [Kind:%v]\n", ir.Label(id), i, bl.Kind)

		for _, op := range bl.Ops {
			b = append(b, '\t')
			b = g.AppendOperator(b, op)
			b = append(b, '\n')
		}

		for _, s := range bl.Successors() {
			b = hfmt.Appendf(b, "\t.edge normal to %s\n", ir.Label(s))
		}

		for _, s := range bl.ExceptionSuccessors() {
			b = hfmt.Appendf(b, "\t.edge exception to %s\n", ir.Label(s))
		}

		for _, h := range bl.ProtectedBy {
			b = hfmt.Appendf(b, "\t.protected by %s\n", ir.Label(h))
		}

		if int(id) < len(idom) && idom[id] != ir.NoBlock && id != g.Entry {
			b = hfmt.Appendf(b, "\t.idom %s\n", ir.Label(idom[id]))
		}
	}

	return b
}
