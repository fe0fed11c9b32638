package transform

import (
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"github.com/slowlang/aot/compiler/ir"
)

type (
	// path is the stack of objects being visited, kept for diagnostics.
	path struct {
		stack []any
	}
)

func (p *path) Push(x any) { p.stack = append(p.stack, x) }

func (p *path) Pop() { p.stack = p.stack[:len(p.stack)-1] }

func (p *path) Path() string {
	var b []byte

	for i, x := range p.stack {
		if i != 0 {
			b = append(b, '/')
		}

		switch x := x.(type) {
		case *ir.Method:
			b = hfmt.Appendf(b, "Method(%s)", x.Name)
		case *ir.ControlFlowGraph:
			b = hfmt.Appendf(b, "Graph(%s)", x.Method)
		case *ir.BasicBlock:
			b = hfmt.Appendf(b, "Block(%d)", x.ID)
		case *ir.TypeInfo:
			b = hfmt.Appendf(b, "Type(%s)", x.Name)
		default:
			t := hfmt.Appendf(nil, "%T", x)
			b = append(b, strings.TrimPrefix(string(t), "*ir.")...)
		}
	}

	return string(b)
}
