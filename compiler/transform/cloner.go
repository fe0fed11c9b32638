package transform

import (
	"fmt"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
)

type (
	// Cloner deep copies IR. Shared references in the source
	// stay shared in the copy.
	Cloner struct {
		path

		graphs map[*ir.ControlFlowGraph]*ir.ControlFlowGraph

		// nil maps are identity.
		blocks []ir.BlockID
		exprs  []ir.ExprID

		src, dst *ir.ControlFlowGraph
	}
)

const (
	blockDropped ir.BlockID = -2
	exprUnmapped ir.ExprID  = -2
)

func NewCloner() *Cloner {
	return &Cloner{
		graphs: make(map[*ir.ControlFlowGraph]*ir.ControlFlowGraph),
	}
}

func Clone(g *ir.ControlFlowGraph) *ir.ControlFlowGraph {
	c := NewCloner()
	c.Graph(&g)

	return g
}

func CloneProgram(p *ir.Program) *ir.Program {
	r := *p
	r.ApplyTransformation(NewCloner())

	return &r
}

func (c *Cloner) Copying() bool { return true }

func (c *Cloner) Bool(v *bool)     {}
func (c *Cloner) Int(v *int)       {}
func (c *Cloner) Uint64(v *uint64) {}
func (c *Cloner) String(v *string) {}
func (c *Cloner) Len(n *int)       {}

// Registers are target singletons and never copied.
func (c *Cloner) Register(v **machine.RegisterDescriptor) {}

func (c *Cloner) Block(v *ir.BlockID) {
	if c.blocks == nil || *v == ir.NoBlock {
		return
	}

	to := c.blocks[*v]
	if to == blockDropped {
		panic(fmt.Sprintf("%v: reference to dropped block %v", c.Path(), *v))
	}

	*v = to
}

func (c *Cloner) Expr(v *ir.ExprID) {
	if c.exprs == nil || *v == ir.NoExpr {
		return
	}

	if to := c.exprs[*v]; to != exprUnmapped {
		*v = to
		return
	}

	x := ir.CopyExpr(c.src.Exprs[*v])
	to := ir.ExprID(len(c.dst.Exprs))

	c.exprs[*v] = to
	c.dst.Exprs = append(c.dst.Exprs, x)

	x.ApplyTransformation(c)

	*v = to
}

func (c *Cloner) Expression(v *ir.Expr) {
	if *v == nil {
		return
	}

	*v = ir.CopyExpr(*v)
	(*v).ApplyTransformation(c)
}

func (c *Cloner) Operator(v *ir.Operator) {
	*v = ir.CopyOperator(*v)
	(*v).ApplyTransformation(c)
}

func (c *Cloner) Annotation(v *ir.Annotation) {
	*v = ir.CopyAnnotation(*v)
	(*v).ApplyTransformation(c)
}

func (c *Cloner) BasicBlock(v **ir.BasicBlock) {
	b := new(ir.BasicBlock)
	*b = **v

	b.ApplyTransformation(c)

	*v = b
}

func (c *Cloner) Graph(v **ir.ControlFlowGraph) {
	if *v == nil {
		return
	}

	if g, ok := c.graphs[*v]; ok {
		*v = g
		return
	}

	g := new(ir.ControlFlowGraph)
	*g = **v

	c.graphs[*v] = g

	g.ApplyTransformation(c)
	g.Relink()

	*v = g
}
