package ir

import (
	"fmt"

	"tlog.app/go/errors"
)

type (
	// ControlFlowGraph owns blocks and expressions of one method.
	// Blocks and expressions refer to each other by arena index.
	ControlFlowGraph struct {
		Method string

		Blocks []*BasicBlock
		Exprs  []Expr

		Entry BlockID
		Exit  BlockID

		Args   []ExprID
		Result ExprID

		version uint64

		flowAt uint64

		tree   *SpanningTree
		treeAt uint64

		df   *DataFlow
		dfAt uint64

		idom  []BlockID
		domAt uint64

		vars  int
		temps int
	}
)

func NewGraph(method string) *ControlFlowGraph {
	g := &ControlFlowGraph{
		Method:  method,
		Entry:   NoBlock,
		Exit:    NoBlock,
		Result:  NoExpr,
		version: 1,
	}

	g.Entry = g.NewBlock(BlockEntry).ID

	return g
}

// Version changes on every structural mutation of the graph.
func (g *ControlFlowGraph) Version() uint64 { return g.version }

func (g *ControlFlowGraph) bump() {
	if g != nil {
		g.version++
	}
}

func (g *ControlFlowGraph) NewBlock(kind BlockKind) *BasicBlock {
	b := &BasicBlock{
		ID:   BlockID(len(g.Blocks)),
		Kind: kind,
		cfg:  g,
	}

	g.Blocks = append(g.Blocks, b)

	if kind == BlockExit {
		g.Exit = b.ID
	}

	g.bump()

	return b
}

func (g *ControlFlowGraph) Block(id BlockID) *BasicBlock {
	if id < 0 || int(id) >= len(g.Blocks) {
		panic(fmt.Sprintf("%v: dangling block reference %v", g.Method, id))
	}

	return g.Blocks[id]
}

func (g *ControlFlowGraph) AddExpr(x Expr) ExprID {
	switch x := x.(type) {
	case *Variable:
		x.Number = g.vars
		g.vars++
	case *Temporary:
		x.Number = g.temps
		g.temps++
	}

	g.Exprs = append(g.Exprs, x)
	g.bump()

	return ExprID(len(g.Exprs) - 1)
}

func (g *ControlFlowGraph) Expr(id ExprID) Expr {
	if id < 0 || int(id) >= len(g.Exprs) {
		panic(fmt.Sprintf("%v: dangling expression reference %v", g.Method, id))
	}

	return g.Exprs[id]
}

func (g *ControlFlowGraph) TypeOf(id ExprID) Type { return g.Expr(id).ExprType() }

func (g *ControlFlowGraph) Const(c *Constant) ExprID { return g.AddExpr(c) }

func (g *ControlFlowGraph) NewVariable(name string, t Type) ExprID {
	return g.AddExpr(&Variable{Name: name, Type: t, Alias: NoExpr})
}

func (g *ControlFlowGraph) NewTemporary(t Type) ExprID {
	return g.AddExpr(&Temporary{Type: t})
}

// NewArgument adds the next this-plus-arguments variable.
func (g *ControlFlowGraph) NewArgument(name string, t Type) ExprID {
	id := g.NewVariable(name, t)
	g.Args = append(g.Args, id)

	return id
}

// SetAlias binds a variable to its lowered storage.
func (g *ControlFlowGraph) SetAlias(v, storage ExprID) {
	x, ok := g.Expr(v).(*Variable)
	if !ok {
		panic(fmt.Sprintf("%v: alias of non variable %v", g.Method, v))
	}

	c := *x
	c.Alias = storage
	g.Exprs[v] = &c

	g.bump()
}

// Operators calls f for every operator in block order.
func (g *ControlFlowGraph) Operators(f func(b *BasicBlock, op Operator) bool) {
	for _, b := range g.Blocks {
		for _, op := range b.Ops {
			if !f(b, op) {
				return
			}
		}
	}
}

// UpdateFlowInformation recomputes block edges if they are stale.
func (g *ControlFlowGraph) UpdateFlowInformation() {
	if g.flowAt == g.version {
		return
	}

	for _, b := range g.Blocks {
		b.succ, b.esucc, b.pred = nil, nil, nil
	}

	for _, b := range g.Blocks {
		if c := b.Control(); c != nil {
			c.UpdateSuccessorInformation()
		}

		for _, h := range b.ProtectedBy {
			b.LinkToException(h)
		}
	}

	g.flowAt = g.version
}

// Relink restores owner links after a transformation filled the graph
// and drops all derived information.
func (g *ControlFlowGraph) Relink() {
	g.vars, g.temps = 0, 0

	for _, x := range g.Exprs {
		switch x := x.(type) {
		case *Variable:
			g.vars = max(g.vars, x.Number+1)
		case *Temporary:
			g.temps = max(g.temps, x.Number+1)
		}
	}

	for i, b := range g.Blocks {
		if b.ID != BlockID(i) {
			panic(fmt.Sprintf("%v: block %v at index %v", g.Method, b.ID, i))
		}

		b.cfg = g
		b.succ, b.esucc, b.pred = nil, nil, nil

		for _, op := range b.Ops {
			op.Base().block = b
		}
	}

	g.version++
	g.flowAt, g.treeAt, g.dfAt, g.domAt = 0, 0, 0, 0
}

// Validate checks the structural invariants.
func (g *ControlFlowGraph) Validate() error {
	if g.Entry < 0 || int(g.Entry) >= len(g.Blocks) {
		return errors.New("%v: bad entry block %v", g.Method, g.Entry)
	}

	if g.Exit != NoBlock && (g.Exit < 0 || int(g.Exit) >= len(g.Blocks)) {
		return errors.New("%v: bad exit block %v", g.Method, g.Exit)
	}

	okExpr := func(id ExprID) bool { return id >= 0 && int(id) < len(g.Exprs) }
	okBlock := func(id BlockID) bool { return id >= 0 && int(id) < len(g.Blocks) }

	for _, id := range g.Args {
		if !okExpr(id) {
			return errors.New("%v: argument: bad expression %v", g.Method, id)
		}
	}

	for i, b := range g.Blocks {
		if b.ID != BlockID(i) || b.cfg != g {
			return errors.New("%v: block %v: bad owner or id", g.Method, i)
		}

		for j, op := range b.Ops {
			if op.Base().block != b {
				return errors.New("%v: block %v: op %d (%T): bad owner", g.Method, b.ID, j, op)
			}

			if IsControl(op) && j != len(b.Ops)-1 {
				return errors.New("%v: block %v: control operator %T in the middle", g.Method, b.ID, op)
			}

			for _, id := range op.Base().Results {
				if !okExpr(id) {
					return errors.New("%v: block %v: %T: bad result %v", g.Method, b.ID, op, id)
				}
			}

			for _, id := range op.Base().Args {
				if !okExpr(id) {
					return errors.New("%v: block %v: %T: bad argument %v", g.Method, b.ID, op, id)
				}
			}

			if c, ok := op.(Control); ok {
				for _, t := range c.Targets() {
					if !okBlock(t) {
						return errors.New("%v: block %v: %T: bad target %v", g.Method, b.ID, op, t)
					}
				}
			}
		}

		if b.Kind != BlockHandler && b.Control() == nil {
			return errors.New("%v: block %v: not terminated", g.Method, b.ID)
		}

		for _, h := range b.ProtectedBy {
			if !okBlock(h) || g.Blocks[h].Kind != BlockHandler {
				return errors.New("%v: block %v: bad handler %v", g.Method, b.ID, h)
			}
		}
	}

	for i, x := range g.Exprs {
		if v, ok := x.(*Variable); ok && v.Alias != NoExpr && !okExpr(v.Alias) {
			return errors.New("%v: variable %v: bad alias %v", g.Method, i, v.Alias)
		}
	}

	return nil
}

func (g *ControlFlowGraph) ApplyTransformation(t Transformer) {
	t.Push(g)
	defer t.Pop()

	t.String(&g.Method)
	TransformSlice(t, &g.Exprs, Transformer.Expression)
	TransformSlice(t, &g.Args, Transformer.Expr)
	t.Expr(&g.Result)
	TransformSlice(t, &g.Blocks, Transformer.BasicBlock)
	t.Block(&g.Entry)
	t.Block(&g.Exit)
}
