package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
)

func testRegisters() (lookup RegisterLookup, r0 *machine.RegisterDescriptor) {
	var list []*machine.RegisterDescriptor

	r0 = machine.NewIntegerRegister(&list, "r0", 0, 0, machine.ClassInteger)
	machine.NewIntegerRegister(&list, "r1", 1, 4, machine.ClassInteger)

	lookup = func(name string) *machine.RegisterDescriptor {
		for _, r := range list {
			if r.Mnemonic == name {
				return r
			}
		}

		return nil
	}

	return lookup, r0
}

// testGraph builds a loop with a call, an annotated operand,
// a physical register and an unreachable block.
func testGraph(t *testing.T, r0 *machine.RegisterDescriptor) *ir.ControlFlowGraph {
	t.Helper()

	g := ir.NewGraph("Test::Loop(int)")

	n := g.NewArgument("n", ir.Int32)
	i := g.NewVariable("i", ir.Int32)
	one := g.Const(ir.NewInt(ir.Int32, 1))
	reg := g.AddExpr(&ir.PhysicalRegister{Reg: r0, Type: ir.Int32})

	head := g.NewBlock(ir.BlockNormal)
	body := g.NewBlock(ir.BlockNormal)
	dead := g.NewBlock(ir.BlockNormal)
	exit := g.NewBlock(ir.BlockExit)

	e := g.Block(g.Entry)
	e.Append(ir.NewAssign(i, one))
	e.Append(ir.NewUnconditional(head.ID))

	head.Append(ir.NewCompareConditional(ir.LT, true, i, n, body.ID, exit.ID))

	add := ir.NewBinary(ir.Add, true, i, i, one)
	add.Annotate(&ir.RegisterConstraint{Operand: 0, Class: machine.ClassInteger})

	body.Append(add)
	body.Append(ir.NewCall(ir.CallStatic, "Test::Print(int)", ir.NoExpr, i))
	body.Append(ir.NewUnconditional(head.ID))

	tmp := g.NewTemporary(ir.Int32)
	dead.Append(ir.NewAssign(tmp, one))
	dead.Append(ir.NewUnconditional(exit.ID))

	exit.Append(ir.NewAssign(reg, i))
	exit.Append(ir.NewReturn(reg))

	require.NoError(t, g.Validate())

	return g
}

func TestRoundTripGraph(t *testing.T) {
	lookup, r0 := testRegisters()
	g := testGraph(t, r0)

	b := MarshalGraph(g)

	g2, err := UnmarshalGraph(b, lookup)
	require.NoError(t, err)

	assert.Equal(t, b, MarshalGraph(g2))
	assert.Equal(t, g.Method, g2.Method)
	assert.Len(t, g2.Blocks, len(g.Blocks))
	assert.Equal(t, g.Block(2).Successors(), g2.Block(2).Successors())
	assert.Equal(t, g.Block(2).Predecessors(), g2.Block(2).Predecessors())

	pr := g2.Expr(g2.Block(g2.Exit).Ops[0].Base().Results[0]).(*ir.PhysicalRegister)
	assert.Same(t, r0, pr.Reg)
}

func TestRoundTripProgram(t *testing.T) {
	lookup, r0 := testRegisters()
	g := testGraph(t, r0)

	p := &ir.Program{
		Methods: []*ir.Method{
			{Name: "Test::Loop(int)", Owner: "Test", Return: ir.Void, Params: []ir.Type{ir.Int32}, Flags: ir.MethodStatic | ir.MethodEntryPoint, CFG: g},
			{Name: "Test::Print(int)", Owner: "Test", Return: ir.Void, Flags: ir.MethodStatic},
		},
		Types: []*ir.TypeInfo{
			{Name: "Test", Base: "Object", Overrides: []ir.Override{{Slot: "ToString", Method: "Test::ToString()"}}},
		},
		EntryPoints: []string{"Test::Loop(int)"},
	}

	b := Marshal(p)

	p2, err := UnmarshalProgram(b, lookup)
	require.NoError(t, err)

	assert.Equal(t, b, Marshal(p2))
	assert.Nil(t, p2.Method("Test::Print(int)").CFG)
	assert.Equal(t, "Test::ToString()", p2.Type("Test").Override("ToString"))

	// the writer must not replace anything in the source
	assert.Same(t, g, p.Methods[0].CFG)
}

func TestUnmarshalErrors(t *testing.T) {
	lookup, r0 := testRegisters()
	b := MarshalGraph(testGraph(t, r0))

	_, err := UnmarshalGraph(b[:len(b)/2], lookup)
	assert.Error(t, err)

	_, err = UnmarshalGraph(append(b[:len(b):len(b)], 0), lookup)
	assert.Error(t, err)

	_, err = UnmarshalGraph(b, func(string) *machine.RegisterDescriptor { return nil })
	assert.ErrorContains(t, err, "unknown register")
}

func TestCloneIsDeep(t *testing.T) {
	_, r0 := testRegisters()
	g := testGraph(t, r0)

	c := Clone(g)
	require.NoError(t, c.Validate())

	assert.Equal(t, MarshalGraph(g), MarshalGraph(c))

	for i, b := range g.Blocks {
		cb := c.Blocks[i]

		assert.NotSame(t, b, cb)
		assert.Same(t, c, cb.Graph())

		for j, op := range b.Ops {
			assert.NotSame(t, op, cb.Ops[j])
			assert.Same(t, cb, cb.Ops[j].Base().Block())
		}
	}

	add := c.Block(2).Ops[0]
	add.Base().SubstituteUsage(add.Base().Args[1], add.Base().Args[0])

	assert.NotEqual(t, MarshalGraph(g), MarshalGraph(c))

	cc := g.Exprs[2].(*ir.Constant)
	assert.NotSame(t, cc, c.Exprs[2])

	pr := c.Exprs[3].(*ir.PhysicalRegister)
	assert.Same(t, r0, pr.Reg)
}

func TestCloneProgramSharesGraphs(t *testing.T) {
	_, r0 := testRegisters()
	g := testGraph(t, r0)

	p := &ir.Program{
		Methods: []*ir.Method{
			{Name: "A", CFG: g},
			{Name: "B", CFG: g},
		},
	}

	c := CloneProgram(p)

	require.Len(t, c.Methods, 2)
	assert.NotSame(t, p.Methods[0], c.Methods[0])
	assert.NotSame(t, g, c.Methods[0].CFG)
	assert.Same(t, c.Methods[0].CFG, c.Methods[1].CFG)
	assert.Same(t, g, p.Methods[0].CFG)
}

func TestCompactDropsUnreachable(t *testing.T) {
	_, r0 := testRegisters()
	g := testGraph(t, r0)

	c := Compact(g)
	require.NoError(t, c.Validate())

	assert.Len(t, c.Blocks, len(g.Blocks)-1)
	assert.Len(t, c.Exprs, len(g.Exprs)-1)

	for i, b := range c.Blocks {
		assert.Equal(t, ir.BlockID(i), b.ID)
	}

	assert.Equal(t, ir.BlockID(3), c.Exit)
	assert.Equal(t, ir.BlockKind(ir.BlockExit), c.Block(c.Exit).Kind)

	head := c.Block(1)
	assert.Equal(t, []ir.BlockID{3, 2}, head.Successors())

	ret := c.Block(c.Exit).Control().(*ir.Return)
	assert.IsType(t, &ir.PhysicalRegister{}, c.Expr(ret.Args[0]))

	// the source graph is untouched
	assert.Len(t, g.Blocks, 5)
	assert.Same(t, g, g.Block(3).Graph())
}

// variantGraph uses every expression, operator and annotation kind
// and has a protected region with two handlers.
func variantGraph(t *testing.T, lookup RegisterLookup) *ir.ControlFlowGraph {
	t.Helper()

	g := ir.NewGraph("Test::Variants(int,pointer)")

	x := g.NewArgument("x", ir.Int32)
	p := g.NewArgument("p", ir.Pointer)
	obj := g.NewVariable("obj", ir.Object)
	flag := g.NewVariable("flag", ir.Bool)
	f := g.NewTemporary(ir.Float32)
	y := g.NewTemporary(ir.Int32)

	ps := g.AddExpr(&ir.PseudoRegister{Number: 7, Type: ir.Int32, Class: machine.ClassInteger})
	out := g.AddExpr(&ir.StackLocation{Kind: ir.StackOut, Index: 1, Type: ir.Int32})
	r1 := g.AddExpr(&ir.PhysicalRegister{Reg: lookup("r1"), Type: ir.Int32})
	zero := g.Const(ir.NewInt(ir.Int32, 0))

	g.Exprs[obj].(*ir.Variable).Alias = out

	cond := g.NewBlock(ir.BlockNormal)
	call := g.NewBlock(ir.BlockNormal)
	exit := g.NewBlock(ir.BlockNormal)
	dead := g.NewBlock(ir.BlockNormal)
	h1 := g.NewBlock(ir.BlockHandler)
	h2 := g.NewBlock(ir.BlockHandler)

	e := g.Block(g.Entry)
	e.Append(ir.NewUnary(ir.Neg, y, x))
	e.Append(ir.NewCompare(ir.GE, false, flag, y, zero))
	e.Append(ir.NewConvert(ir.Int32, ir.Float32, f, y))
	e.Append(ir.NewLoad(ps, p, 4))
	e.Append(ir.NewStore(p, ps, 8))
	e.Append(ir.NewNew("Test", obj))
	e.Append(ir.NewMultiWay(x, []ir.BlockID{cond.ID, call.ID}, exit.ID))

	cond.ProtectedBy = []ir.BlockID{h1.ID, h2.ID}
	cond.Append(ir.NewBinaryConditional(flag, call.ID, exit.ID))

	c := ir.NewCall(ir.CallVirtual, "Test::Get(int)", y, x)
	c.Annotate(&ir.CallFragments{Operand: 0, Fragments: []ir.ExprID{r1}})
	c.Annotate(&ir.CallFragments{Operand: 0, IsResult: true, Fragments: []ir.ExprID{r1}})
	c.Annotate(&ir.Clobbers{Regs: []ir.ExprID{r1}})
	c.Debug = ir.Debug{File: "variants.cs", Line: 12}

	call.ProtectedBy = []ir.BlockID{h1.ID}
	call.Append(c)
	call.Append(ir.NewLeave(exit.ID))

	exit.Append(ir.NewReturn(y))
	dead.Append(ir.NewDead())

	h1.Append(ir.NewRethrow())
	h2.Append(ir.NewResumeUnwind(obj))

	require.NoError(t, g.Validate())

	return g
}

func TestRoundTripAllVariants(t *testing.T) {
	lookup, _ := testRegisters()
	g := variantGraph(t, lookup)

	kinds := map[ir.Kind]bool{}

	for _, x := range g.Exprs {
		kinds[ir.ExprKind(x)] = true
	}

	g.Operators(func(_ *ir.BasicBlock, op ir.Operator) bool {
		kinds[ir.OperatorKind(op)] = true

		for _, a := range op.Base().Annotations {
			kinds[ir.AnnotationKind(a)] = true
		}

		return true
	})

	for k := ir.KindConstant; k <= ir.KindClobbers; k++ {
		if k == ir.KindRegisterConstraint {
			continue // covered by testGraph
		}

		assert.True(t, kinds[k], "kind %v not covered", k)
	}

	b := MarshalGraph(g)

	g2, err := UnmarshalGraph(b, lookup)
	require.NoError(t, err)
	require.NoError(t, g2.Validate())

	assert.Equal(t, b, MarshalGraph(g2))

	cond := g2.Block(1)
	assert.Equal(t, []ir.BlockID{5, 6}, cond.ProtectedBy)
	assert.Equal(t, []ir.BlockID{5, 6}, cond.ExceptionSuccessors())
	assert.Equal(t, ir.BlockKind(ir.BlockHandler), g2.Block(5).Kind)
	assert.ElementsMatch(t, []ir.BlockID{1, 2}, g2.Block(5).Predecessors())

	mw := g2.Block(g2.Entry).Control().(*ir.MultiWay)
	assert.Equal(t, []ir.BlockID{1, 2}, mw.Cases)
	assert.Equal(t, ir.BlockID(3), mw.NotTaken)

	c := g2.Block(2).Ops[0].(*ir.Call)
	assert.Equal(t, ir.Debug{File: "variants.cs", Line: 12}, c.Debug)
	require.Len(t, c.Annotations, 3)

	res := c.Annotations[1].(*ir.CallFragments)
	assert.True(t, res.IsResult)

	clob := c.Annotations[2].(*ir.Clobbers)
	require.Len(t, clob.Regs, 1)
	assert.Same(t, lookup("r1"), g2.Expr(clob.Regs[0]).(*ir.PhysicalRegister).Reg)

	assert.Equal(t, &ir.PseudoRegister{Number: 7, Type: ir.Int32, Class: machine.ClassInteger}, g2.Exprs[6])
	assert.Equal(t, &ir.StackLocation{Kind: ir.StackOut, Index: 1, Type: ir.Int32}, g2.Exprs[7])
	assert.Equal(t, ir.ExprID(7), g2.Exprs[2].(*ir.Variable).Alias)
}

func TestCloneAllVariants(t *testing.T) {
	lookup, _ := testRegisters()
	g := variantGraph(t, lookup)

	c := Clone(g)
	require.NoError(t, c.Validate())

	assert.Equal(t, MarshalGraph(g), MarshalGraph(c))

	call := c.Block(2).Ops[0].(*ir.Call)
	orig := g.Block(2).Ops[0].(*ir.Call)

	for i, a := range call.Annotations {
		assert.NotSame(t, orig.Annotations[i], a)
	}

	clob := call.Annotations[2].(*ir.Clobbers)
	clob.Regs[0] = 0

	assert.Equal(t, ir.ExprID(8), orig.Annotations[2].(*ir.Clobbers).Regs[0])
	assert.Equal(t, []ir.BlockID{5, 6}, c.Block(1).ProtectedBy)

	c.Block(1).ProtectedBy[0] = 6
	assert.Equal(t, []ir.BlockID{5, 6}, g.Block(1).ProtectedBy)
}
