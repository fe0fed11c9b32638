package pass

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/aot/compiler/back"
	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
	"github.com/slowlang/aot/compiler/pipeline"
	"github.com/slowlang/aot/compiler/target"
	"github.com/slowlang/aot/compiler/target/arm"
)

const (
	mainName   = "App::Main()"
	sumName    = "App::Sum(int32,int64,float64)"
	unusedName = "App::Unused()"
)

// mainGraph calls Sum behind a constant branch and an empty jump block.
func mainGraph() *ir.ControlFlowGraph {
	g := ir.NewGraph(mainName)

	r := g.NewVariable("r", ir.Int32)
	one := g.Const(ir.NewInt(ir.Int32, 1))
	big := g.Const(ir.NewInt(ir.Int64, 1<<40))
	f := g.Const(ir.NewFloat64(0.5))

	jump := g.NewBlock(ir.BlockNormal)
	body := g.NewBlock(ir.BlockNormal)
	dead := g.NewBlock(ir.BlockNormal)

	g.Block(g.Entry).Append(ir.NewCompareConditional(ir.EQ, true, one, one, jump.ID, dead.ID))
	jump.Append(ir.NewUnconditional(body.ID))
	body.Append(ir.NewCall(ir.CallStatic, sumName, r, one, big, f))
	body.Append(ir.NewReturn(r))
	dead.Append(ir.NewReturn(one))

	return g
}

func sumGraph() *ir.ControlFlowGraph {
	g := ir.NewGraph(sumName)

	a := g.NewArgument("a", ir.Int32)
	b := g.NewArgument("b", ir.Int64)
	g.NewArgument("c", ir.Float64)

	t := g.NewTemporary(ir.Int32)
	r := g.NewVariable("r", ir.Int32)

	e := g.Block(g.Entry)
	e.Append(ir.NewConvert(ir.Int64, ir.Int32, t, b))
	e.Append(ir.NewBinary(ir.Add, true, r, a, t))
	e.Append(ir.NewReturn(r))

	return g
}

func testProgram() *ir.Program {
	return &ir.Program{
		Methods: []*ir.Method{
			{Name: mainName, Owner: "App", Return: ir.Int32, Flags: ir.MethodStatic | ir.MethodEntryPoint, CFG: mainGraph()},
			{Name: sumName, Owner: "App", Return: ir.Int32, Params: []ir.Type{ir.Int32, ir.Int64, ir.Float64}, Flags: ir.MethodStatic, CFG: sumGraph()},
			{Name: unusedName, Owner: "App", Flags: ir.MethodStatic, CFG: ir.NewGraph(unusedName)},
		},
		Types: []*ir.TypeInfo{
			{Name: "App"},
			{Name: "Unused"},
		},
		EntryPoints: []string{mainName},
	}
}

func testState(t *testing.T, vfp bool) *pipeline.State {
	t.Helper()

	p, err := arm.New(target.Config{VFP: vfp})
	require.NoError(t, err)

	return &pipeline.State{
		Program:  testProgram(),
		Platform: p,
		Backend:  back.NameAsm,
		Workers:  1,
	}
}

func run(t *testing.T, st *pipeline.State, upTo string) {
	t.Helper()

	c := pipeline.New()
	Register(c)

	for _, n := range Names()[indexOf(Names(), upTo)+1:] {
		c.Disable(n)
	}

	require.NoError(t, c.Run(context.Background(), st))
}

func indexOf(l []string, s string) int {
	for i, x := range l {
		if x == s {
			return i
		}
	}

	return -1
}

func TestPhaseOrder(t *testing.T) {
	c := pipeline.New()
	Register(c)

	require.NoError(t, c.Sort(context.Background()))
	assert.Equal(t, Names(), c.Phases())
}

func TestReduceTypeSystem(t *testing.T) {
	st := testState(t, false)
	orig := st.Program

	run(t, st, ReduceTypeSystem)

	assert.NotNil(t, st.Program.Method(mainName))
	assert.NotNil(t, st.Program.Method(sumName))
	assert.Nil(t, st.Program.Method(unusedName))
	assert.Nil(t, st.Program.Type("Unused"))
	assert.NotNil(t, st.Program.Type("App"))

	assert.Len(t, orig.Methods, 3, "source program is kept")
}

func TestReduceTypeSystemNeedsClosure(t *testing.T) {
	st := testState(t, false)

	err := reduceTypeSystem(context.Background(), st)
	assert.Error(t, err)
}

func TestSimplifyControlFlow(t *testing.T) {
	st := testState(t, false)

	run(t, st, SimplifyControlFlow)

	g := st.Program.Method(mainName).CFG
	require.NoError(t, g.Validate())

	require.Len(t, g.Blocks, 1)
	require.Len(t, g.Blocks[0].Ops, 2)
	assert.IsType(t, &ir.Call{}, g.Blocks[0].Ops[0])
	assert.IsType(t, &ir.Return{}, g.Blocks[0].Ops[1])
}

func TestSimplifySelfLoop(t *testing.T) {
	g := ir.NewGraph("App::Spin()")
	x := g.NewArgument("x", ir.Bool)

	loop := g.NewBlock(ir.BlockNormal)
	exit := g.NewBlock(ir.BlockNormal)

	g.Block(g.Entry).Append(ir.NewBinaryConditional(x, loop.ID, exit.ID))
	loop.Append(ir.NewUnconditional(loop.ID))
	exit.Append(ir.NewReturn())

	m := &ir.Method{Name: "App::Spin()", CFG: g}

	require.NoError(t, simplifyMethod(context.Background(), m))
	require.NoError(t, m.CFG.Validate())
	assert.Len(t, m.CFG.Blocks, 3)
}

func TestCollectRegisterConstraints(t *testing.T) {
	st := testState(t, false)

	run(t, st, CollectRegisterConstraints)

	g := st.Program.Method(sumName).CFG

	var add *ir.Binary

	g.Operators(func(_ *ir.BasicBlock, op ir.Operator) bool {
		if b, ok := op.(*ir.Binary); ok {
			add = b
		}

		return true
	})

	require.NotNil(t, add)
	assert.Len(t, add.Annotations, 3)

	c, ok := ir.FindAnnotation(add, func(a *ir.RegisterConstraint) bool { return a.IsResult })
	require.True(t, ok)
	assert.Equal(t, machine.ClassInteger, c.Class)

	constrain(g, add)
	assert.Len(t, add.Annotations, 3, "constraints are not duplicated")
}

func TestLowerCallingConvention(t *testing.T) {
	st := testState(t, false)

	run(t, st, AssignStackSlots)

	sum := st.Program.Method(sumName)
	g := sum.CFG
	f := st.Frame(sumName)
	require.NotNil(t, f)

	names := func(ids []ir.ExprID) (r []string) {
		for _, id := range ids {
			switch x := g.Expr(id).(type) {
			case *ir.PhysicalRegister:
				r = append(r, x.Reg.Mnemonic)
			case *ir.StackLocation:
				r = append(r, x.Kind.String())
			}
		}

		return r
	}

	require.Len(t, f.Args, 3)
	assert.Equal(t, []string{"r0"}, names(f.Args[0]))
	assert.Equal(t, []string{"r1", "r2"}, names(f.Args[1]))
	assert.Equal(t, []string{"in"}, names(f.Args[2]))
	assert.Equal(t, []string{"r0"}, names(f.Result))

	ret := g.Block(g.Entry).Control()
	cf, ok := ir.FindAnnotation(ret, func(a *ir.CallFragments) bool { return !a.IsResult })
	require.True(t, ok)
	assert.Equal(t, f.Result, cf.Fragments)

	// a and b get local slots, c stays where the caller put it
	a, b, c := g.Args[0], g.Args[1], g.Args[2]
	assert.Equal(t, f.Args[2][0], f.Slot(c))
	assert.Equal(t, f.Slot(a), g.Expr(a).(*ir.Variable).Alias)

	sa := g.Expr(f.Slot(a)).(*ir.StackLocation)
	sb := g.Expr(f.Slot(b)).(*ir.StackLocation)
	assert.Equal(t, ir.StackLocal, sa.Kind)
	assert.Equal(t, ir.StackLocal, sb.Kind)
	assert.NotEqual(t, sa.Index, sb.Index)

	for id, x := range g.Exprs {
		if _, ok := x.(*ir.Temporary); ok {
			_, ok = f.Slots[ir.ExprID(id)]
			assert.True(t, ok, "temporary %d has a slot", id)
		}
	}

	main := st.Frame(mainName)
	require.NotNil(t, main)
	assert.Equal(t, 2, main.OutWords)

	mg := st.Program.Method(mainName).CFG
	call := mg.Block(mg.Entry).Ops[0].(*ir.Call)

	cl, ok := ir.FindAnnotation(call, (func(*ir.Clobbers) bool)(nil))
	require.True(t, ok)
	assert.NotEmpty(t, cl.Regs)

	res, ok := ir.FindAnnotation(call, func(a *ir.CallFragments) bool { return a.IsResult })
	require.True(t, ok)
	assert.Len(t, res.Fragments, 1)

	arg, ok := ir.FindAnnotation(call, func(a *ir.CallFragments) bool { return !a.IsResult && a.Operand == 2 })
	require.True(t, ok)
	require.Len(t, arg.Fragments, 1)
	assert.Equal(t, ir.StackOut, mg.Expr(arg.Fragments[0]).(*ir.StackLocation).Kind)
}

func TestAssignStackSlotsNeedsFrame(t *testing.T) {
	st := testState(t, false)

	err := assignStackSlots(context.Background(), st)
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	g := ir.NewGraph("App::Diamond()")
	x := g.NewArgument("x", ir.Bool)

	l := g.NewBlock(ir.BlockNormal)
	r := g.NewBlock(ir.BlockNormal)
	h := g.NewBlock(ir.BlockHandler)
	j := g.NewBlock(ir.BlockNormal)

	e := g.Block(g.Entry)
	e.ProtectedBy = []ir.BlockID{h.ID}

	e.Append(ir.NewBinaryConditional(x, l.ID, r.ID))
	l.Append(ir.NewUnconditional(j.ID))
	r.Append(ir.NewUnconditional(j.ID))
	h.Append(ir.NewReturn())
	j.Append(ir.NewReturn())

	order := Layout(g)

	assert.Equal(t, []ir.BlockID{g.Entry, r.ID, j.ID, l.ID, h.ID}, order)
}

func TestFullPipeline(t *testing.T) {
	for _, vfp := range []bool{false, true} {
		for _, workers := range []int{1, 4} {
			st := testState(t, vfp)
			st.Workers = workers

			run(t, st, EmitCode)

			out := string(st.Output)

			assert.Contains(t, out, back.Symbol(mainName)+":")
			assert.Contains(t, out, "BL\t"+back.Symbol(sumName))
			assert.NotContains(t, out, back.Symbol(unusedName))
			assert.Equal(t, 1, strings.Count(out, "\t.global\t"+back.Symbol(sumName)+"\n"))

			for _, m := range st.Program.Methods {
				assert.NotNil(t, st.Layout(m.Name), "layout of %v", m.Name)
			}
		}
	}
}
