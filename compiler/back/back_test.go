package back_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/aot/compiler/back"
	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/pass"
	"github.com/slowlang/aot/compiler/pipeline"
	"github.com/slowlang/aot/compiler/target"
	"github.com/slowlang/aot/compiler/target/arm"
)

const (
	mainName   = "App::Main()"
	switchName = "App::Switch(int32)"
)

func allocGraph() *ir.ControlFlowGraph {
	g := ir.NewGraph(mainName)

	box := g.NewVariable("box", ir.Object)

	e := g.Block(g.Entry)
	e.Append(ir.NewNew("Box", box))
	e.Append(ir.NewCall(ir.CallStatic, switchName, ir.NoExpr, g.Const(ir.NewInt(ir.Int32, 1))))
	e.Append(ir.NewReturn())

	return g
}

func switchGraph() *ir.ControlFlowGraph {
	g := ir.NewGraph(switchName)

	x := g.NewArgument("x", ir.Int32)
	y := g.NewVariable("y", ir.Int32)

	b0 := g.NewBlock(ir.BlockNormal)
	b1 := g.NewBlock(ir.BlockNormal)
	def := g.NewBlock(ir.BlockNormal)
	exit := g.NewBlock(ir.BlockNormal)

	g.Block(g.Entry).Append(ir.NewMultiWay(x, []ir.BlockID{b0.ID, b1.ID}, def.ID))

	b0.Append(ir.NewBinary(ir.Add, true, y, x, g.Const(ir.NewInt(ir.Int32, 10))))
	b0.Append(ir.NewUnconditional(exit.ID))

	b1.Append(ir.NewCompare(ir.LT, true, y, x, g.Const(ir.NewInt(ir.Int32, 3))))
	b1.Append(ir.NewUnconditional(exit.ID))

	def.Append(ir.NewAssign(y, g.Const(ir.NewInt(ir.Int32, -1))))
	def.Append(ir.NewUnconditional(exit.ID))

	exit.Append(ir.NewReturn())

	return g
}

func testState(t *testing.T, backend string, strict bool) *pipeline.State {
	t.Helper()

	p, err := arm.New(target.Config{})
	require.NoError(t, err)

	return &pipeline.State{
		Program: &ir.Program{
			Methods: []*ir.Method{
				{Name: mainName, Owner: "App", Flags: ir.MethodStatic, CFG: allocGraph()},
				{Name: switchName, Owner: "App", Params: []ir.Type{ir.Int32}, Flags: ir.MethodStatic, CFG: switchGraph()},
			},
			EntryPoints: []string{mainName},
		},
		Platform: p,
		Backend:  backend,
		Strict:   strict,
	}
}

func compile(ctx context.Context, st *pipeline.State) error {
	c := pipeline.New()
	pass.Register(c)

	return c.Run(ctx, st)
}

func TestNew(t *testing.T) {
	for _, name := range []string{back.NameAsm, back.NameLLVM} {
		b, err := back.New(name)
		require.NoError(t, err)
		assert.Equal(t, name, b.Name())
	}

	_, err := back.New("wasm")
	assert.Error(t, err)
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "App__Switch_int32_", back.Symbol(switchName))
	assert.Equal(t, "plain_name1", back.Symbol("plain_name1"))
}

func TestUnimplementedOperator(t *testing.T) {
	for _, backend := range []string{back.NameAsm, back.NameLLVM} {
		t.Run(backend, func(t *testing.T) {
			st := testState(t, backend, true)

			err := compile(context.Background(), st)

			var unimpl *back.UnimplementedOperatorError
			require.True(t, errors.As(err, &unimpl), "err: %v", err)
			assert.Equal(t, backend, unimpl.Backend)
			assert.Equal(t, mainName, unimpl.Method)
			assert.Equal(t, "new", unimpl.Op)

			st = testState(t, backend, false)

			err = compile(context.Background(), st)
			require.NoError(t, err)
			assert.NotEmpty(t, st.Output)
		})
	}
}

func TestAsm(t *testing.T) {
	st := testState(t, back.NameAsm, false)

	require.NoError(t, compile(context.Background(), st))

	out := string(st.Output)

	assert.Contains(t, out, "\t.syntax\tunified\n")
	assert.Contains(t, out, "@ unimplemented new\n")
	assert.Contains(t, out, "BL\tApp__Switch_int32_")
	assert.Contains(t, out, "\tPUSH\t{r7, lr}\n")
	assert.Contains(t, out, "\tPOP\t{r7, pc}\n")
	assert.Contains(t, out, "\tCMP\tr0, #0\n")
	assert.Contains(t, out, "\tCMP\tr0, #1\n")
	assert.Contains(t, out, "\tITE\tLT\n")
	assert.NotContains(t, out, ".fpu")
}

func TestLLVM(t *testing.T) {
	st := testState(t, back.NameLLVM, false)

	require.NoError(t, compile(context.Background(), st))

	out := string(st.Output)

	assert.Contains(t, out, `target triple = "`+back.TripleSoftFloat+`"`)
	assert.Contains(t, out, "define void @App__Switch_int32_(i32")
	assert.Contains(t, out, "switch i32")
	assert.Contains(t, out, "icmp slt i32")
	assert.Contains(t, out, "call void @App__Switch_int32_(i32 1)")
}

func TestLLVMReturnArity(t *testing.T) {
	g := ir.NewGraph("App::Pair()")
	a := g.Const(ir.NewInt(ir.Int32, 1))
	g.Block(g.Entry).Append(ir.NewReturn(a, a))

	st := &pipeline.State{
		Program: &ir.Program{Methods: []*ir.Method{{Name: "App::Pair()", Return: ir.Int32, CFG: g}}},
	}

	_, err := back.LLVM{}.Emit(context.Background(), st)
	assert.Error(t, err)
}
