package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/aot/compiler/back"
	"github.com/slowlang/aot/compiler/board"
	"github.com/slowlang/aot/compiler/image"
	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/pass"
	"github.com/slowlang/aot/compiler/target/arm"
)

const (
	mainName = "App::Main()"
	incName  = "App::Inc(int32)"
)

func testProgram() *ir.Program {
	mg := ir.NewGraph(mainName)
	r := mg.NewVariable("r", ir.Int32)

	next := mg.NewBlock(ir.BlockNormal)

	mg.Block(mg.Entry).Append(ir.NewUnconditional(next.ID))
	next.Append(ir.NewCall(ir.CallStatic, incName, r, mg.Const(ir.NewInt(ir.Int32, 41))))
	next.Append(ir.NewReturn(r))

	ig := ir.NewGraph(incName)
	x := ig.NewArgument("x", ir.Int32)
	y := ig.NewVariable("y", ir.Int32)

	e := ig.Block(ig.Entry)
	e.Append(ir.NewBinary(ir.Add, true, y, x, ig.Const(ir.NewInt(ir.Int32, 1))))
	e.Append(ir.NewReturn(y))

	return &ir.Program{
		Methods: []*ir.Method{
			{Name: mainName, Owner: "App", Return: ir.Int32, Flags: ir.MethodStatic, CFG: mg},
			{Name: incName, Owner: "App", Return: ir.Int32, Params: []ir.Type{ir.Int32}, Flags: ir.MethodStatic, CFG: ig},
		},
		Types: []*ir.TypeInfo{{Name: "App"}},
	}
}

func TestCompile(t *testing.T) {
	prog := testProgram()

	b := board.Default()
	b.EntryPoints = []string{mainName}

	obj, err := Compile(context.Background(), prog, b)
	require.NoError(t, err)

	out := string(obj)
	assert.Contains(t, out, back.Symbol(mainName)+":")
	assert.Contains(t, out, "BL\t"+back.Symbol(incName))

	assert.Len(t, prog.Methods[0].CFG.Blocks, 2, "input program is not modified")
	assert.Empty(t, prog.EntryPoints)
}

func TestCompileLLVM(t *testing.T) {
	b := board.Default()
	b.Backend = board.BackendLLVM
	b.Platform.VFP = true
	b.EntryPoints = []string{mainName}

	obj, err := Compile(context.Background(), testProgram(), b)
	require.NoError(t, err)

	assert.Contains(t, string(obj), back.TripleHardFloat)
	assert.Contains(t, string(obj), "define i32 @"+back.Symbol(incName))
}

func TestCompileErrors(t *testing.T) {
	b := board.Default()
	b.Platform.Name = "z80"

	_, err := Compile(context.Background(), testProgram(), b)
	assert.Error(t, err)

	_, err = Compile(context.Background(), nil, board.Default())
	assert.Error(t, err)

	// unknown entry point
	b = board.Default()
	b.EntryPoints = []string{"App::Missing()"}

	_, err = Compile(context.Background(), testProgram(), b)
	assert.Error(t, err)
}

func TestDisabledPhases(t *testing.T) {
	b := board.Default()
	b.EntryPoints = []string{mainName}
	b.DisabledPhases = []string{pass.EmitCode}

	obj, err := Compile(context.Background(), testProgram(), b)
	require.NoError(t, err)
	assert.Empty(t, obj)
}

func TestDump(t *testing.T) {
	dir := t.TempDir()

	b := board.Default()
	b.EntryPoints = []string{mainName}
	b.Dump.Dir = dir
	b.Dump.Phases = []string{pass.SimplifyControlFlow}

	_, err := Compile(context.Background(), testProgram(), b)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "02_"+pass.SimplifyControlFlow, entries[0].Name())

	txt, err := os.ReadFile(filepath.Join(dir, entries[0].Name(), back.Symbol(mainName)+".txt"))
	require.NoError(t, err)
	assert.Contains(t, string(txt), "[Kind:Entry]")
}

func TestDumpOnFailure(t *testing.T) {
	dir := t.TempDir()

	prog := testProgram()

	ig := prog.Methods[1].CFG
	ret := ig.Block(ig.Entry).Control().(*ir.Return)
	ret.Args = append(ret.Args, ig.Args[0])

	b := board.Default()
	b.EntryPoints = []string{mainName}
	b.Dump.Dir = dir
	b.Dump.Phases = []string{pass.EmitCode}
	b.Dump.XML = true

	_, err := Compile(context.Background(), prog, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), pass.LowerCallingConvention)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	failed := "failed_" + pass.CollectRegisterConstraints
	assert.Equal(t, failed, entries[0].Name())

	txt, err := os.ReadFile(filepath.Join(dir, failed, back.Symbol(incName)+".txt"))
	require.NoError(t, err)
	assert.Contains(t, string(txt), "method "+incName)

	_, err = os.Stat(filepath.Join(dir, failed, back.Symbol(mainName)+".xml"))
	assert.NoError(t, err)
}

func TestCompileFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	prog := testProgram()
	prog.EntryPoints = []string{mainName}

	img := filepath.Join(dir, "app.aoti")
	require.NoError(t, image.WriteFile(ctx, img, image.New(prog, arm.Name)))

	boardFile := filepath.Join(dir, "board.yaml")
	require.NoError(t, os.WriteFile(boardFile, []byte("name: test\nplatform:\n  name: armv7m\nbackend: asm\nworkers: 2\n"), 0o644))

	obj, err := CompileFile(ctx, img, boardFile)
	require.NoError(t, err)
	assert.Contains(t, string(obj), back.Symbol(incName)+":")

	obj, err = CompileFile(ctx, img, "")
	require.NoError(t, err)
	assert.NotEmpty(t, obj)

	_, err = CompileFile(ctx, filepath.Join(dir, "missing.aoti"), "")
	assert.Error(t, err)
}
