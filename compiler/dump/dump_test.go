package dump

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/pipeline"
)

const methodName = "App::Check(int32)"

type nopPhase string

func (p nopPhase) Name() string { return string(p) }

func (p nopPhase) Run(context.Context, *pipeline.State) error { return nil }

type failPhase string

func (p failPhase) Name() string { return string(p) }

func (p failPhase) Run(context.Context, *pipeline.State) error { return errors.New("broken") }

func testMethod() *ir.Method {
	g := ir.NewGraph(methodName)

	x := g.NewArgument("x", ir.Int32)
	t := g.NewTemporary(ir.Int32)

	body := g.NewBlock(ir.BlockNormal)
	h := g.NewBlock(ir.BlockHandler)

	e := g.Block(g.Entry)
	e.Append(ir.NewUnconditional(body.ID))

	body.ProtectedBy = []ir.BlockID{h.ID}
	body.Append(ir.NewBinary(ir.Add, true, t, x, g.Const(ir.NewInt(ir.Int32, 1))))
	body.Append(ir.NewReturn())

	h.Append(ir.NewReturn())

	return &ir.Method{Name: methodName, Params: []ir.Type{ir.Int32}, Flags: ir.MethodStatic, CFG: g}
}

func TestText(t *testing.T) {
	m := testMethod()

	out := string(AppendText(nil, m, nil))

	assert.True(t, strings.HasPrefix(out, "method "+methodName+"\n"), "%s", out)
	assert.Contains(t, out, "variables:\n\tx: int32\n")
	assert.Contains(t, out, "\t$Temp_")
	assert.Contains(t, out, "BB0: [Index:0] [Kind:Entry]\n")
	assert.Contains(t, out, "BB1: [Index:1] [Kind:Normal]\n")
	assert.Contains(t, out, "\t.edge normal to BB1\n")
	assert.Contains(t, out, "\t.edge exception to BB2\n")
	assert.Contains(t, out, "\t.protected by BB2\n")
	assert.Contains(t, out, "\t.idom BB0\n")
	assert.Contains(t, out, "[Kind:Exception]")

	order := []ir.BlockID{2, 0, 1}
	out = string(AppendText(nil, m, order))
	assert.Contains(t, out, "BB2: [Index:0] [Kind:Exception]\n")

	out = string(AppendText(nil, &ir.Method{Name: "App::Native()"}, nil))
	assert.Contains(t, out, "<no code>")
}

func TestXML(t *testing.T) {
	m := testMethod()

	data, err := AppendXML(nil, m, nil)
	require.NoError(t, err)

	var x xmlMethod
	require.NoError(t, xml.Unmarshal(data, &x))

	assert.Equal(t, methodName, x.Name)
	require.Len(t, x.Variables, 2)
	assert.Equal(t, "x", x.Variables[0].Name)
	assert.Equal(t, "int32", x.Variables[0].Type)

	require.Len(t, x.Blocks, 3)
	assert.Equal(t, "Entry", x.Blocks[0].Type)
	assert.Equal(t, []xmlEdge{{Kind: "normal", To: 1}}, x.Blocks[0].Edges)

	b := x.Blocks[1]
	assert.Equal(t, 1, b.Index)
	require.Len(t, b.Operators, 2)
	assert.Contains(t, b.Edges, xmlEdge{Kind: "exception", To: 2})
}

func TestObserver(t *testing.T) {
	dir := t.TempDir()

	o := &Observer{Dir: dir, Phases: []string{"B"}, XML: true}

	st := &pipeline.State{Program: &ir.Program{Methods: []*ir.Method{testMethod(), {Name: "App::Native()"}}}}

	c := pipeline.New()
	c.Add(nopPhase("A"), pipeline.Order{})
	c.Add(nopPhase("B"), pipeline.Order{After: []string{"A"}})
	c.Observe(o.Observe)

	require.NoError(t, c.Run(context.Background(), st))

	_, err := os.Stat(filepath.Join(dir, "00_A"))
	assert.True(t, os.IsNotExist(err))

	txt, err := os.ReadFile(filepath.Join(dir, "01_B", "App__Check_int32_.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(txt), "method "+methodName)

	_, err = os.Stat(filepath.Join(dir, "01_B", "App__Check_int32_.xml"))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "01_B", "App__Native__.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestObserverFailure(t *testing.T) {
	dir := t.TempDir()

	o := &Observer{Dir: dir, Phases: []string{"C"}}

	st := &pipeline.State{Program: &ir.Program{Methods: []*ir.Method{testMethod()}}}

	c := pipeline.New()
	c.Add(nopPhase("A"), pipeline.Order{})
	c.Add(failPhase("B"), pipeline.Order{After: []string{"A"}})
	c.Add(nopPhase("C"), pipeline.Order{After: []string{"B"}})
	c.Observe(o.Observe)
	c.OnFailure(o.Failure)

	err := c.Run(context.Background(), st)
	require.Error(t, err)

	txt, err := os.ReadFile(filepath.Join(dir, "failed_A", "App__Check_int32_.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(txt), "method "+methodName)

	_, err = os.Stat(filepath.Join(dir, "failed_A", "App__Check_int32_.xml"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dir, "02_C"))
	assert.True(t, os.IsNotExist(err))
}

func TestObserverFailureBeforeAnyPhase(t *testing.T) {
	dir := t.TempDir()

	o := &Observer{Dir: dir, XML: true}

	st := &pipeline.State{Program: &ir.Program{Methods: []*ir.Method{testMethod()}}}

	c := pipeline.New()
	c.Add(failPhase("A"), pipeline.Order{})
	c.OnFailure(o.Failure)

	require.Error(t, c.Run(context.Background(), st))

	_, err := os.Stat(filepath.Join(dir, "failed_start", "App__Check_int32_.txt"))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "failed_start", "App__Check_int32_.xml"))
	assert.NoError(t, err)
}
