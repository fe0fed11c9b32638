package arm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
	"github.com/slowlang/aot/compiler/target"
)

func newPlatform(t *testing.T, vfp bool) *Platform {
	t.Helper()

	p, err := New(target.Config{VFP: vfp})
	require.NoError(t, err)

	return p
}

func mnemonics(xs []ir.Expr) []string {
	var r []string

	for _, x := range xs {
		switch x := x.(type) {
		case *ir.PhysicalRegister:
			r = append(r, x.Reg.Mnemonic)
		case *ir.StackLocation:
			r = append(r, "stack")
		}
	}

	return r
}

func TestRegisters(t *testing.T) {
	p := newPlatform(t, false)
	assert.Len(t, p.Registers(), 17)
	assert.Nil(t, p.RegisterByMnemonic("s0"))

	p = newPlatform(t, true)
	assert.Len(t, p.Registers(), 16+32+16+1)

	for i, r := range p.Registers() {
		assert.Equal(t, i, r.Index)
	}

	d1 := p.RegisterByMnemonic("d1")
	s2 := p.RegisterByMnemonic("s2")
	s3 := p.RegisterByMnemonic("s3")
	s4 := p.RegisterByMnemonic("s4")

	assert.True(t, d1.InterferesWith(s2))
	assert.True(t, s3.InterferesWith(d1))
	assert.False(t, d1.InterferesWith(s4))

	assert.Equal(t, machine.PairLow, s2.PairState())
	assert.Equal(t, machine.PairHigh, s3.PairState())

	assert.Equal(t, "r12", p.ScratchRegister().Mnemonic)
	assert.Same(t, p.RegisterByMnemonic("sp"), p.RegisterForEncoding(EncSP))
	assert.True(t, p.RegisterByMnemonic("sp").Is(machine.ClassStackPointer))
	assert.True(t, p.RegisterByMnemonic("cpsr").Is(machine.ClassStatusRegister))
}

func TestAssignArgumentsCallee(t *testing.T) {
	p := newPlatform(t, true)
	cc := p.CallingConvention()
	st := cc.NewCallState(target.Callee)

	var got []string

	for _, typ := range []ir.Type{ir.Int32, ir.Float32, ir.Int32, ir.Float64, ir.Int64, ir.Float32, ir.Int32} {
		got = append(got, mnemonics(cc.AssignArgument(st, typ))...)
	}

	assert.Equal(t, []string{"r0", "s0", "r1", "d1", "r2", "r3", "s4", "stack"}, got)

	x := cc.AssignArgument(st, ir.Int32)[0].(*ir.StackLocation)
	assert.Equal(t, ir.StackIn, x.Kind)
	assert.Equal(t, 1, x.Index)
}

func TestAssignArgumentsCallerNoVFP(t *testing.T) {
	p := newPlatform(t, false)
	cc := p.CallingConvention()
	st := cc.NewCallState(target.Caller)

	var got []string

	for _, typ := range []ir.Type{ir.Float32, ir.Float64} {
		got = append(got, mnemonics(cc.AssignArgument(st, typ))...)
	}

	assert.Equal(t, []string{"r0", "r1", "r2"}, got)

	assert.False(t, st.CanMapToRegister(ir.Int64))
	assert.True(t, st.CanMapToRegister(ir.Int32))

	frags := cc.AssignArgument(st, ir.Int64)
	require.Len(t, frags, 1)

	x := frags[0].(*ir.StackLocation)
	assert.Equal(t, ir.StackOut, x.Kind)
	assert.Equal(t, 0, x.Index)

	assert.Equal(t, []string{"r3"}, mnemonics(cc.AssignArgument(st, ir.Int32)))
}

func TestAssignReturnValue(t *testing.T) {
	p := newPlatform(t, true)
	cc := p.CallingConvention()

	assert.Nil(t, cc.AssignReturnValue(cc.NewCallState(target.Callee), ir.Void))
	assert.Equal(t, []string{"r0", "r1"}, mnemonics(cc.AssignReturnValue(cc.NewCallState(target.Callee), ir.Int64)))
	assert.Equal(t, []string{"d0"}, mnemonics(cc.AssignReturnValue(cc.NewCallState(target.Callee), ir.Float64)))

	big := ir.Type{Name: "Big", Class: ir.ClassValueType, Size: 16}
	st := cc.NewCallState(target.Caller)

	assert.False(t, st.CanMapResultToRegister(big))

	x := cc.AssignReturnValue(st, big)[0].(*ir.StackLocation)
	assert.Equal(t, ir.StackOut, x.Kind)

	y := st.AllocateStackOut(ir.Int32).(*ir.StackLocation)
	assert.Equal(t, 4, y.Index, "big value takes four words")
}

func TestCursorsNeverRepeat(t *testing.T) {
	p := newPlatform(t, true)
	st := p.CallingConvention().NewCallState(target.Callee)

	seen := map[int]bool{}

	for _, typ := range []ir.Type{ir.Float32, ir.Float64, ir.Float32, ir.Float32, ir.Float64} {
		i := st.NextIndex(target.FragmentArgument, typ)
		assert.False(t, seen[i], "register %v handed out twice", p.Registers()[i])
		seen[i] = true
	}

	locals := map[int]bool{}

	for i := 0; i < 5; i++ {
		x := st.AllocateStackLocal(ir.Int32).(*ir.StackLocation)
		assert.False(t, locals[x.Index])
		locals[x.Index] = true
	}
}

func TestSaveAndInvalidate(t *testing.T) {
	p := newPlatform(t, false)
	cc := p.CallingConvention()

	assert.True(t, cc.ShouldSaveRegister(p.RegisterByMnemonic("r4")))
	assert.True(t, cc.ShouldSaveRegister(p.RegisterByMnemonic("r11")))
	assert.False(t, cc.ShouldSaveRegister(p.RegisterByMnemonic("r0")))
	assert.False(t, cc.ShouldSaveRegister(p.RegisterByMnemonic("r12")))

	g := ir.NewGraph("Test::M()")
	call := ir.NewCall(ir.CallStatic, "Test::N()", ir.NoExpr)

	ids := cc.CollectExpressionsToInvalidate(g, call)
	require.Len(t, ids, 6)

	var names []string
	for _, id := range ids {
		names = append(names, g.Expr(id).(*ir.PhysicalRegister).Reg.Mnemonic)
	}

	assert.Equal(t, []string{"r0", "r1", "r2", "r3", "r12", "lr"}, names)
	assert.Equal(t, ids, cc.CollectExpressionsToInvalidate(g, call), "expressions are reused")

	pv := newPlatform(t, true)
	ids = pv.CallingConvention().CollectExpressionsToInvalidate(g, call)
	assert.Len(t, ids, 6+16+8)
}

func TestRegistryAndMemory(t *testing.T) {
	p, err := target.New(Name, target.Config{VFP: true})
	require.NoError(t, err)

	assert.Equal(t, Name, p.Name())
	assert.True(t, p.InstructionSet().HasVFP())

	req := p.MemoryRequirements(machine.UsageDataRW)
	rs := p.MemoryBlocks().Select(&req)
	require.Len(t, rs, 1)
	assert.Equal(t, "sram", rs[0].Name)

	_, err = target.New(Name, target.Config{Memory: []machine.MemoryRange{
		{Name: "a", Start: 0, End: 0x100},
		{Name: "b", Start: 0x80, End: 0x200},
	}})
	assert.Error(t, err)
}
