package arm

import (
	"fmt"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
	"github.com/slowlang/aot/compiler/target"
)

type (
	// AAPCS is the ARM procedure call standard, hard float variant when VFP is on.
	AAPCS struct {
		p *Platform
	}

	callState struct {
		target.StackCursors

		p   *Platform
		dir target.Direction

		intWords int
		fpWords  int
		resWords int

		argInt, argFP int
		resInt, resFP int
	}
)

const (
	IntegerArgumentWords = 4
	FloatArgumentWords   = 16
	ResultWords          = 2
)

func (cc *AAPCS) NewCallState(d target.Direction) target.CallState {
	st := &callState{
		p:        cc.p,
		dir:      d,
		intWords: IntegerArgumentWords,
		resWords: ResultWords,
	}

	if cc.p.HasVFP() {
		st.fpWords = FloatArgumentWords
	}

	return st
}

func (cc *AAPCS) AssignArgument(st target.CallState, t ir.Type) []ir.Expr {
	if st.CanMapToRegister(t) {
		return fragments(st, target.FragmentArgument, t)
	}

	if st.Direction() == target.Callee {
		return []ir.Expr{st.AllocateStackIn(t)}
	}

	return []ir.Expr{st.AllocateStackOut(t)}
}

func (cc *AAPCS) AssignReturnValue(st target.CallState, t ir.Type) []ir.Expr {
	if t.IsVoid() {
		return nil
	}

	if st.CanMapResultToRegister(t) {
		return fragments(st, target.FragmentResult, t)
	}

	if st.Direction() == target.Callee {
		return []ir.Expr{st.AllocateStackIn(t)}
	}

	return []ir.Expr{st.AllocateStackOut(t)}
}

// fragments splits t into registers. Floats go whole into one VFP register,
// everything else takes one core register per word.
func fragments(st target.CallState, f target.Fragment, t ir.Type) []ir.Expr {
	s := st.(*callState)

	if s.useFP(t) {
		return []ir.Expr{&ir.PhysicalRegister{Reg: st.NextRegister(f, t), Type: t}}
	}

	words := max(t.Words(), 1)
	if words == 1 {
		return []ir.Expr{&ir.PhysicalRegister{Reg: st.NextRegister(f, t), Type: t}}
	}

	r := make([]ir.Expr, words)

	for i := range r {
		r[i] = &ir.PhysicalRegister{Reg: st.NextRegister(f, ir.Uint32), Type: ir.Uint32}
	}

	return r
}

// ShouldSaveRegister reports callee saved registers: r4-r11 and s16-s31.
func (cc *AAPCS) ShouldSaveRegister(reg *machine.RegisterDescriptor) bool {
	e := reg.Encoding

	switch {
	case e >= EncR0+4 && e <= EncR0+11:
		return true
	case e >= EncS0+16 && e < EncS0+32:
		return true
	case e >= EncD0+8 && e < EncD0+16:
		return true
	}

	return false
}

// CollectExpressionsToInvalidate returns the caller saved registers:
// argument registers, r12 and lr.
func (cc *AAPCS) CollectExpressionsToInvalidate(g *ir.ControlFlowGraph, call *ir.Call) []ir.ExprID {
	var res []ir.ExprID

	for _, r := range cc.p.regs {
		e := r.Encoding

		var t ir.Type

		switch {
		case e < EncR0+IntegerArgumentWords, e == EncR12, e == EncLR:
			t = ir.Uint32
		case r.Is(machine.ClassSinglePrecision) && e-EncS0 < FloatArgumentWords:
			t = ir.Float32
		case r.Is(machine.ClassDoublePrecision) && 2*(e-EncD0) < FloatArgumentWords:
			t = ir.Float64
		default:
			continue
		}

		res = append(res, target.RegisterExpr(g, r, t))
	}

	return res
}

func (s *callState) Direction() target.Direction { return s.dir }

func (s *callState) useFP(t ir.Type) bool {
	return t.IsFloat() && s.p.HasVFP()
}

func (s *callState) cursors(f target.Fragment) (integer, fp *int) {
	switch f {
	case target.FragmentArgument:
		return &s.argInt, &s.argFP
	case target.FragmentResult:
		return &s.resInt, &s.resFP
	default:
		panic(fmt.Sprintf("unexpected fragment kind %v", f))
	}
}

func (s *callState) NextRegister(f target.Fragment, t ir.Type) *machine.RegisterDescriptor {
	return s.p.regs[s.NextIndex(f, t)]
}

// NextIndex advances the cursor for f and returns the platform register index.
func (s *callState) NextIndex(f target.Fragment, t ir.Type) int {
	integer, fp := s.cursors(f)

	var enc uint32

	if s.useFP(t) {
		words := t.Words()
		next := *fp

		if words == 2 && next&1 != 0 {
			next++
		}

		*fp = next + words

		if words == 2 {
			enc = EncD0 + uint32(next/2)
		} else {
			enc = EncS0 + uint32(next)
		}
	} else {
		enc = EncR0 + uint32(*integer)
		*integer++
	}

	r := s.p.byEnc[enc]
	if r == nil {
		panic(fmt.Sprintf("no register with encoding %d", enc))
	}

	return r.Index
}

func (s *callState) CanMapToRegister(t ir.Type) bool {
	words := max(t.Words(), 1)

	if s.useFP(t) {
		next := s.argFP
		if words == 2 && next&1 != 0 {
			next++
		}

		return words <= s.fpWords && next+words <= s.fpWords
	}

	return words <= s.intWords && s.argInt+words <= s.intWords
}

func (s *callState) CanMapResultToRegister(t ir.Type) bool {
	return max(t.Words(), 1) <= s.resWords
}
