package target

import (
	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
)

type (
	Direction uint8

	// Fragment tells which register cursor a request advances.
	Fragment uint8

	CallingConvention interface {
		NewCallState(d Direction) CallState

		// AssignArgument returns the storage for one this-plus-arguments
		// value, one expression per register or stack word.
		AssignArgument(st CallState, t ir.Type) []ir.Expr
		AssignReturnValue(st CallState, t ir.Type) []ir.Expr

		ShouldSaveRegister(reg *machine.RegisterDescriptor) bool

		// CollectExpressionsToInvalidate lists the registers a call clobbers.
		CollectExpressionsToInvalidate(g *ir.ControlFlowGraph, call *ir.Call) []ir.ExprID
	}

	// CallState tracks what one call or method entry used so far.
	// Cursors only move forward.
	CallState interface {
		Direction() Direction

		NextRegister(f Fragment, t ir.Type) *machine.RegisterDescriptor
		NextIndex(f Fragment, t ir.Type) int

		CanMapToRegister(t ir.Type) bool
		CanMapResultToRegister(t ir.Type) bool

		AllocateStackIn(t ir.Type) ir.Expr
		AllocateStackLocal(t ir.Type) ir.Expr
		AllocateStackOut(t ir.Type) ir.Expr

		StackUsage() StackCursors
	}

	// StackCursors is the stack part of a CallState.
	StackCursors struct {
		In, Local, Out int
	}
)

const (
	Caller Direction = iota
	Callee
)

const (
	FragmentArgument Fragment = iota
	FragmentResult
)

func (s *StackCursors) AllocateStackIn(t ir.Type) ir.Expr {
	return alloc(&s.In, ir.StackIn, t)
}

func (s *StackCursors) AllocateStackLocal(t ir.Type) ir.Expr {
	return alloc(&s.Local, ir.StackLocal, t)
}

func (s *StackCursors) AllocateStackOut(t ir.Type) ir.Expr {
	return alloc(&s.Out, ir.StackOut, t)
}

// StackUsage returns the number of words used in each area.
func (s *StackCursors) StackUsage() StackCursors { return *s }

func alloc(c *int, k ir.StackKind, t ir.Type) ir.Expr {
	x := &ir.StackLocation{Kind: k, Index: *c, Type: t}
	*c += max(t.Words(), 1)

	return x
}

func (d Direction) String() string {
	if d == Callee {
		return "callee"
	}

	return "caller"
}
