package target

import (
	"github.com/slowlang/aot/compiler/closure"
	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
)

type (
	// Platform describes the machine code is generated for.
	Platform interface {
		Name() string

		Registers() []*machine.RegisterDescriptor
		ScratchRegister() *machine.RegisterDescriptor
		RegisterForEncoding(enc uint32) *machine.RegisterDescriptor
		RegisterByMnemonic(name string) *machine.RegisterDescriptor

		InstructionSet() InstructionSet

		MemoryBlocks() *machine.MemoryMap
		MemoryRequirements(usage machine.MemoryUsage) machine.PlacementRequirements
		MemoryAlignment() int

		CostOfLoad() int
		CostOfStore() int

		CanUseMultipleConditionCodes() bool
		HasVFP() bool
		BigEndian() bool

		CanFitInRegister(t ir.Type) bool

		CallingConvention() CallingConvention

		closure.Expander
	}

	InstructionSet interface {
		Name() string
		Version() int
		HasVFP() bool
	}

	Config struct {
		VFP       bool
		BigEndian bool

		// Memory overrides the platform default map when not empty.
		Memory []machine.MemoryRange

		// RuntimeMethods are always part of the calls closure.
		RuntimeMethods []string
	}
)

// RegisterClassFor picks the register class a value of type t is computed in.
func RegisterClassFor(t ir.Type) machine.RegisterClass {
	switch {
	case t.IsFloat() && t.Words() == 1:
		return machine.ClassSinglePrecision
	case t.IsFloat() && t.Words() == 2:
		return machine.ClassDoublePrecision
	case t.IsPointer():
		return machine.ClassAddress
	default:
		return machine.ClassInteger
	}
}

// RegisterExpr returns the expression for reg in g, adding it if needed.
func RegisterExpr(g *ir.ControlFlowGraph, reg *machine.RegisterDescriptor, t ir.Type) ir.ExprID {
	for i, x := range g.Exprs {
		if r, ok := x.(*ir.PhysicalRegister); ok && r.Reg == reg && r.Type == t {
			return ir.ExprID(i)
		}
	}

	return g.AddExpr(&ir.PhysicalRegister{Reg: reg, Type: t})
}

// Intern adds fragments built by a calling convention to g.
func Intern(g *ir.ControlFlowGraph, frags []ir.Expr) []ir.ExprID {
	ids := make([]ir.ExprID, len(frags))

	for i, x := range frags {
		if r, ok := x.(*ir.PhysicalRegister); ok {
			ids[i] = RegisterExpr(g, r.Reg, r.Type)
			continue
		}

		ids[i] = g.AddExpr(x)
	}

	return ids
}
