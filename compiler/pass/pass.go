// Package pass holds the phases that take a program from imported IR to
// emitted code.
package pass

import (
	"context"

	"github.com/slowlang/aot/compiler/pipeline"
)

type (
	phase struct {
		name string
		run  func(ctx context.Context, st *pipeline.State) error
	}
)

// Phase names. Observers and board files refer to phases by these.
const (
	ComputeCallsClosure        = "ComputeCallsClosure"
	ReduceTypeSystem           = "ReduceTypeSystem"
	SimplifyControlFlow        = "SimplifyControlFlow"
	CollectRegisterConstraints = "CollectRegisterConstraints"
	LowerCallingConvention     = "LowerCallingConvention"
	AssignStackSlots           = "AssignStackSlots"
	LayoutBlocks               = "LayoutBlocks"
	EmitCode                   = "EmitCode"
)

// Register adds all phases to c with their ordering constraints.
func Register(c *pipeline.Controller) {
	add := func(name string, run func(context.Context, *pipeline.State) error, o pipeline.Order) {
		c.Add(phase{name: name, run: run}, o)
	}

	add(ComputeCallsClosure, computeCallsClosure, pipeline.Order{Before: []string{ReduceTypeSystem}})
	add(ReduceTypeSystem, reduceTypeSystem, after(ComputeCallsClosure))
	add(SimplifyControlFlow, simplifyControlFlow, after(ReduceTypeSystem))
	add(CollectRegisterConstraints, collectRegisterConstraints, after(SimplifyControlFlow))
	add(LowerCallingConvention, lowerCallingConvention, after(CollectRegisterConstraints))
	add(AssignStackSlots, assignStackSlots, after(LowerCallingConvention))
	add(LayoutBlocks, layoutBlocks, after(AssignStackSlots))
	add(EmitCode, emitCode, after(LayoutBlocks))
}

// Names lists the phases Register adds, in registration order.
func Names() []string {
	return []string{
		ComputeCallsClosure,
		ReduceTypeSystem,
		SimplifyControlFlow,
		CollectRegisterConstraints,
		LowerCallingConvention,
		AssignStackSlots,
		LayoutBlocks,
		EmitCode,
	}
}

func after(names ...string) pipeline.Order {
	return pipeline.Order{After: names}
}

func (p phase) Name() string { return p.name }

func (p phase) Run(ctx context.Context, st *pipeline.State) error { return p.run(ctx, st) }
