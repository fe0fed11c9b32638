/*
Package compiler ties the compilation together.

	Image (ir.Program) ->
		ComputeCallsClosure, ReduceTypeSystem ->
	Reachable program ->
		SimplifyControlFlow ->
	Simplified graphs ->
		CollectRegisterConstraints, LowerCallingConvention, AssignStackSlots ->
	Lowered graphs ->
		LayoutBlocks, EmitCode ->
	Assembly or LLVM text

Every step is a pipeline phase. Board files may disable phases
and request dumps after them.
*/
package compiler
