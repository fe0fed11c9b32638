package ir

import (
	"strings"
)

type (
	Capabilities uint32

	Debug struct {
		File string
		Line int
	}

	// Operator is one IR instruction.
	// The set of variants is closed: Assign, Binary, Unary, Compare, Convert,
	// Load, Store, Call, New and the control operators.
	Operator interface {
		Base() *OpBase
		ApplyTransformation(t Transformer)
	}

	// Control operators terminate a basic block.
	Control interface {
		Operator

		Targets() []BlockID
		SubstituteTarget(old, new BlockID) bool
		UpdateSuccessorInformation()
		ShouldIncludeInScheduling(next *BasicBlock) bool
	}

	OpBase struct {
		Results []ExprID
		Args    []ExprID

		Caps  Capabilities
		Debug Debug

		Annotations []Annotation

		version uint64
		block   *BasicBlock
	}
)

const (
	IsCommutative Capabilities = 1 << iota
	IsNonCommutative
	MayMutateExistingStorage
	DoesNotMutateExistingStorage
	MayAllocateStorage
	DoesNotAllocateStorage
	MayReadExistingMutableStorage
	DoesNotReadExistingMutableStorage
	MayThrow
	DoesNotThrow
	MayReadThroughPointerOperands
	DoesNotReadThroughPointerOperands
	MayWriteThroughPointerOperands
	DoesNotWriteThroughPointerOperands
	MayCapturePointerOperands
	DoesNotCapturePointerOperands
	IsMetaOperator
)

const (
	pure = DoesNotMutateExistingStorage | DoesNotAllocateStorage | DoesNotReadExistingMutableStorage |
		DoesNotReadThroughPointerOperands | DoesNotWriteThroughPointerOperands | DoesNotCapturePointerOperands

	sideEffects = MayMutateExistingStorage | MayAllocateStorage | MayReadExistingMutableStorage |
		MayThrow | MayReadThroughPointerOperands | MayWriteThroughPointerOperands | MayCapturePointerOperands
)

var capNames = []string{
	"commutative", "non_commutative",
	"may_mutate", "no_mutate",
	"may_alloc", "no_alloc",
	"may_read", "no_read",
	"may_throw", "no_throw",
	"may_read_ptr", "no_read_ptr",
	"may_write_ptr", "no_write_ptr",
	"may_capture_ptr", "no_capture_ptr",
	"meta",
}

func (o *OpBase) Base() *OpBase { return o }

func (o *OpBase) Version() uint64 { return o.version }

// Block is the block the operator was appended to, nil if detached.
func (o *OpBase) Block() *BasicBlock { return o.block }

func (o *OpBase) Has(c Capabilities) bool { return o.Caps&c == c }

func (o *OpBase) Result() ExprID {
	if len(o.Results) == 0 {
		return NoExpr
	}

	return o.Results[0]
}

func (o *OpBase) bump() {
	o.version++

	if o.block != nil && o.block.cfg != nil {
		o.block.cfg.bump()
	}
}

// SubstituteUsage replaces every use of old with new.
func (o *OpBase) SubstituteUsage(old, new ExprID) (changed bool) {
	for i, a := range o.Args {
		if a != old {
			continue
		}

		if !changed {
			o.Args = append([]ExprID(nil), o.Args...)
			changed = true
		}

		o.Args[i] = new
	}

	if changed {
		o.bump()
	}

	return changed
}

// SubstituteDefinition replaces every result equal to old with new.
func (o *OpBase) SubstituteDefinition(old, new ExprID) (changed bool) {
	for i, r := range o.Results {
		if r != old {
			continue
		}

		if !changed {
			o.Results = append([]ExprID(nil), o.Results...)
			changed = true
		}

		o.Results[i] = new
	}

	if changed {
		o.bump()
	}

	return changed
}

func (o *OpBase) Annotate(a Annotation) {
	o.Annotations = append(o.Annotations, a)
	o.bump()
}

func (o *OpBase) ApplyTransformation(t Transformer) {
	TransformSlice(t, &o.Results, Transformer.Expr)
	TransformSlice(t, &o.Args, Transformer.Expr)
	TransformEnum(t, &o.Caps)
	t.String(&o.Debug.File)
	t.Int(&o.Debug.Line)
	TransformSlice(t, &o.Annotations, Transformer.Annotation)
}

func IsControl(op Operator) bool {
	_, ok := op.(Control)
	return ok
}

func (c Capabilities) String() string {
	var b strings.Builder

	for i, n := range capNames {
		if c&(1<<i) == 0 {
			continue
		}

		if b.Len() != 0 {
			b.WriteByte('|')
		}

		b.WriteString(n)
	}

	return b.String()
}
