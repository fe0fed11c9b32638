package ir

import "github.com/slowlang/aot/compiler/machine"

type (
	Annotation interface {
		ApplyTransformation(t Transformer)

		annotation()
	}

	// RegisterConstraint records the register class an operand needs.
	RegisterConstraint struct {
		Operand  int
		IsResult bool
		Class    machine.RegisterClass
	}

	// CallFragments records where the calling convention placed an operand.
	CallFragments struct {
		Operand   int
		IsResult  bool
		Fragments []ExprID
	}

	// Clobbers lists the registers a call overwrites.
	Clobbers struct {
		Regs []ExprID
	}
)

func (*RegisterConstraint) annotation() {}
func (*CallFragments) annotation()      {}
func (*Clobbers) annotation()           {}

func (a *RegisterConstraint) ApplyTransformation(t Transformer) {
	t.Push(a)
	defer t.Pop()

	t.Int(&a.Operand)
	t.Bool(&a.IsResult)
	TransformEnum(t, &a.Class)
}

func (a *CallFragments) ApplyTransformation(t Transformer) {
	t.Push(a)
	defer t.Pop()

	t.Int(&a.Operand)
	t.Bool(&a.IsResult)
	TransformSlice(t, &a.Fragments, Transformer.Expr)
}

func (a *Clobbers) ApplyTransformation(t Transformer) {
	t.Push(a)
	defer t.Pop()

	TransformSlice(t, &a.Regs, Transformer.Expr)
}

// FindAnnotation returns the first annotation of type T on op.
func FindAnnotation[T Annotation](op Operator, match func(T) bool) (r T, ok bool) {
	for _, a := range op.Base().Annotations {
		x, ok := a.(T)
		if ok && (match == nil || match(x)) {
			return x, true
		}
	}

	return r, false
}
