package ir

import "github.com/slowlang/aot/compiler/machine"

type (
	// Transformer is the traversal context threaded through ApplyTransformation.
	// Scalars are read, written or left alone, references go through
	// the implementation's identity map.
	Transformer interface {
		Push(x any)
		Pop()

		// Copying is true when the walk builds new objects (clone, read)
		// and false when it only observes them (write).
		Copying() bool

		Bool(v *bool)
		Int(v *int)
		Uint64(v *uint64)
		String(v *string)
		Len(n *int)

		Block(v *BlockID)
		Expr(v *ExprID)
		Register(v **machine.RegisterDescriptor)

		Expression(v *Expr)
		Operator(v *Operator)
		Annotation(v *Annotation)
		BasicBlock(v **BasicBlock)
		Graph(v **ControlFlowGraph)
	}

	Enum interface {
		~uint8 | ~uint16 | ~uint32 | ~int
	}

	Kind uint8
)

// Variant tags. Persisted images depend on the values, append only.
const (
	KindInvalid Kind = iota

	KindConstant
	KindVariable
	KindTemporary
	KindPseudoRegister
	KindPhysicalRegister
	KindStackLocation

	KindAssign
	KindBinary
	KindUnary
	KindCompare
	KindConvert
	KindLoad
	KindStore
	KindCall
	KindNew

	KindUnconditional
	KindBinaryConditional
	KindCompareConditional
	KindMultiWay
	KindReturn
	KindLeave
	KindRethrow
	KindResumeUnwind
	KindDead

	KindRegisterConstraint
	KindCallFragments
	KindClobbers
)

func TransformEnum[T Enum](t Transformer, v *T) {
	x := int(*v)
	t.Int(&x)
	*v = T(x)
}

// TransformSlice visits every element of *v. Copying transformers get
// a fresh slice so a clone never shares backing arrays with its origin.
func TransformSlice[T any](t Transformer, v *[]T, each func(Transformer, *T)) {
	n := len(*v)
	t.Len(&n)

	if !t.Copying() {
		for i := range *v {
			each(t, &(*v)[i])
		}

		return
	}

	if n == 0 {
		*v = nil
		return
	}

	s := make([]T, n)
	copy(s, *v)

	for i := range s {
		each(t, &s[i])
	}

	*v = s
}

func ExprKind(x Expr) Kind {
	switch x.(type) {
	case *Constant:
		return KindConstant
	case *Variable:
		return KindVariable
	case *Temporary:
		return KindTemporary
	case *PseudoRegister:
		return KindPseudoRegister
	case *PhysicalRegister:
		return KindPhysicalRegister
	case *StackLocation:
		return KindStackLocation
	default:
		panic(x)
	}
}

// NewExpr returns a zero expression of the kind, nil for unknown kinds.
func NewExpr(k Kind) Expr {
	switch k {
	case KindConstant:
		return &Constant{}
	case KindVariable:
		return &Variable{}
	case KindTemporary:
		return &Temporary{}
	case KindPseudoRegister:
		return &PseudoRegister{}
	case KindPhysicalRegister:
		return &PhysicalRegister{}
	case KindStackLocation:
		return &StackLocation{}
	default:
		return nil
	}
}

// CopyExpr returns a shallow copy of x.
func CopyExpr(x Expr) Expr {
	switch x := x.(type) {
	case *Constant:
		c := *x
		return &c
	case *Variable:
		c := *x
		return &c
	case *Temporary:
		c := *x
		return &c
	case *PseudoRegister:
		c := *x
		return &c
	case *PhysicalRegister:
		c := *x
		return &c
	case *StackLocation:
		c := *x
		return &c
	default:
		panic(x)
	}
}

func OperatorKind(op Operator) Kind {
	switch op.(type) {
	case *Assign:
		return KindAssign
	case *Binary:
		return KindBinary
	case *Unary:
		return KindUnary
	case *Compare:
		return KindCompare
	case *Convert:
		return KindConvert
	case *Load:
		return KindLoad
	case *Store:
		return KindStore
	case *Call:
		return KindCall
	case *New:
		return KindNew
	case *Unconditional:
		return KindUnconditional
	case *BinaryConditional:
		return KindBinaryConditional
	case *CompareConditional:
		return KindCompareConditional
	case *MultiWay:
		return KindMultiWay
	case *Return:
		return KindReturn
	case *Leave:
		return KindLeave
	case *Rethrow:
		return KindRethrow
	case *ResumeUnwind:
		return KindResumeUnwind
	case *Dead:
		return KindDead
	default:
		panic(op)
	}
}

// NewOperator returns a zero operator of the kind, nil for unknown kinds.
func NewOperator(k Kind) Operator {
	switch k {
	case KindAssign:
		return &Assign{}
	case KindBinary:
		return &Binary{}
	case KindUnary:
		return &Unary{}
	case KindCompare:
		return &Compare{}
	case KindConvert:
		return &Convert{}
	case KindLoad:
		return &Load{}
	case KindStore:
		return &Store{}
	case KindCall:
		return &Call{}
	case KindNew:
		return &New{}
	case KindUnconditional:
		return &Unconditional{}
	case KindBinaryConditional:
		return &BinaryConditional{}
	case KindCompareConditional:
		return &CompareConditional{}
	case KindMultiWay:
		return &MultiWay{}
	case KindReturn:
		return &Return{}
	case KindLeave:
		return &Leave{}
	case KindRethrow:
		return &Rethrow{}
	case KindResumeUnwind:
		return &ResumeUnwind{}
	case KindDead:
		return &Dead{}
	default:
		return nil
	}
}

// CopyOperator returns a detached shallow copy of op.
func CopyOperator(op Operator) Operator {
	var r Operator

	switch op := op.(type) {
	case *Assign:
		c := *op
		r = &c
	case *Binary:
		c := *op
		r = &c
	case *Unary:
		c := *op
		r = &c
	case *Compare:
		c := *op
		r = &c
	case *Convert:
		c := *op
		r = &c
	case *Load:
		c := *op
		r = &c
	case *Store:
		c := *op
		r = &c
	case *Call:
		c := *op
		r = &c
	case *New:
		c := *op
		r = &c
	case *Unconditional:
		c := *op
		r = &c
	case *BinaryConditional:
		c := *op
		r = &c
	case *CompareConditional:
		c := *op
		r = &c
	case *MultiWay:
		c := *op
		r = &c
	case *Return:
		c := *op
		r = &c
	case *Leave:
		c := *op
		r = &c
	case *Rethrow:
		c := *op
		r = &c
	case *ResumeUnwind:
		c := *op
		r = &c
	case *Dead:
		c := *op
		r = &c
	default:
		panic(op)
	}

	b := r.Base()
	b.block = nil
	b.version = 0

	return r
}

func AnnotationKind(a Annotation) Kind {
	switch a.(type) {
	case *RegisterConstraint:
		return KindRegisterConstraint
	case *CallFragments:
		return KindCallFragments
	case *Clobbers:
		return KindClobbers
	default:
		panic(a)
	}
}

func NewAnnotation(k Kind) Annotation {
	switch k {
	case KindRegisterConstraint:
		return &RegisterConstraint{}
	case KindCallFragments:
		return &CallFragments{}
	case KindClobbers:
		return &Clobbers{}
	default:
		return nil
	}
}

func CopyAnnotation(a Annotation) Annotation {
	switch a := a.(type) {
	case *RegisterConstraint:
		c := *a
		return &c
	case *CallFragments:
		c := *a
		return &c
	case *Clobbers:
		c := *a
		return &c
	default:
		panic(a)
	}
}
