package ir

type (
	Alu uint8

	CallKind uint8

	// Assign copies its only argument to its only result.
	Assign struct {
		OpBase
	}

	Binary struct {
		OpBase
		Alu    Alu
		Signed bool
	}

	Unary struct {
		OpBase
		Alu Alu
	}

	// Compare sets its result to 1 if the condition holds, 0 otherwise.
	Compare struct {
		OpBase
		Cond   Condition
		Signed bool
	}

	Convert struct {
		OpBase
		From Type
		To   Type
	}

	// Load reads *(Args[0] + Offset).
	Load struct {
		OpBase
		Offset int
	}

	// Store writes Args[1] to *(Args[0] + Offset).
	Store struct {
		OpBase
		Offset int
	}

	Call struct {
		OpBase
		Method string
		Kind   CallKind
	}

	// New allocates an instance of Class.
	New struct {
		OpBase
		Class string
	}
)

const (
	Add Alu = iota
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	Shl
	Shr

	Neg
	Not
)

const (
	CallStatic CallKind = iota
	CallVirtual
	CallInterface
	CallIndirect
)

var aluNames = []string{"add", "sub", "mul", "div", "rem", "and", "or", "xor", "shl", "shr", "neg", "not"}

func NewAssign(res, arg ExprID) *Assign {
	return &Assign{OpBase: OpBase{Results: []ExprID{res}, Args: []ExprID{arg}, Caps: pure | DoesNotThrow}}
}

func NewBinary(alu Alu, signed bool, res, l, r ExprID) *Binary {
	caps := pure | DoesNotThrow | IsNonCommutative

	switch alu {
	case Add, Mul, And, Or, Xor:
		caps = pure | DoesNotThrow | IsCommutative
	case Div, Rem:
		caps = pure | MayThrow | IsNonCommutative
	}

	return &Binary{
		OpBase: OpBase{Results: []ExprID{res}, Args: []ExprID{l, r}, Caps: caps},
		Alu:    alu,
		Signed: signed,
	}
}

func NewUnary(alu Alu, res, arg ExprID) *Unary {
	return &Unary{
		OpBase: OpBase{Results: []ExprID{res}, Args: []ExprID{arg}, Caps: pure | DoesNotThrow},
		Alu:    alu,
	}
}

func NewCompare(cond Condition, signed bool, res, l, r ExprID) *Compare {
	caps := pure | DoesNotThrow | IsNonCommutative
	if cond == EQ || cond == NE {
		caps = pure | DoesNotThrow | IsCommutative
	}

	return &Compare{
		OpBase: OpBase{Results: []ExprID{res}, Args: []ExprID{l, r}, Caps: caps},
		Cond:   cond,
		Signed: signed,
	}
}

func NewConvert(from, to Type, res, arg ExprID) *Convert {
	return &Convert{
		OpBase: OpBase{Results: []ExprID{res}, Args: []ExprID{arg}, Caps: pure | DoesNotThrow},
		From:   from,
		To:     to,
	}
}

func NewLoad(res, addr ExprID, off int) *Load {
	return &Load{
		OpBase: OpBase{
			Results: []ExprID{res},
			Args:    []ExprID{addr},
			Caps: DoesNotMutateExistingStorage | DoesNotAllocateStorage | MayReadExistingMutableStorage | MayThrow |
				MayReadThroughPointerOperands | DoesNotWriteThroughPointerOperands | DoesNotCapturePointerOperands,
		},
		Offset: off,
	}
}

func NewStore(addr, val ExprID, off int) *Store {
	return &Store{
		OpBase: OpBase{
			Args: []ExprID{addr, val},
			Caps: MayMutateExistingStorage | DoesNotAllocateStorage | DoesNotReadExistingMutableStorage | MayThrow |
				DoesNotReadThroughPointerOperands | MayWriteThroughPointerOperands | MayCapturePointerOperands,
		},
		Offset: off,
	}
}

// NewCall builds a call. res is NoExpr for calls with no result.
func NewCall(kind CallKind, method string, res ExprID, args ...ExprID) *Call {
	o := &Call{
		OpBase: OpBase{Args: args, Caps: sideEffects},
		Method: method,
		Kind:   kind,
	}

	if res != NoExpr {
		o.Results = []ExprID{res}
	}

	return o
}

func NewNew(class string, res ExprID) *New {
	return &New{
		OpBase: OpBase{
			Results: []ExprID{res},
			Caps: DoesNotMutateExistingStorage | MayAllocateStorage | DoesNotReadExistingMutableStorage | MayThrow |
				DoesNotReadThroughPointerOperands | DoesNotWriteThroughPointerOperands | DoesNotCapturePointerOperands,
		},
		Class: class,
	}
}

func (o *Assign) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
}

func (o *Binary) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	TransformEnum(t, &o.Alu)
	t.Bool(&o.Signed)
}

func (o *Unary) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	TransformEnum(t, &o.Alu)
}

func (o *Compare) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	TransformEnum(t, &o.Cond)
	t.Bool(&o.Signed)
}

func (o *Convert) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	o.From.ApplyTransformation(t)
	o.To.ApplyTransformation(t)
}

func (o *Load) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	t.Int(&o.Offset)
}

func (o *Store) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	t.Int(&o.Offset)
}

func (o *Call) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	t.String(&o.Method)
	TransformEnum(t, &o.Kind)
}

func (o *New) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	t.String(&o.Class)
}

func (a Alu) String() string {
	if int(a) < len(aluNames) {
		return aluNames[a]
	}

	return "alu?"
}

func (k CallKind) String() string {
	switch k {
	case CallStatic:
		return "static"
	case CallVirtual:
		return "virtual"
	case CallInterface:
		return "interface"
	case CallIndirect:
		return "indirect"
	default:
		return "call?"
	}
}
