package ir

import (
	"math"

	"github.com/slowlang/aot/compiler/machine"
	"tlog.app/go/tlog/tlwire"
)

type (
	ExprID int

	// Expr is a value reference. Expressions never change after they are added to a graph.
	Expr interface {
		ExprType() Type
		ApplyTransformation(t Transformer)

		expr()
	}

	Constant struct {
		Type Type
		Bits uint64
	}

	Variable struct {
		Name   string
		Type   Type
		Number int

		// Alias is the storage the variable lives in once lowered, or NoExpr.
		Alias ExprID
	}

	Temporary struct {
		Number int
		Type   Type
	}

	PseudoRegister struct {
		Number int
		Type   Type
		Class  machine.RegisterClass
	}

	PhysicalRegister struct {
		Reg  *machine.RegisterDescriptor
		Type Type
	}

	StackKind uint8

	StackLocation struct {
		Kind  StackKind
		Index int
		Type  Type
	}
)

const NoExpr ExprID = -1

const (
	StackIn StackKind = iota
	StackLocal
	StackOut
)

func NewInt(t Type, v int64) *Constant {
	return &Constant{Type: t, Bits: mask(t, uint64(v))}
}

func NewUint(t Type, v uint64) *Constant {
	return &Constant{Type: t, Bits: mask(t, v)}
}

func NewFloat32(v float32) *Constant {
	return &Constant{Type: Float32, Bits: uint64(math.Float32bits(v))}
}

func NewFloat64(v float64) *Constant {
	return &Constant{Type: Float64, Bits: math.Float64bits(v)}
}

func mask(t Type, v uint64) uint64 {
	if t.Size <= 0 || t.Size >= 8 {
		return v
	}

	return v & (1<<(8*t.Size) - 1)
}

func (c *Constant) IsInteger() bool { return c.Type.IsInteger() || c.Type.IsPointer() }
func (c *Constant) IsFloat() bool   { return c.Type.IsFloat() }

func (c *Constant) Signed() int64 {
	if c.Type.Size <= 0 || c.Type.Size >= 8 {
		return int64(c.Bits)
	}

	sh := 64 - 8*c.Type.Size

	return int64(c.Bits<<sh) >> sh
}

func (c *Constant) Unsigned() uint64 { return mask(c.Type, c.Bits) }

func (c *Constant) Float() float64 {
	if c.Type.Size == 4 {
		return float64(math.Float32frombits(uint32(c.Bits)))
	}

	return math.Float64frombits(c.Bits)
}

func (c *Constant) IsZero() bool {
	if c.IsFloat() {
		return c.Float() == 0
	}

	return c.Unsigned() == 0
}

func (c *Constant) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)
	b = e.AppendString(b, "type")
	b = e.AppendString(b, c.Type.Name)

	switch {
	case c.IsFloat():
		b = e.AppendString(b, "val")
		b = e.AppendFormat(b, "%g", c.Float())
	case c.Type.Signed:
		b = e.AppendKeyInt64(b, "val", c.Signed())
	default:
		b = e.AppendString(b, "val")
		b = e.AppendUint64(b, c.Unsigned())
	}

	return b
}

func (c *Constant) ExprType() Type         { return c.Type }
func (x *Variable) ExprType() Type         { return x.Type }
func (x *Temporary) ExprType() Type        { return x.Type }
func (x *PseudoRegister) ExprType() Type   { return x.Type }
func (x *PhysicalRegister) ExprType() Type { return x.Type }
func (x *StackLocation) ExprType() Type    { return x.Type }

func (*Constant) expr()         {}
func (*Variable) expr()         {}
func (*Temporary) expr()        {}
func (*PseudoRegister) expr()   {}
func (*PhysicalRegister) expr() {}
func (*StackLocation) expr()    {}

func (c *Constant) ApplyTransformation(t Transformer) {
	t.Push(c)
	defer t.Pop()

	c.Type.ApplyTransformation(t)
	t.Uint64(&c.Bits)
}

func (x *Variable) ApplyTransformation(t Transformer) {
	t.Push(x)
	defer t.Pop()

	t.String(&x.Name)
	x.Type.ApplyTransformation(t)
	t.Int(&x.Number)
	t.Expr(&x.Alias)
}

func (x *Temporary) ApplyTransformation(t Transformer) {
	t.Push(x)
	defer t.Pop()

	t.Int(&x.Number)
	x.Type.ApplyTransformation(t)
}

func (x *PseudoRegister) ApplyTransformation(t Transformer) {
	t.Push(x)
	defer t.Pop()

	t.Int(&x.Number)
	x.Type.ApplyTransformation(t)
	TransformEnum(t, &x.Class)
}

func (x *PhysicalRegister) ApplyTransformation(t Transformer) {
	t.Push(x)
	defer t.Pop()

	t.Register(&x.Reg)
	x.Type.ApplyTransformation(t)
}

func (x *StackLocation) ApplyTransformation(t Transformer) {
	t.Push(x)
	defer t.Pop()

	TransformEnum(t, &x.Kind)
	t.Int(&x.Index)
	x.Type.ApplyTransformation(t)
}

func (k StackKind) String() string {
	switch k {
	case StackIn:
		return "in"
	case StackLocal:
		return "local"
	case StackOut:
		return "out"
	default:
		return "stack?"
	}
}
