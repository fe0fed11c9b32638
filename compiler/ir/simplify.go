package ir

import (
	"math"

	"tlog.app/go/tlog"
)

// Simplify tries to replace op with a cheaper equivalent using def/use chains.
// It reports whether op replaced itself in its block.
func Simplify(op Operator, df *DataFlow) (bool, error) {
	switch op := op.(type) {
	case *CompareConditional:
		return op.simplify(df)
	case *BinaryConditional:
		return op.simplify(df)
	case *MultiWay:
		return op.simplify(df)
	case *Binary:
		return op.simplify(df)
	case *Unary:
		return op.simplify(df)
	case *Compare:
		return op.simplify(df)
	case *Convert:
		return op.simplify(df)
	case *Assign, *Load, *Store, *Call, *New:
		return false, nil
	case *Unconditional, *Return, *Leave, *Rethrow, *ResumeUnwind, *Dead:
		return false, nil
	default:
		panic(op)
	}
}

func (o *CompareConditional) simplify(df *DataFlow) (bool, error) {
	l, ok := df.ConstantOrigin(o.Args[0])
	if !ok {
		return false, nil
	}

	r, ok := df.ConstantOrigin(o.Args[1])
	if !ok {
		return false, nil
	}

	res, err := compareConstants(o, o.Cond, o.Signed, l, r)
	if err != nil {
		return false, err
	}

	target := o.NotTaken
	if res {
		target = o.Taken
	}

	replaceControl(o, target)

	return true, nil
}

func (o *BinaryConditional) simplify(df *DataFlow) (bool, error) {
	c, ok := df.ConstantOrigin(o.Args[0])
	if !ok {
		return false, nil
	}

	target := o.Taken
	if c.IsZero() {
		target = o.NotTaken
	}

	replaceControl(o, target)

	return true, nil
}

func (o *MultiWay) simplify(df *DataFlow) (bool, error) {
	c, ok := df.ConstantOrigin(o.Args[0])
	if !ok {
		return false, nil
	}

	if !c.IsInteger() {
		return false, NewTypeConsistencyError(o, "switch index is not an integer")
	}

	target := o.NotTaken

	idx := c.Signed()
	if !c.Type.Signed {
		idx = int64(c.Unsigned())
	}

	switch {
	case idx >= 0 && idx < int64(len(o.Cases)):
		target = o.Cases[idx]
	case idx < 0:
		tlog.V("negative_index").Printw("multiway: negative index routed to default", "index", idx, "default", o.NotTaken)
	}

	replaceControl(o, target)

	return true, nil
}

func replaceControl(o Control, target BlockID) {
	u := NewUnconditional(target)
	u.Debug = o.Base().Debug

	o.Base().Block().Replace(o, u)
}

func replaceWithConstant(o Operator, c *Constant) {
	b := o.Base().Block()
	g := b.Graph()

	a := NewAssign(o.Base().Results[0], g.Const(c))
	a.Debug = o.Base().Debug

	b.Replace(o, a)
}

func compareConstants(op Operator, cond Condition, signed bool, l, r *Constant) (bool, error) {
	if l.IsInteger() != r.IsInteger() {
		return false, NewTypeConsistencyError(op, "cannot mix integer and floating-point values in the same operation")
	}

	if l.IsFloat() {
		if l.Type.Size != r.Type.Size {
			return false, NewTypeConsistencyError(op, "cannot mix single and double values")
		}

		return compare(cond, l.Float(), r.Float()), nil
	}

	if signed {
		return compare(cond, l.Signed(), r.Signed()), nil
	}

	return compare(cond, l.Unsigned(), r.Unsigned()), nil
}

func compare[T int64 | uint64 | float64](cond Condition, l, r T) bool {
	switch cond {
	case EQ:
		return l == r
	case NE:
		return l != r
	case LT:
		return l < r
	case LE:
		return l <= r
	case GT:
		return l > r
	case GE:
		return l >= r
	}

	panic(cond)
}

func (o *Compare) simplify(df *DataFlow) (bool, error) {
	l, ok := df.ConstantOrigin(o.Args[0])
	if !ok {
		return false, nil
	}

	r, ok := df.ConstantOrigin(o.Args[1])
	if !ok {
		return false, nil
	}

	res, err := compareConstants(o, o.Cond, o.Signed, l, r)
	if err != nil {
		return false, err
	}

	v := int64(0)
	if res {
		v = 1
	}

	rt := df.Graph().TypeOf(o.Results[0])

	replaceWithConstant(o, NewInt(rt, v))

	return true, nil
}

func (o *Binary) simplify(df *DataFlow) (bool, error) {
	l, ok := df.ConstantOrigin(o.Args[0])
	if !ok {
		return false, nil
	}

	r, ok := df.ConstantOrigin(o.Args[1])
	if !ok {
		return false, nil
	}

	if l.IsInteger() != r.IsInteger() {
		return false, NewTypeConsistencyError(o, "cannot mix integer and floating-point values in the same operation")
	}

	rt := df.Graph().TypeOf(o.Results[0])

	if l.IsFloat() {
		if l.Type.Size != r.Type.Size {
			return false, NewTypeConsistencyError(o, "cannot mix single and double values")
		}

		x, y := l.Float(), r.Float()
		var v float64

		switch o.Alu {
		case Add:
			v = x + y
		case Sub:
			v = x - y
		case Mul:
			v = x * y
		case Div:
			v = x / y
		default:
			return false, NewTypeConsistencyError(o, "integer operation on floating-point values")
		}

		replaceWithConstant(o, floatConst(rt, v))

		return true, nil
	}

	var v uint64

	if o.Signed {
		x, y := l.Signed(), r.Signed()

		switch o.Alu {
		case Div, Rem:
			if y == 0 || x == math.MinInt64 && y == -1 {
				return false, nil
			}

			if o.Alu == Div {
				v = uint64(x / y)
			} else {
				v = uint64(x % y)
			}
		case Shr:
			v = uint64(x >> (uint64(y) & 63))
		default:
			v = intOp(o.Alu, uint64(x), uint64(y))
		}
	} else {
		x, y := l.Unsigned(), r.Unsigned()

		switch o.Alu {
		case Div, Rem:
			if y == 0 {
				return false, nil
			}

			if o.Alu == Div {
				v = x / y
			} else {
				v = x % y
			}
		default:
			v = intOp(o.Alu, x, y)
		}
	}

	replaceWithConstant(o, NewUint(rt, v))

	return true, nil
}

func intOp(alu Alu, x, y uint64) uint64 {
	switch alu {
	case Add:
		return x + y
	case Sub:
		return x - y
	case Mul:
		return x * y
	case And:
		return x & y
	case Or:
		return x | y
	case Xor:
		return x ^ y
	case Shl:
		return x << (y & 63)
	case Shr:
		return x >> (y & 63)
	}

	panic(alu)
}

func (o *Unary) simplify(df *DataFlow) (bool, error) {
	c, ok := df.ConstantOrigin(o.Args[0])
	if !ok {
		return false, nil
	}

	rt := df.Graph().TypeOf(o.Results[0])

	switch {
	case c.IsFloat() && o.Alu == Neg:
		replaceWithConstant(o, floatConst(rt, -c.Float()))
	case c.IsFloat():
		return false, NewTypeConsistencyError(o, "bitwise not on floating-point value")
	case o.Alu == Neg:
		replaceWithConstant(o, NewUint(rt, -c.Unsigned()))
	default:
		replaceWithConstant(o, NewUint(rt, ^c.Unsigned()))
	}

	return true, nil
}

func (o *Convert) simplify(df *DataFlow) (bool, error) {
	c, ok := df.ConstantOrigin(o.Args[0])
	if !ok {
		return false, nil
	}

	if c.IsFloat() != o.From.IsFloat() {
		return false, NewTypeConsistencyError(o, "operand does not match conversion source type")
	}

	var r *Constant

	switch {
	case c.IsFloat() && o.To.IsFloat():
		r = floatConst(o.To, c.Float())
	case c.IsFloat():
		f := c.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false, nil
		}

		if o.To.Signed {
			r = NewInt(o.To, int64(f))
		} else {
			r = NewUint(o.To, uint64(f))
		}
	case o.To.IsFloat():
		if o.From.Signed {
			r = floatConst(o.To, float64(c.Signed()))
		} else {
			r = floatConst(o.To, float64(c.Unsigned()))
		}
	case o.From.Signed:
		r = NewInt(o.To, c.Signed())
	default:
		r = NewUint(o.To, c.Unsigned())
	}

	replaceWithConstant(o, r)

	return true, nil
}

func floatConst(t Type, v float64) *Constant {
	if t.Size == 4 {
		c := NewFloat32(float32(v))
		c.Type = t

		return c
	}

	c := NewFloat64(v)
	c.Type = t

	return c
}
