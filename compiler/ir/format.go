package ir

import (
	"github.com/nikandfor/hacked/hfmt"
)

func Label(id BlockID) string {
	return string(hfmt.Appendf(nil, "BB%d", id))
}

func (g *ControlFlowGraph) AppendExpr(b []byte, id ExprID) []byte {
	if id == NoExpr {
		return append(b, "<none>"...)
	}

	switch x := g.Expr(id).(type) {
	case *Constant:
		switch {
		case x.IsFloat():
			return hfmt.Appendf(b, "%v(%g)", x.Type, x.Float())
		case x.Type.Signed:
			return hfmt.Appendf(b, "%v(%d)", x.Type, x.Signed())
		default:
			return hfmt.Appendf(b, "%v(%d)", x.Type, x.Unsigned())
		}
	case *Variable:
		if x.Name == "" {
			return hfmt.Appendf(b, "$Var_%d", x.Number)
		}

		return append(b, x.Name...)
	case *Temporary:
		return hfmt.Appendf(b, "$Temp_%d", x.Number)
	case *PseudoRegister:
		return hfmt.Appendf(b, "$PseudoReg_%d", x.Number)
	case *PhysicalRegister:
		return hfmt.Appendf(b, "$%v", x.Reg)
	case *StackLocation:
		return hfmt.Appendf(b, "$Stack_%v_%d", x.Kind, x.Index)
	default:
		panic(x)
	}
}

func (g *ControlFlowGraph) appendExprs(b []byte, ids []ExprID) []byte {
	for i, id := range ids {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = g.AppendExpr(b, id)
	}

	return b
}

func signedSuffix(signed bool) string {
	if signed {
		return ".signed"
	}

	return ".unsigned"
}

// AppendOperator appends a one line human readable form of op.
func (g *ControlFlowGraph) AppendOperator(b []byte, op Operator) []byte {
	base := op.Base()

	if len(base.Results) != 0 {
		b = g.appendExprs(b, base.Results)
		b = append(b, " = "...)
	}

	arg := func(i int) []byte { return g.AppendExpr(nil, base.Args[i]) }

	switch op := op.(type) {
	case *Assign:
		b = g.AppendExpr(b, op.Args[0])
	case *Binary:
		b = hfmt.Appendf(b, "%v%s %s, %s", op.Alu, signedSuffix(op.Signed), arg(0), arg(1))
	case *Unary:
		b = hfmt.Appendf(b, "%v %s", op.Alu, arg(0))
	case *Compare:
		b = hfmt.Appendf(b, "cmp %s %v%s %s", arg(0), op.Cond, signedSuffix(op.Signed), arg(1))
	case *Convert:
		b = hfmt.Appendf(b, "convert %s from %v to %v", arg(0), op.From, op.To)
	case *Load:
		b = hfmt.Appendf(b, "load [%s + %d]", arg(0), op.Offset)
	case *Store:
		b = hfmt.Appendf(b, "store [%s + %d] = %s", arg(0), op.Offset, arg(1))
	case *Call:
		b = hfmt.Appendf(b, "call.%v %s(", op.Kind, op.Method)
		b = g.appendExprs(b, op.Args)
		b = append(b, ')')
	case *New:
		b = hfmt.Appendf(b, "new %s", op.Class)
	case *Unconditional:
		b = hfmt.Appendf(b, "goto %s", Label(op.Target))
	case *BinaryConditional:
		b = hfmt.Appendf(b, "if %s != ZERO then goto %s else goto %s", arg(0), Label(op.Taken), Label(op.NotTaken))
	case *CompareConditional:
		b = hfmt.Appendf(b, "if %s %v%s %s then goto %s else goto %s", arg(0), op.Cond, signedSuffix(op.Signed), arg(1), Label(op.Taken), Label(op.NotTaken))
	case *MultiWay:
		b = hfmt.Appendf(b, "switch %s of [", arg(0))

		for i, t := range op.Cases {
			if i != 0 {
				b = append(b, ", "...)
			}

			b = append(b, Label(t)...)
		}

		b = hfmt.Appendf(b, "] default %s", Label(op.NotTaken))
	case *Return:
		b = append(b, "return"...)

		if len(op.Args) != 0 {
			b = append(b, ' ')
			b = g.appendExprs(b, op.Args)
		}
	case *Leave:
		b = hfmt.Appendf(b, "leave to %s", Label(op.Target))
	case *Rethrow:
		b = append(b, "rethrow"...)
	case *ResumeUnwind:
		b = hfmt.Appendf(b, "resume unwind %s", arg(0))
	case *Dead:
		b = append(b, "dead"...)
	default:
		panic(op)
	}

	for _, a := range base.Annotations {
		switch a := a.(type) {
		case *RegisterConstraint:
			b = hfmt.Appendf(b, " <constraint %s %v>", operandName(a.IsResult, a.Operand), a.Class)
		case *CallFragments:
			b = hfmt.Appendf(b, " <fragments %s ", operandName(a.IsResult, a.Operand))
			b = g.appendExprs(b, a.Fragments)
			b = append(b, '>')
		case *Clobbers:
			b = append(b, " <clobbers "...)
			b = g.appendExprs(b, a.Regs)
			b = append(b, '>')
		}
	}

	return b
}

func operandName(res bool, i int) string {
	if res {
		return string(hfmt.Appendf(nil, "res%d", i))
	}

	return string(hfmt.Appendf(nil, "arg%d", i))
}
