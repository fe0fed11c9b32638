package pass

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/pipeline"
	"github.com/slowlang/aot/compiler/target"
)

func collectRegisterConstraints(ctx context.Context, st *pipeline.State) error {
	return pipeline.ForEachMethod(ctx, st, func(ctx context.Context, m *ir.Method) error {
		g := m.CFG

		g.Operators(func(_ *ir.BasicBlock, op ir.Operator) bool {
			constrain(g, op)
			return true
		})

		return nil
	})
}

func constrain(g *ir.ControlFlowGraph, op ir.Operator) {
	b := op.Base()

	add := func(i int, res bool, id ir.ExprID) {
		if _, ok := g.Expr(id).(*ir.Constant); ok {
			return
		}

		t := g.TypeOf(id)
		if t.IsVoid() {
			return
		}

		_, ok := ir.FindAnnotation(op, func(a *ir.RegisterConstraint) bool { return a.Operand == i && a.IsResult == res })
		if ok {
			return
		}

		b.Annotate(&ir.RegisterConstraint{Operand: i, IsResult: res, Class: target.RegisterClassFor(t)})
	}

	for i, id := range b.Args {
		add(i, false, id)
	}

	for i, id := range b.Results {
		add(i, true, id)
	}
}

func lowerCallingConvention(ctx context.Context, st *pipeline.State) error {
	if st.Platform == nil {
		return errors.New("no platform")
	}

	cc := st.Platform.CallingConvention()

	return pipeline.ForEachMethod(ctx, st, func(ctx context.Context, m *ir.Method) error {
		f, err := lowerMethod(cc, m)
		if err != nil {
			return err
		}

		st.SetFrame(m.Name, f)

		tlog.SpanFromContext(ctx).V("frame").Printw("frame", "method", m.Name, "args", f.Args, "result", f.Result, "out_words", f.OutWords)

		return nil
	})
}

// lowerMethod assigns storage to the method's arguments and return value
// and annotates returns and call sites with the fragments they use.
func lowerMethod(cc target.CallingConvention, m *ir.Method) (*pipeline.Frame, error) {
	g := m.CFG

	cs := cc.NewCallState(target.Callee)

	f := &pipeline.Frame{
		CallState: cs,
		Slots:     map[ir.ExprID]ir.ExprID{},
	}

	for _, a := range g.Args {
		f.Args = append(f.Args, target.Intern(g, cc.AssignArgument(cs, g.TypeOf(a))))
	}

	f.Result = target.Intern(g, cc.AssignReturnValue(cs, m.Return))

	var ops []ir.Operator

	g.Operators(func(_ *ir.BasicBlock, op ir.Operator) bool {
		switch op.(type) {
		case *ir.Return, *ir.Call:
			ops = append(ops, op)
		}

		return true
	})

	for _, op := range ops {
		switch op := op.(type) {
		case *ir.Return:
			switch len(op.Args) {
			case 0:
			case 1:
				op.Annotate(&ir.CallFragments{Operand: 0, Fragments: f.Result})
			default:
				return nil, errors.New("return with %d values", len(op.Args))
			}
		case *ir.Call:
			out := lowerCall(cc, g, op)
			f.OutWords = max(f.OutWords, out)
		}
	}

	return f, nil
}

func lowerCall(cc target.CallingConvention, g *ir.ControlFlowGraph, op *ir.Call) (outWords int) {
	cs := cc.NewCallState(target.Caller)

	for i, a := range op.Args {
		frags := target.Intern(g, cc.AssignArgument(cs, g.TypeOf(a)))
		op.Annotate(&ir.CallFragments{Operand: i, Fragments: frags})
	}

	if r := op.Result(); r != ir.NoExpr {
		frags := target.Intern(g, cc.AssignReturnValue(cs, g.TypeOf(r)))
		op.Annotate(&ir.CallFragments{Operand: 0, IsResult: true, Fragments: frags})
	}

	op.Annotate(&ir.Clobbers{Regs: cc.CollectExpressionsToInvalidate(g, op)})

	return cs.StackUsage().Out
}

// assignStackSlots gives every variable and temporary a local slot.
// Arguments passed on the stack stay where the caller put them.
func assignStackSlots(ctx context.Context, st *pipeline.State) error {
	return pipeline.ForEachMethod(ctx, st, func(ctx context.Context, m *ir.Method) error {
		f := st.Frame(m.Name)
		if f == nil {
			return errors.New("no frame, calling convention was not lowered")
		}

		assignSlots(m.CFG, f)

		tlog.SpanFromContext(ctx).V("frame").Printw("stack slots", "method", m.Name, "slots", len(f.Slots), "usage", f.CallState.StackUsage())

		return nil
	})
}

func assignSlots(g *ir.ControlFlowGraph, f *pipeline.Frame) {
	args := make(map[ir.ExprID]int, len(g.Args))
	for k, a := range g.Args {
		args[a] = k
	}

	local := func(t ir.Type) ir.ExprID {
		return g.AddExpr(f.CallState.AllocateStackLocal(t))
	}

	n := len(g.Exprs)

	for i := 0; i < n; i++ {
		id := ir.ExprID(i)

		switch x := g.Exprs[id].(type) {
		case *ir.Variable:
			if x.Alias != ir.NoExpr {
				f.Slots[id] = x.Alias
				continue
			}

			slot := ir.NoExpr

			if k, ok := args[id]; ok && k < len(f.Args) && len(f.Args[k]) == 1 {
				if s, ok := g.Expr(f.Args[k][0]).(*ir.StackLocation); ok && s.Kind == ir.StackIn {
					slot = f.Args[k][0]
				}
			}

			if slot == ir.NoExpr {
				slot = local(x.Type)
			}

			g.SetAlias(id, slot)
			f.Slots[id] = slot
		case *ir.Temporary:
			f.Slots[id] = local(x.Type)
		}
	}
}
