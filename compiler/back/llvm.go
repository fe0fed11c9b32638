package back

import (
	"context"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	llir "github.com/llir/llvm/ir"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/pipeline"
)

type (
	// LLVM builds a textual LLVM module.
	LLVM struct{}

	llvmModule struct {
		st *pipeline.State
		m  *llir.Module

		funcs map[string]*llir.Func
	}

	llvmFunc struct {
		ctx context.Context
		mod *llvmModule
		m   *ir.Method
		g   *ir.ControlFlowGraph
		fn  *llir.Func

		blocks []*llir.Block
		vars   map[ir.ExprID]*llir.InstAlloca

		b *llir.Block
	}
)

const (
	TripleSoftFloat = "thumbv7em-none-eabi"
	TripleHardFloat = "thumbv7em-none-eabihf"
)

func (LLVM) Name() string { return NameLLVM }

func (LLVM) Emit(ctx context.Context, st *pipeline.State) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "emit llvm")
	defer tr.Finish("err", &err)

	mod := &llvmModule{
		st:    st,
		m:     llir.NewModule(),
		funcs: map[string]*llir.Func{},
	}

	mod.m.TargetTriple = TripleSoftFloat
	if st.Platform != nil && st.Platform.HasVFP() {
		mod.m.TargetTriple = TripleHardFloat
	}

	ms := methods(st)

	for _, m := range ms {
		mod.declare(m.Name, m.Return, m.Params)
	}

	for _, m := range ms {
		err = mod.emitMethod(ctx, m)
		if err != nil {
			return nil, errors.Wrap(err, "method %v", m.Name)
		}
	}

	return []byte(mod.m.String()), nil
}

func (mod *llvmModule) declare(name string, ret ir.Type, params []ir.Type) *llir.Func {
	if f, ok := mod.funcs[name]; ok {
		return f
	}

	ps := make([]*llir.Param, len(params))

	for i, p := range params {
		ps[i] = llir.NewParam("", lltype(p))
	}

	f := mod.m.NewFunc(Symbol(name), lltype(ret), ps...)
	mod.funcs[name] = f

	return f
}

// callee returns the function for a called method, declaring it from the
// call site if the program does not know it.
func (mod *llvmModule) callee(g *ir.ControlFlowGraph, op *ir.Call) *llir.Func {
	if m := mod.st.Program.Method(op.Method); m != nil {
		return mod.declare(m.Name, m.Return, m.Params)
	}

	ret := ir.Void
	if r := op.Result(); r != ir.NoExpr {
		ret = g.TypeOf(r)
	}

	params := make([]ir.Type, len(op.Args))
	for i, a := range op.Args {
		params[i] = g.TypeOf(a)
	}

	return mod.declare(op.Method, ret, params)
}

func (mod *llvmModule) emitMethod(ctx context.Context, m *ir.Method) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "emit method", "name", m.Name)
	defer tr.Finish("err", &err)

	g := m.CFG

	e := &llvmFunc{
		ctx:    ctx,
		mod:    mod,
		m:      m,
		g:      g,
		fn:     mod.funcs[m.Name],
		blocks: make([]*llir.Block, len(g.Blocks)),
		vars:   map[ir.ExprID]*llir.InstAlloca{},
	}

	if len(e.fn.Params) != len(g.Args) {
		return errors.New("method takes %d params, graph has %d arguments", len(e.fn.Params), len(g.Args))
	}

	entry := e.fn.NewBlock("entry")

	alloca := func(id ir.ExprID) {
		if _, ok := e.vars[id]; ok {
			return
		}

		if _, ok := g.Expr(id).(*ir.Constant); ok {
			return
		}

		e.vars[id] = entry.NewAlloca(lltype(g.TypeOf(id)))
	}

	for _, id := range g.Args {
		alloca(id)
	}

	g.Operators(func(_ *ir.BasicBlock, op ir.Operator) bool {
		for _, id := range op.Base().Results {
			alloca(id)
		}

		for _, id := range op.Base().Args {
			alloca(id)
		}

		return true
	})

	for i, a := range g.Args {
		entry.NewStore(e.fn.Params[i], e.vars[a])
	}

	order := blockOrder(mod.st, m)

	for _, id := range order {
		e.blocks[id] = e.fn.NewBlock(ir.Label(id))
	}

	entry.NewBr(e.blocks[g.Entry])

	for _, id := range order {
		e.b = e.blocks[id]

		for _, op := range g.Block(id).Ops {
			err = e.op(op)
			if err != nil {
				return errors.Wrap(err, "block %v", ir.Label(id))
			}
		}

		if e.b.Term == nil {
			e.b.NewUnreachable()
		}
	}

	return nil
}

func (e *llvmFunc) op(op ir.Operator) error {
	switch op := op.(type) {
	case *ir.Assign:
		return e.store(op.Result(), e.value(op.Args[0]))
	case *ir.Binary:
		return e.binary(op)
	case *ir.Unary:
		return e.unary(op)
	case *ir.Compare:
		c := e.cmp(op.Cond, op.Signed, op.Args[0], op.Args[1])
		return e.store(op.Result(), e.b.NewZExt(c, lltype(e.g.TypeOf(op.Result()))))
	case *ir.Convert:
		return e.convert(op)
	case *ir.Load:
		t := lltype(e.g.TypeOf(op.Result()))
		return e.store(op.Result(), e.b.NewLoad(t, e.address(op.Args[0], op.Offset, t)))
	case *ir.Store:
		v := e.value(op.Args[1])
		e.b.NewStore(v, e.address(op.Args[0], op.Offset, v.Type()))
	case *ir.Call:
		return e.call(op)
	case *ir.Unconditional:
		e.b.NewBr(e.blocks[op.Target])
	case *ir.Leave:
		e.b.NewBr(e.blocks[op.Target])
	case *ir.BinaryConditional:
		x := e.value(op.Args[0])

		var c value.Value
		if e.g.TypeOf(op.Args[0]).IsFloat() {
			c = e.b.NewFCmp(enum.FPredUNE, x, zero(x.Type()))
		} else {
			c = e.b.NewICmp(enum.IPredNE, x, zero(x.Type()))
		}

		e.b.NewCondBr(c, e.blocks[op.Taken], e.blocks[op.NotTaken])
	case *ir.CompareConditional:
		c := e.cmp(op.Cond, op.Signed, op.Args[0], op.Args[1])
		e.b.NewCondBr(c, e.blocks[op.Taken], e.blocks[op.NotTaken])
	case *ir.MultiWay:
		return e.multiWay(op)
	case *ir.Return:
		return e.ret(op)
	case *ir.Dead:
		e.b.NewUnreachable()
	default:
		err := e.unimplemented(op)
		if err != nil {
			return err
		}

		if ir.IsControl(op) {
			e.b.NewUnreachable()
		}
	}

	return nil
}

func (e *llvmFunc) binary(op *ir.Binary) error {
	l, r := e.value(op.Args[0]), e.value(op.Args[1])

	var v value.Value

	if e.g.TypeOf(op.Result()).IsFloat() {
		switch op.Alu {
		case ir.Add:
			v = e.b.NewFAdd(l, r)
		case ir.Sub:
			v = e.b.NewFSub(l, r)
		case ir.Mul:
			v = e.b.NewFMul(l, r)
		case ir.Div:
			v = e.b.NewFDiv(l, r)
		case ir.Rem:
			v = e.b.NewFRem(l, r)
		default:
			return e.unimplemented(op)
		}

		return e.store(op.Result(), v)
	}

	switch op.Alu {
	case ir.Add:
		v = e.b.NewAdd(l, r)
	case ir.Sub:
		v = e.b.NewSub(l, r)
	case ir.Mul:
		v = e.b.NewMul(l, r)
	case ir.Div:
		if op.Signed {
			v = e.b.NewSDiv(l, r)
		} else {
			v = e.b.NewUDiv(l, r)
		}
	case ir.Rem:
		if op.Signed {
			v = e.b.NewSRem(l, r)
		} else {
			v = e.b.NewURem(l, r)
		}
	case ir.And:
		v = e.b.NewAnd(l, r)
	case ir.Or:
		v = e.b.NewOr(l, r)
	case ir.Xor:
		v = e.b.NewXor(l, r)
	case ir.Shl:
		v = e.b.NewShl(l, r)
	case ir.Shr:
		if op.Signed {
			v = e.b.NewAShr(l, r)
		} else {
			v = e.b.NewLShr(l, r)
		}
	default:
		return e.unimplemented(op)
	}

	return e.store(op.Result(), v)
}

func (e *llvmFunc) unary(op *ir.Unary) error {
	x := e.value(op.Args[0])

	var v value.Value

	switch {
	case op.Alu == ir.Neg && e.g.TypeOf(op.Result()).IsFloat():
		v = e.b.NewFNeg(x)
	case op.Alu == ir.Neg:
		v = e.b.NewSub(zero(x.Type()), x)
	case op.Alu == ir.Not && !e.g.TypeOf(op.Result()).IsFloat():
		it, ok := x.Type().(*types.IntType)
		if !ok {
			return e.unimplemented(op)
		}

		v = e.b.NewXor(x, constant.NewInt(it, -1))
	default:
		return e.unimplemented(op)
	}

	return e.store(op.Result(), v)
}

func (e *llvmFunc) cmp(cond ir.Condition, signed bool, l, r ir.ExprID) value.Value {
	x, y := e.value(l), e.value(r)

	if e.g.TypeOf(l).IsFloat() {
		return e.b.NewFCmp(fpred(cond), x, y)
	}

	return e.b.NewICmp(ipred(cond, signed), x, y)
}

func (e *llvmFunc) convert(op *ir.Convert) error {
	x := e.value(op.Args[0])
	from, to := op.From, op.To
	lt := lltype(to)

	var v value.Value

	integer := func(t ir.Type) bool { return t.IsInteger() }

	switch {
	case integer(from) && integer(to):
		switch {
		case to.Size > from.Size && from.Signed:
			v = e.b.NewSExt(x, lt)
		case to.Size > from.Size:
			v = e.b.NewZExt(x, lt)
		case to.Size < from.Size:
			v = e.b.NewTrunc(x, lt)
		default:
			v = x
		}
	case integer(from) && to.IsFloat():
		if from.Signed {
			v = e.b.NewSIToFP(x, lt)
		} else {
			v = e.b.NewUIToFP(x, lt)
		}
	case from.IsFloat() && integer(to):
		if to.Signed {
			v = e.b.NewFPToSI(x, lt)
		} else {
			v = e.b.NewFPToUI(x, lt)
		}
	case from.IsFloat() && to.IsFloat():
		switch {
		case to.Size > from.Size:
			v = e.b.NewFPExt(x, lt)
		case to.Size < from.Size:
			v = e.b.NewFPTrunc(x, lt)
		default:
			v = x
		}
	case from.IsPointer() && integer(to):
		v = e.b.NewPtrToInt(x, lt)
	case integer(from) && to.IsPointer():
		v = e.b.NewIntToPtr(x, lt)
	case from.IsPointer() && to.IsPointer():
		v = x
	default:
		return e.unimplemented(op)
	}

	return e.store(op.Result(), v)
}

func (e *llvmFunc) call(op *ir.Call) error {
	if op.Kind != ir.CallStatic {
		return e.unimplemented(op)
	}

	f := e.mod.callee(e.g, op)

	if len(f.Params) != len(op.Args) {
		return errors.New("call %v: %d arguments, want %d", op.Method, len(op.Args), len(f.Params))
	}

	args := make([]value.Value, len(op.Args))
	for i, a := range op.Args {
		args[i] = e.value(a)
	}

	c := e.b.NewCall(f, args...)

	if r := op.Result(); r != ir.NoExpr {
		return e.store(r, c)
	}

	return nil
}

// multiWay lowers to a switch with case i going to Cases[i].
func (e *llvmFunc) multiWay(op *ir.MultiWay) error {
	x := e.value(op.Args[0])

	it, ok := x.Type().(*types.IntType)
	if !ok {
		return errors.New("multiway index of type %v", x.Type())
	}

	cases := make([]*llir.Case, len(op.Cases))
	for i, t := range op.Cases {
		cases[i] = llir.NewCase(constant.NewInt(it, int64(i)), e.blocks[t])
	}

	e.b.NewSwitch(x, e.blocks[op.NotTaken], cases...)

	return nil
}

func (e *llvmFunc) ret(op *ir.Return) error {
	switch len(op.Args) {
	case 0:
		e.b.NewRet(nil)
	case 1:
		e.b.NewRet(e.value(op.Args[0]))
	default:
		return errors.New("return with %d values", len(op.Args))
	}

	return nil
}

func (e *llvmFunc) value(id ir.ExprID) value.Value {
	if c, ok := e.g.Expr(id).(*ir.Constant); ok {
		return llconst(c)
	}

	v := e.vars[id]

	return e.b.NewLoad(v.ElemType, v)
}

func (e *llvmFunc) store(id ir.ExprID, v value.Value) error {
	p, ok := e.vars[id]
	if !ok {
		return errors.New("store to constant expr %d", id)
	}

	e.b.NewStore(v, p)

	return nil
}

// address computes addr + off as a pointer to t.
func (e *llvmFunc) address(addr ir.ExprID, off int, t types.Type) value.Value {
	var p value.Value = e.value(addr)

	if off != 0 {
		p = e.b.NewGetElementPtr(types.I8, p, constant.NewInt(types.I32, int64(off)))
	}

	return e.b.NewBitCast(p, types.NewPointer(t))
}

func (e *llvmFunc) unimplemented(op ir.Operator) error {
	return unimplemented(e.ctx, e.mod.st, NameLLVM, e.m, op)
}

func lltype(t ir.Type) types.Type {
	switch t.Class {
	case ir.ClassVoid:
		return types.Void
	case ir.ClassInteger:
		switch t.Size {
		case 1:
			return types.I8
		case 2:
			return types.I16
		case 8:
			return types.I64
		default:
			return types.I32
		}
	case ir.ClassFloat:
		if t.Size == 8 {
			return types.Double
		}

		return types.Float
	case ir.ClassPointer, ir.ClassObject:
		return types.I8Ptr
	default:
		return types.NewArray(uint64(max(t.Size, 1)), types.I8)
	}
}

func llconst(c *ir.Constant) constant.Constant {
	switch t := lltype(c.Type).(type) {
	case *types.IntType:
		return constant.NewInt(t, c.Signed())
	case *types.FloatType:
		return constant.NewFloat(t, c.Float())
	case *types.PointerType:
		if c.IsZero() {
			return constant.NewNull(t)
		}

		return constant.NewIntToPtr(constant.NewInt(types.I32, int64(c.Unsigned())), t)
	default:
		return constant.NewZeroInitializer(t)
	}
}

func zero(t types.Type) constant.Constant {
	switch t := t.(type) {
	case *types.IntType:
		return constant.NewInt(t, 0)
	case *types.FloatType:
		return constant.NewFloat(t, 0)
	case *types.PointerType:
		return constant.NewNull(t)
	default:
		return constant.NewZeroInitializer(t)
	}
}

func ipred(c ir.Condition, signed bool) enum.IPred {
	switch c {
	case ir.EQ:
		return enum.IPredEQ
	case ir.NE:
		return enum.IPredNE
	case ir.LT:
		if signed {
			return enum.IPredSLT
		}

		return enum.IPredULT
	case ir.LE:
		if signed {
			return enum.IPredSLE
		}

		return enum.IPredULE
	case ir.GT:
		if signed {
			return enum.IPredSGT
		}

		return enum.IPredUGT
	default:
		if signed {
			return enum.IPredSGE
		}

		return enum.IPredUGE
	}
}

// fpred uses ordered predicates except for NE, which holds for NaN.
func fpred(c ir.Condition) enum.FPred {
	switch c {
	case ir.EQ:
		return enum.FPredOEQ
	case ir.NE:
		return enum.FPredUNE
	case ir.LT:
		return enum.FPredOLT
	case ir.LE:
		return enum.FPredOLE
	case ir.GT:
		return enum.FPredOGT
	default:
		return enum.FPredOGE
	}
}
