package back

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
	"github.com/slowlang/aot/compiler/pipeline"
	"github.com/slowlang/aot/compiler/target/arm"
)

type (
	// Asm emits a GNU as Thumb-2 listing.
	//
	// There is no register allocator: every variable and temporary lives in
	// its stack slot and is loaded into r0-r3 and r12 around each operator.
	// Float operations go through s0/s1 or d0/d1.
	Asm struct{}

	asmFunc struct {
		ctx context.Context
		st  *pipeline.State
		m   *ir.Method
		g   *ir.ControlFlowGraph
		f   *pipeline.Frame

		vfp bool

		// frame is the number of bytes below the saved r7 and lr.
		frame int
		next  ir.BlockID

		b []byte
	}
)

func (Asm) Name() string { return NameAsm }

func (Asm) Emit(ctx context.Context, st *pipeline.State) (b []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "emit asm")
	defer tr.Finish("err", &err)

	if st.Platform == nil {
		return nil, errors.New("no platform")
	}

	b = fmt.Appendf(b, `@ platform %s
	.syntax	unified
	.thumb
	.text
`, st.Platform.Name())

	if st.Platform.HasVFP() {
		b = append(b, "\t.fpu\tfpv5-d16\n"...)
	}

	for _, m := range methods(st) {
		b = append(b, '\n')

		b, err = emitAsmMethod(ctx, b, st, m)
		if err != nil {
			return nil, errors.Wrap(err, "method %v", m.Name)
		}
	}

	if tr.If("omit_out") {
		b = nil
	}

	return b, nil
}

func emitAsmMethod(ctx context.Context, b []byte, st *pipeline.State, m *ir.Method) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "emit method", "name", m.Name)
	defer tr.Finish("err", &err)

	f := st.Frame(m.Name)
	if f == nil {
		return nil, errors.New("no frame, calling convention was not lowered")
	}

	e := &asmFunc{
		ctx: ctx,
		st:  st,
		m:   m,
		g:   m.CFG,
		f:   f,
		vfp: st.Platform.HasVFP(),
		b:   b,
	}

	words := f.OutWords
	if f.CallState != nil {
		words += f.CallState.StackUsage().Local
	}

	words += words & 1 // keep sp 8 byte aligned

	e.frame = 4 * words

	err = e.prologue()
	if err != nil {
		return nil, errors.Wrap(err, "prologue")
	}

	order := blockOrder(st, m)

	for i, id := range order {
		e.next = ir.NoBlock
		if i+1 < len(order) {
			e.next = order[i+1]
		}

		e.printf("%s:\n", e.label(id))

		for _, op := range e.g.Block(id).Ops {
			err = e.op(op)
			if err != nil {
				return nil, errors.Wrap(err, "block %v", ir.Label(id))
			}
		}
	}

	e.printf("\t.ltorg\n")
	e.printf("\t.size\t%s, .-%[1]s\n", Symbol(m.Name))

	return e.b, nil
}

func (e *asmFunc) prologue() error {
	sym := Symbol(e.m.Name)

	e.b = fmt.Appendf(e.b, `	.global	%[1]s
	.type	%[1]s, %%function
	.thumb_func
%[1]s:	@ %[2]s
	PUSH	{r7, lr}
`, sym, e.m.Name)

	if e.frame != 0 {
		e.printf("\tSUB\tsp, sp, #%d\n", e.frame)
	}

	for k, arg := range e.g.Args {
		if k >= len(e.f.Args) {
			return errors.New("argument %d has no storage", k)
		}

		if s := e.slot(arg); s != nil && s.Kind == ir.StackIn {
			continue
		}

		e.printf("\t@ arg %d expr %d\n", k, arg)

		w := 0

		for _, fr := range e.f.Args[k] {
			n, err := e.fromFragment(fr, arg, w)
			if err != nil {
				return err
			}

			w += n
		}
	}

	return nil
}

func (e *asmFunc) epilogue() {
	if e.frame != 0 {
		e.printf("\tADD\tsp, sp, #%d\n", e.frame)
	}

	e.printf("\tPOP\t{r7, pc}\n")
}

func (e *asmFunc) op(op ir.Operator) error {
	switch op := op.(type) {
	case *ir.Assign:
		return e.assign(op)
	case *ir.Binary:
		return e.binary(op)
	case *ir.Unary:
		return e.unary(op)
	case *ir.Compare:
		return e.compare(op)
	case *ir.Convert:
		return e.convert(op)
	case *ir.Load:
		return e.load(op)
	case *ir.Store:
		return e.store(op)
	case *ir.Call:
		return e.call(op)
	case *ir.Unconditional:
		e.jump(op.Target)
	case *ir.Leave:
		e.jump(op.Target)
	case *ir.BinaryConditional:
		return e.binaryConditional(op)
	case *ir.CompareConditional:
		return e.compareConditional(op)
	case *ir.MultiWay:
		return e.multiWay(op)
	case *ir.Return:
		return e.ret(op)
	case *ir.Dead:
		e.printf("\tUDF\t#0\n")
	default:
		err := e.unimplemented(op)
		if err != nil {
			return err
		}

		if ir.IsControl(op) {
			e.printf("\tUDF\t#0\n")
		}
	}

	return nil
}

func (e *asmFunc) assign(op *ir.Assign) error {
	res, arg := op.Result(), op.Args[0]

	for w := range words(e.g.TypeOf(res)) {
		err := e.loadWord("r12", arg, w)
		if err != nil {
			return err
		}

		err = e.storeWord("r12", res, w)
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *asmFunc) binary(op *ir.Binary) (err error) {
	res, l, r := op.Result(), op.Args[0], op.Args[1]
	t := e.g.TypeOf(res)

	if t.IsFloat() {
		ins, ok := map[ir.Alu]string{ir.Add: "VADD", ir.Sub: "VSUB", ir.Mul: "VMUL", ir.Div: "VDIV"}[op.Alu]
		if !ok || !e.vfp {
			return e.unimplemented(op)
		}

		return e.float2(ins, t, res, l, r)
	}

	if t.Words() == 2 {
		ins, ok := wideAlu[op.Alu]
		if !ok {
			return e.unimplemented(op)
		}

		err = e.loadWords([]string{"r0", "r1"}, l)
		if err != nil {
			return err
		}

		err = e.loadWords([]string{"r2", "r3"}, r)
		if err != nil {
			return err
		}

		e.printf("\t%s\tr0, r0, r2\t@ expr %d\n", ins[0], res)
		e.printf("\t%s\tr1, r1, r3\n", ins[1])

		return e.storeWords([]string{"r0", "r1"}, res)
	}

	if t.Words() > 2 {
		return e.unimplemented(op)
	}

	err = e.loadWord("r0", l, 0)
	if err != nil {
		return err
	}

	err = e.loadWord("r1", r, 0)
	if err != nil {
		return err
	}

	div := "UDIV"
	if op.Signed {
		div = "SDIV"
	}

	switch op.Alu {
	case ir.Add:
		e.printf("\tADD\tr0, r0, r1\t@ expr %d\n", res)
	case ir.Sub:
		e.printf("\tSUB\tr0, r0, r1\t@ expr %d\n", res)
	case ir.Mul:
		e.printf("\tMUL\tr0, r0, r1\t@ expr %d\n", res)
	case ir.Div:
		e.printf("\t%s\tr0, r0, r1\t@ expr %d\n", div, res)
	case ir.Rem:
		e.printf("\t%s\tr2, r0, r1\t@ expr %d\n", div, res)
		e.printf("\tMLS\tr0, r2, r1, r0\n")
	case ir.And:
		e.printf("\tAND\tr0, r0, r1\t@ expr %d\n", res)
	case ir.Or:
		e.printf("\tORR\tr0, r0, r1\t@ expr %d\n", res)
	case ir.Xor:
		e.printf("\tEOR\tr0, r0, r1\t@ expr %d\n", res)
	case ir.Shl:
		e.printf("\tLSL\tr0, r0, r1\t@ expr %d\n", res)
	case ir.Shr:
		if op.Signed {
			e.printf("\tASR\tr0, r0, r1\t@ expr %d\n", res)
		} else {
			e.printf("\tLSR\tr0, r0, r1\t@ expr %d\n", res)
		}
	default:
		return e.unimplemented(op)
	}

	e.narrow("r0", t)

	return e.storeWord("r0", res, 0)
}

func (e *asmFunc) unary(op *ir.Unary) (err error) {
	res, arg := op.Result(), op.Args[0]
	t := e.g.TypeOf(res)

	switch {
	case t.IsFloat():
		if op.Alu != ir.Neg || !e.vfp {
			return e.unimplemented(op)
		}

		err = e.loadFloat(0, arg)
		if err != nil {
			return err
		}

		e.printf("\tVNEG.%s\t%s, %[2]s\t@ expr %d\n", fsuffix(t), freg(t, 0), res)

		return e.storeFloat(0, res)
	case t.Words() == 2:
		err = e.loadWords([]string{"r0", "r1"}, arg)
		if err != nil {
			return err
		}

		e.printf("\tMVN\tr0, r0\t@ expr %d\n", res)
		e.printf("\tMVN\tr1, r1\n")

		switch op.Alu {
		case ir.Not:
		case ir.Neg:
			e.printf("\tADDS\tr0, r0, #1\n")
			e.printf("\tADC\tr1, r1, #0\n")
		default:
			return e.unimplemented(op)
		}

		return e.storeWords([]string{"r0", "r1"}, res)
	case t.Words() > 2:
		return e.unimplemented(op)
	}

	err = e.loadWord("r0", arg, 0)
	if err != nil {
		return err
	}

	switch op.Alu {
	case ir.Neg:
		e.printf("\tRSB\tr0, r0, #0\t@ expr %d\n", res)
	case ir.Not:
		e.printf("\tMVN\tr0, r0\t@ expr %d\n", res)
	default:
		return e.unimplemented(op)
	}

	e.narrow("r0", t)

	return e.storeWord("r0", res, 0)
}

func (e *asmFunc) compare(op *ir.Compare) error {
	res := op.Result()
	float := e.g.TypeOf(op.Args[0]).IsFloat()

	err := e.cmp(op, op.Args[0], op.Args[1])
	if err != nil {
		return err
	}

	cc := condCode(op.Cond, op.Signed, float)

	e.printf("\tITE\t%s\n", cc)
	e.printf("\tMOV%s\tr0, #1\t@ expr %d\n", cc, res)
	e.printf("\tMOV%s\tr0, #0\n", inverseCode[cc])

	return e.storeWord("r0", res, 0)
}

// cmp sets the flags for l compared to r.
func (e *asmFunc) cmp(op ir.Operator, l, r ir.ExprID) (err error) {
	t := e.g.TypeOf(l)

	switch {
	case t.IsFloat():
		if !e.vfp {
			return e.unimplemented(op)
		}

		err = e.loadFloat(0, l)
		if err != nil {
			return err
		}

		err = e.loadFloat(1, r)
		if err != nil {
			return err
		}

		e.printf("\tVCMP.%s\t%s, %s\n", fsuffix(t), freg(t, 0), freg(t, 1))
		e.printf("\tVMRS\tAPSR_nzcv, FPSCR\n")

		return nil
	case t.Words() > 1:
		return e.unimplemented(op)
	}

	err = e.loadWord("r0", l, 0)
	if err != nil {
		return err
	}

	err = e.loadWord("r1", r, 0)
	if err != nil {
		return err
	}

	e.printf("\tCMP\tr0, r1\n")

	return nil
}

func (e *asmFunc) convert(op *ir.Convert) (err error) {
	res, arg := op.Result(), op.Args[0]
	from, to := op.From, op.To

	integer := func(t ir.Type) bool { return t.IsInteger() || t.IsPointer() }

	switch {
	case integer(from) && integer(to):
		if from.Words() > 2 || to.Words() > 2 {
			return e.unimplemented(op)
		}

		err = e.loadWord("r0", arg, 0)
		if err != nil {
			return err
		}

		e.narrow("r0", to)

		if to.Words() == 2 {
			if from.Words() == 2 {
				err = e.loadWord("r1", arg, 1)
			} else if from.Signed {
				e.printf("\tASR\tr1, r0, #31\n")
			} else {
				e.printf("\tMOV\tr1, #0\n")
			}

			if err != nil {
				return err
			}

			return e.storeWords([]string{"r0", "r1"}, res)
		}

		return e.storeWord("r0", res, 0)
	case !e.vfp:
		return e.unimplemented(op)
	case integer(from) && to.IsFloat():
		if from.Words() > 1 {
			return e.unimplemented(op)
		}

		err = e.loadWord("r12", arg, 0)
		if err != nil {
			return err
		}

		e.printf("\tVMOV\ts0, r12\n")
		e.printf("\tVCVT.%s.%s\t%s, s0\t@ expr %d\n", fsuffix(to), isuffix(from.Signed), freg(to, 0), res)

		return e.storeFloat(0, res)
	case from.IsFloat() && integer(to):
		if to.Words() > 1 {
			return e.unimplemented(op)
		}

		err = e.loadFloat(0, arg)
		if err != nil {
			return err
		}

		e.printf("\tVCVT.%s.%s\ts0, %s\t@ expr %d\n", isuffix(to.Signed), fsuffix(from), freg(from, 0), res)
		e.printf("\tVMOV\tr0, s0\n")
		e.narrow("r0", to)

		return e.storeWord("r0", res, 0)
	case from.IsFloat() && to.IsFloat():
		err = e.loadFloat(1, arg)
		if err != nil {
			return err
		}

		if from.Size == to.Size {
			e.printf("\tVMOV.%s\t%s, %s\t@ expr %d\n", fsuffix(to), freg(to, 0), freg(from, 1), res)
		} else {
			e.printf("\tVCVT.%s.%s\t%s, %s\t@ expr %d\n", fsuffix(to), fsuffix(from), freg(to, 0), freg(from, 1), res)
		}

		return e.storeFloat(0, res)
	}

	return e.unimplemented(op)
}

func (e *asmFunc) load(op *ir.Load) (err error) {
	res := op.Result()
	t := e.g.TypeOf(res)

	ins := memInstruction("LDR", t)
	if ins == "" {
		return e.unimplemented(op)
	}

	err = e.loadWord("r0", op.Args[0], 0)
	if err != nil {
		return err
	}

	if t.Size == 8 {
		e.printf("\tLDRD\tr1, r2, [r0, #%d]\t@ expr %d\n", op.Offset, res)

		return e.storeWords([]string{"r1", "r2"}, res)
	}

	e.printf("\t%s\tr1, [r0, #%d]\t@ expr %d\n", ins, op.Offset, res)

	return e.storeWord("r1", res, 0)
}

func (e *asmFunc) store(op *ir.Store) (err error) {
	addr, val := op.Args[0], op.Args[1]
	t := e.g.TypeOf(val)

	ins := memInstruction("STR", t)
	if ins == "" {
		return e.unimplemented(op)
	}

	err = e.loadWord("r0", addr, 0)
	if err != nil {
		return err
	}

	if t.Size == 8 {
		err = e.loadWords([]string{"r1", "r2"}, val)
		if err != nil {
			return err
		}

		e.printf("\tSTRD\tr1, r2, [r0, #%d]\n", op.Offset)

		return nil
	}

	err = e.loadWord("r1", val, 0)
	if err != nil {
		return err
	}

	e.printf("\t%s\tr1, [r0, #%d]\n", ins, op.Offset)

	return nil
}

func (e *asmFunc) call(op *ir.Call) error {
	if op.Kind != ir.CallStatic {
		return e.unimplemented(op)
	}

	for i, a := range op.Args {
		cf, ok := ir.FindAnnotation(op, func(c *ir.CallFragments) bool { return !c.IsResult && c.Operand == i })
		if !ok {
			return errors.New("call %v: argument %d was not lowered", op.Method, i)
		}

		w := 0

		for _, fr := range cf.Fragments {
			n, err := e.toFragment(fr, a, w)
			if err != nil {
				return err
			}

			w += n
		}
	}

	e.printf("\tBL\t%s\t@ %s\n", Symbol(op.Method), op.Method)

	res := op.Result()
	if res == ir.NoExpr {
		return nil
	}

	cf, ok := ir.FindAnnotation(op, func(c *ir.CallFragments) bool { return c.IsResult })
	if !ok {
		return errors.New("call %v: result was not lowered", op.Method)
	}

	w := 0

	for _, fr := range cf.Fragments {
		n, err := e.fromFragment(fr, res, w)
		if err != nil {
			return err
		}

		w += n
	}

	return nil
}

func (e *asmFunc) ret(op *ir.Return) error {
	switch len(op.Args) {
	case 0:
	case 1:
		cf, ok := ir.FindAnnotation(op, func(c *ir.CallFragments) bool { return !c.IsResult && c.Operand == 0 })
		if !ok {
			return errors.New("return value was not lowered")
		}

		w := 0

		for _, fr := range cf.Fragments {
			n, err := e.toFragment(fr, op.Args[0], w)
			if err != nil {
				return err
			}

			w += n
		}
	default:
		return errors.New("return with %d values", len(op.Args))
	}

	e.epilogue()

	return nil
}

func (e *asmFunc) jump(to ir.BlockID) {
	if to == e.next {
		return
	}

	e.printf("\tB\t%s\n", e.label(to))
}

func (e *asmFunc) branch(cc string, taken, notTaken ir.BlockID) {
	if taken == e.next {
		e.printf("\tB%s\t%s\n", inverseCode[cc], e.label(notTaken))
		return
	}

	e.printf("\tB%s\t%s\n", cc, e.label(taken))
	e.jump(notTaken)
}

func (e *asmFunc) binaryConditional(op *ir.BinaryConditional) (err error) {
	test := op.Args[0]
	t := e.g.TypeOf(test)

	switch {
	case t.IsFloat():
		if !e.vfp {
			return e.unimplemented(op)
		}

		err = e.loadFloat(0, test)
		if err != nil {
			return err
		}

		e.printf("\tVCMP.%s\t%s, #0\n", fsuffix(t), freg(t, 0))
		e.printf("\tVMRS\tAPSR_nzcv, FPSCR\n")
	case t.Words() == 2:
		err = e.loadWords([]string{"r0", "r1"}, test)
		if err != nil {
			return err
		}

		e.printf("\tORRS\tr0, r0, r1\n")
	default:
		err = e.loadWord("r0", test, 0)
		if err != nil {
			return err
		}

		e.printf("\tCMP\tr0, #0\n")
	}

	e.branch("NE", op.Taken, op.NotTaken)

	return nil
}

func (e *asmFunc) compareConditional(op *ir.CompareConditional) error {
	l, r := op.Args[0], op.Args[1]

	err := e.cmp(op, l, r)
	if err != nil {
		return err
	}

	e.branch(condCode(op.Cond, op.Signed, e.g.TypeOf(l).IsFloat()), op.Taken, op.NotTaken)

	return nil
}

// multiWay compares the index against every case. Negative indexes miss
// all of them and end up in NotTaken.
func (e *asmFunc) multiWay(op *ir.MultiWay) error {
	err := e.loadWord("r0", op.Args[0], 0)
	if err != nil {
		return err
	}

	for i, t := range op.Cases {
		if i < 256 {
			e.printf("\tCMP\tr0, #%d\n", i)
		} else {
			e.printf("\tLDR\tr1, =%d\n", i)
			e.printf("\tCMP\tr0, r1\n")
		}

		e.printf("\tBEQ\t%s\n", e.label(t))
	}

	e.jump(op.NotTaken)

	return nil
}

// toFragment moves word w and on of src into the fragment storage.
// It returns the number of words the fragment holds.
func (e *asmFunc) toFragment(fr, src ir.ExprID, w int) (int, error) {
	switch x := e.g.Expr(fr).(type) {
	case *ir.PhysicalRegister:
		r := x.Reg

		switch {
		case r.Is(machine.ClassDoublePrecision):
			err := e.loadWords([]string{"r12", "lr"}, src)
			if err != nil {
				return 0, err
			}

			e.printf("\tVMOV\t%s, r12, lr\n", r.Mnemonic)

			return 2, nil
		case r.Is(machine.ClassSinglePrecision):
			err := e.loadWord("r12", src, w)
			if err != nil {
				return 0, err
			}

			e.printf("\tVMOV\t%s, r12\n", r.Mnemonic)
		default:
			err := e.loadWord(r.Mnemonic, src, w)
			if err != nil {
				return 0, err
			}
		}

		return 1, nil
	case *ir.StackLocation:
		n := words(x.Type)

		for i := range n {
			err := e.loadWord("r12", src, w+i)
			if err != nil {
				return 0, err
			}

			e.printf("\tSTR\tr12, [sp, #%d]\n", e.offset(x)+4*i)
		}

		return n, nil
	default:
		return 0, errors.New("unexpected fragment %T", x)
	}
}

// fromFragment is the reverse of toFragment.
func (e *asmFunc) fromFragment(fr, dst ir.ExprID, w int) (int, error) {
	switch x := e.g.Expr(fr).(type) {
	case *ir.PhysicalRegister:
		r := x.Reg

		switch {
		case r.Is(machine.ClassDoublePrecision):
			e.printf("\tVMOV\tr12, lr, %s\n", r.Mnemonic)

			return 2, e.storeWords([]string{"r12", "lr"}, dst)
		case r.Is(machine.ClassSinglePrecision):
			e.printf("\tVMOV\tr12, %s\n", r.Mnemonic)

			return 1, e.storeWord("r12", dst, w)
		default:
			return 1, e.storeWord(r.Mnemonic, dst, w)
		}
	case *ir.StackLocation:
		n := words(x.Type)

		for i := range n {
			e.printf("\tLDR\tr12, [sp, #%d]\n", e.offset(x)+4*i)

			err := e.storeWord("r12", dst, w+i)
			if err != nil {
				return 0, err
			}
		}

		return n, nil
	default:
		return 0, errors.New("unexpected fragment %T", x)
	}
}

func (e *asmFunc) loadWords(regs []string, id ir.ExprID) error {
	for w := range min(len(regs), words(e.g.TypeOf(id))) {
		err := e.loadWord(regs[w], id, w)
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *asmFunc) storeWords(regs []string, id ir.ExprID) error {
	for w := range min(len(regs), words(e.g.TypeOf(id))) {
		err := e.storeWord(regs[w], id, w)
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *asmFunc) loadWord(reg string, id ir.ExprID, w int) error {
	switch x := e.g.Expr(id).(type) {
	case *ir.Constant:
		e.printf("\tLDR\t%s, =0x%x\t@ expr %d\n", reg, uint32(x.Bits>>(32*w)), id)
	case *ir.PhysicalRegister:
		src := e.wordRegister(x.Reg, w)
		if src == reg {
			return nil
		}

		if x.Reg.Is(machine.ClassSinglePrecision) || x.Reg.Is(machine.ClassDoublePrecision) {
			e.printf("\tVMOV\t%s, %s\n", reg, src)
		} else {
			e.printf("\tMOV\t%s, %s\n", reg, src)
		}
	default:
		s := e.slot(id)
		if s == nil {
			return errors.New("expr %d has no storage", id)
		}

		e.printf("\tLDR\t%s, [sp, #%d]\t@ expr %d\n", reg, e.offset(s)+4*w, id)
	}

	return nil
}

func (e *asmFunc) storeWord(reg string, id ir.ExprID, w int) error {
	switch x := e.g.Expr(id).(type) {
	case *ir.Constant:
		return errors.New("store to constant expr %d", id)
	case *ir.PhysicalRegister:
		dst := e.wordRegister(x.Reg, w)
		if dst == reg {
			return nil
		}

		if x.Reg.Is(machine.ClassSinglePrecision) || x.Reg.Is(machine.ClassDoublePrecision) {
			e.printf("\tVMOV\t%s, %s\n", dst, reg)
		} else {
			e.printf("\tMOV\t%s, %s\n", dst, reg)
		}
	default:
		s := e.slot(id)
		if s == nil {
			return errors.New("expr %d has no storage", id)
		}

		e.printf("\tSTR\t%s, [sp, #%d]\t@ expr %d\n", reg, e.offset(s)+4*w, id)
	}

	return nil
}

// wordRegister names the single register holding word w of r.
// Double registers overlap pairs of singles.
func (e *asmFunc) wordRegister(r *machine.RegisterDescriptor, w int) string {
	if r.Is(machine.ClassDoublePrecision) {
		return fmt.Sprintf("s%d", 2*int(r.Encoding-arm.EncD0)+w)
	}

	return r.Mnemonic
}

func (e *asmFunc) loadFloat(i int, id ir.ExprID) error {
	t := e.g.TypeOf(id)

	if t.Size == 4 {
		err := e.loadWord("r12", id, 0)
		if err != nil {
			return err
		}

		e.printf("\tVMOV\t%s, r12\n", freg(t, i))

		return nil
	}

	err := e.loadWords([]string{"r12", "lr"}, id)
	if err != nil {
		return err
	}

	e.printf("\tVMOV\t%s, r12, lr\n", freg(t, i))

	return nil
}

func (e *asmFunc) storeFloat(i int, id ir.ExprID) error {
	t := e.g.TypeOf(id)

	if t.Size == 4 {
		e.printf("\tVMOV\tr12, %s\n", freg(t, i))

		return e.storeWord("r12", id, 0)
	}

	e.printf("\tVMOV\tr12, lr, %s\n", freg(t, i))

	return e.storeWords([]string{"r12", "lr"}, id)
}

func (e *asmFunc) float2(ins string, t ir.Type, res, l, r ir.ExprID) error {
	err := e.loadFloat(0, l)
	if err != nil {
		return err
	}

	err = e.loadFloat(1, r)
	if err != nil {
		return err
	}

	e.printf("\t%s.%s\t%s, %[3]s, %s\t@ expr %d\n", ins, fsuffix(t), freg(t, 0), freg(t, 1), res)

	return e.storeFloat(0, res)
}

// narrow truncates or extends reg to the width of t.
func (e *asmFunc) narrow(reg string, t ir.Type) {
	var ins string

	switch {
	case t.Size == 1 && t.Signed:
		ins = "SXTB"
	case t.Size == 1:
		ins = "UXTB"
	case t.Size == 2 && t.Signed:
		ins = "SXTH"
	case t.Size == 2:
		ins = "UXTH"
	default:
		return
	}

	e.printf("\t%s\t%s, %[2]s\n", ins, reg)
}

// slot returns the stack location holding id, nil if it has none.
func (e *asmFunc) slot(id ir.ExprID) *ir.StackLocation {
	x, _ := e.g.Expr(e.f.Slot(id)).(*ir.StackLocation)
	return x
}

// offset returns the sp relative byte offset of a stack location.
//
//	[sp, #0]           outgoing arguments
//	[sp, #4*OutWords]  locals
//	[sp, #frame]       saved r7, lr
//	[sp, #frame+8]     incoming arguments
func (e *asmFunc) offset(x *ir.StackLocation) int {
	switch x.Kind {
	case ir.StackOut:
		return 4 * x.Index
	case ir.StackLocal:
		return 4 * (e.f.OutWords + x.Index)
	default:
		return e.frame + 8 + 4*x.Index
	}
}

func (e *asmFunc) label(id ir.BlockID) string {
	return fmt.Sprintf(".L%s_%s", Symbol(e.m.Name), ir.Label(id))
}

func (e *asmFunc) unimplemented(op ir.Operator) error {
	err := unimplemented(e.ctx, e.st, NameAsm, e.m, op)
	if err != nil {
		return err
	}

	e.printf("\t@ unimplemented %s\n", opName(op))

	return nil
}

func (e *asmFunc) printf(format string, args ...any) {
	e.b = fmt.Appendf(e.b, format, args...)
}

func words(t ir.Type) int { return max(t.Words(), 1) }

func memInstruction(base string, t ir.Type) string {
	switch {
	case t.Size == 1 && t.Signed && base == "LDR":
		return base + "SB"
	case t.Size == 1:
		return base + "B"
	case t.Size == 2 && t.Signed && base == "LDR":
		return base + "SH"
	case t.Size == 2:
		return base + "H"
	case t.Size == 4:
		return base
	case t.Size == 8:
		return base + "D"
	default:
		return ""
	}
}

func freg(t ir.Type, i int) string {
	if t.Size == 8 {
		return fmt.Sprintf("d%d", i)
	}

	return fmt.Sprintf("s%d", i)
}

func fsuffix(t ir.Type) string {
	if t.Size == 8 {
		return "F64"
	}

	return "F32"
}

func isuffix(signed bool) string {
	if signed {
		return "S32"
	}

	return "U32"
}

// condCode maps a condition to an ARM condition code.
// Float comparisons use the codes that are false for unordered operands.
func condCode(c ir.Condition, signed, float bool) string {
	switch c {
	case ir.EQ:
		return "EQ"
	case ir.NE:
		return "NE"
	case ir.LT:
		switch {
		case float:
			return "MI"
		case signed:
			return "LT"
		}

		return "LO"
	case ir.LE:
		switch {
		case float:
			return "LS"
		case signed:
			return "LE"
		}

		return "LS"
	case ir.GT:
		if float || signed {
			return "GT"
		}

		return "HI"
	case ir.GE:
		if float || signed {
			return "GE"
		}

		return "HS"
	}

	panic(c)
}

// wideAlu holds the low and high word instructions of two word operations.
var wideAlu = map[ir.Alu][2]string{
	ir.Add: {"ADDS", "ADC"},
	ir.Sub: {"SUBS", "SBC"},
	ir.And: {"AND", "AND"},
	ir.Or:  {"ORR", "ORR"},
	ir.Xor: {"EOR", "EOR"},
}

var inverseCode = map[string]string{
	"EQ": "NE", "NE": "EQ",
	"LT": "GE", "GE": "LT",
	"LE": "GT", "GT": "LE",
	"LO": "HS", "HS": "LO",
	"LS": "HI", "HI": "LS",
	"MI": "PL", "PL": "MI",
}
