package ir

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"
)

type (
	BlockID int

	BlockKind uint8

	BasicBlock struct {
		ID   BlockID
		Kind BlockKind
		Ops  []Operator

		// ProtectedBy lists the handler blocks control goes to on exception.
		ProtectedBy []BlockID

		cfg *ControlFlowGraph

		succ  []BlockID
		esucc []BlockID
		pred  []BlockID
	}
)

const NoBlock BlockID = -1

const (
	BlockNormal BlockKind = iota
	BlockEntry
	BlockExit
	BlockHandler
)

func (b *BasicBlock) Graph() *ControlFlowGraph { return b.cfg }

// Control returns the terminating operator, nil if the block is not terminated yet.
func (b *BasicBlock) Control() Control {
	if len(b.Ops) == 0 {
		return nil
	}

	c, _ := b.Ops[len(b.Ops)-1].(Control)

	return c
}

func (b *BasicBlock) Append(op Operator) {
	if b.Control() != nil {
		panic(fmt.Sprintf("block %v: append %T after control operator", b.ID, op))
	}

	b.attach(op)
	b.Ops = append(b.Ops, op)

	b.cfg.bump()
}

// Insert adds op before the terminating operator.
func (b *BasicBlock) Insert(op Operator) {
	if IsControl(op) {
		panic(fmt.Sprintf("block %v: insert control operator %T", b.ID, op))
	}

	n := len(b.Ops)
	if b.Control() != nil {
		n--
	}

	b.attach(op)

	b.Ops = append(b.Ops, nil)
	copy(b.Ops[n+1:], b.Ops[n:])
	b.Ops[n] = op

	b.cfg.bump()
}

func (b *BasicBlock) Index(op Operator) int {
	for i, x := range b.Ops {
		if x == op {
			return i
		}
	}

	return -1
}

// Replace puts new in place of old.
func (b *BasicBlock) Replace(old, new Operator) {
	i := b.Index(old)
	if i < 0 {
		panic(fmt.Sprintf("block %v: replace %T: operator is not in the block", b.ID, old))
	}

	if IsControl(old) != IsControl(new) {
		panic(fmt.Sprintf("block %v: replace %T with %T", b.ID, old, new))
	}

	old.Base().block = nil
	b.attach(new)
	b.Ops[i] = new

	b.cfg.bump()
}

func (b *BasicBlock) Remove(op Operator) {
	i := b.Index(op)
	if i < 0 {
		panic(fmt.Sprintf("block %v: remove %T: operator is not in the block", b.ID, op))
	}

	op.Base().block = nil
	b.Ops = append(b.Ops[:i:i], b.Ops[i+1:]...)

	b.cfg.bump()
}

func (b *BasicBlock) attach(op Operator) {
	base := op.Base()

	if base.block != nil && base.block != b {
		panic(fmt.Sprintf("block %v: operator %T already belongs to block %v", b.ID, op, base.block.ID))
	}

	base.block = b
}

func (b *BasicBlock) Successors() []BlockID {
	b.cfg.UpdateFlowInformation()
	return b.succ
}

func (b *BasicBlock) ExceptionSuccessors() []BlockID {
	b.cfg.UpdateFlowInformation()
	return b.esucc
}

func (b *BasicBlock) Predecessors() []BlockID {
	b.cfg.UpdateFlowInformation()
	return b.pred
}

func (b *BasicBlock) LinkToNormal(to BlockID) {
	t := b.cfg.Block(to)

	if t.Kind == BlockHandler {
		panic(fmt.Sprintf("block %v: normal edge to handler block %v", b.ID, to))
	}

	b.succ = addOnce(b.succ, to)
	t.pred = addOnce(t.pred, b.ID)
}

func (b *BasicBlock) LinkToException(to BlockID) {
	t := b.cfg.Block(to)

	if t.Kind != BlockHandler {
		panic(fmt.Sprintf("block %v: exception edge to non handler block %v", b.ID, to))
	}

	b.esucc = addOnce(b.esucc, to)
	t.pred = addOnce(t.pred, b.ID)
}

// InsertNewSuccessor puts a new block on the edge from b to old.
func (b *BasicBlock) InsertNewSuccessor(old BlockID) *BasicBlock {
	c := b.Control()
	if c == nil {
		panic(fmt.Sprintf("block %v: not terminated", b.ID))
	}

	nb := b.cfg.NewBlock(BlockNormal)
	nb.ProtectedBy = append([]BlockID(nil), b.ProtectedBy...)

	if !c.SubstituteTarget(old, nb.ID) {
		panic(fmt.Sprintf("block %v: %v is not a successor", b.ID, old))
	}

	nb.Append(NewUnconditional(old))

	return nb
}

// InsertNewPredecessor puts a new block between b and all its predecessors.
func (b *BasicBlock) InsertNewPredecessor() *BasicBlock {
	if b.ID == b.cfg.Entry {
		panic("insert predecessor of the entry block")
	}

	if b.Kind == BlockHandler {
		panic(fmt.Sprintf("block %v: insert predecessor of a handler block, handlers are entered by exception edges only", b.ID))
	}

	preds := append([]BlockID(nil), b.Predecessors()...)

	nb := b.cfg.NewBlock(BlockNormal)
	nb.ProtectedBy = append([]BlockID(nil), b.ProtectedBy...)

	for _, p := range preds {
		if c := b.cfg.Block(p).Control(); c != nil {
			c.SubstituteTarget(b.ID, nb.ID)
		}
	}

	nb.Append(NewUnconditional(b.ID))

	return nb
}

// SplitAt moves op and everything after it to a new block.
func (b *BasicBlock) SplitAt(op Operator) *BasicBlock {
	i := b.Index(op)
	if i < 0 {
		panic(fmt.Sprintf("block %v: split at %T: operator is not in the block", b.ID, op))
	}

	nb := b.cfg.NewBlock(BlockNormal)
	nb.ProtectedBy = append([]BlockID(nil), b.ProtectedBy...)

	nb.Ops = append(nb.Ops, b.Ops[i:]...)
	for _, x := range nb.Ops {
		x.Base().block = nb
	}

	b.Ops = b.Ops[:i:i]
	b.Append(NewUnconditional(nb.ID))

	if b.ID == b.cfg.Exit {
		b.cfg.Exit = nb.ID
		b.Kind, nb.Kind = BlockNormal, BlockExit
	}

	return nb
}

// CanMerge reports whether next can be appended to b.
func (b *BasicBlock) CanMerge(next *BasicBlock) bool {
	u, ok := b.Control().(*Unconditional)
	if !ok || u.Target != next.ID || next == b {
		return false
	}

	if next.ID == b.cfg.Entry || next.ID == b.cfg.Exit || next.Kind == BlockHandler {
		return false
	}

	if !sameBlocks(b.ProtectedBy, next.ProtectedBy) {
		return false
	}

	p := next.Predecessors()

	return len(p) == 1 && p[0] == b.ID
}

// Merge appends next to b. next is left empty and unreachable.
func (b *BasicBlock) Merge(next *BasicBlock) {
	if !b.CanMerge(next) {
		panic(fmt.Sprintf("block %v: can't merge %v", b.ID, next.ID))
	}

	last := b.Ops[len(b.Ops)-1]
	last.Base().block = nil

	b.Ops = b.Ops[:len(b.Ops)-1]

	for _, x := range next.Ops {
		x.Base().block = b
		b.Ops = append(b.Ops, x)
	}

	next.Ops = nil
	next.Append(NewDead())

	b.cfg.bump()
}

// ShouldIncludeInScheduling reports whether next may follow b without a branch.
func (b *BasicBlock) ShouldIncludeInScheduling(next *BasicBlock) bool {
	c := b.Control()

	return c != nil && c.ShouldIncludeInScheduling(next)
}

func (b *BasicBlock) ApplyTransformation(t Transformer) {
	t.Push(b)
	defer t.Pop()

	t.Block(&b.ID)
	TransformEnum(t, &b.Kind)
	TransformSlice(t, &b.Ops, Transformer.Operator)
	TransformSlice(t, &b.ProtectedBy, Transformer.Block)
}

func (b *BasicBlock) TlogAppend(buf []byte) []byte {
	var e tlwire.Encoder

	buf = e.AppendMap(buf, 3)
	buf = e.AppendKeyInt64(buf, "id", int64(b.ID))
	buf = e.AppendKeyInt64(buf, "kind", int64(b.Kind))
	buf = e.AppendKeyInt(buf, "ops", len(b.Ops))

	return buf
}

func (k BlockKind) String() string {
	switch k {
	case BlockNormal:
		return "Normal"
	case BlockEntry:
		return "Entry"
	case BlockExit:
		return "Exit"
	case BlockHandler:
		return "Exception"
	default:
		return "Kind?"
	}
}

func addOnce(s []BlockID, x BlockID) []BlockID {
	for _, y := range s {
		if y == x {
			return s
		}
	}

	return append(s, x)
}

func sameBlocks(a, b []BlockID) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
