package ir

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAndMerge(t *testing.T) {
	g := NewGraph("Test::Split()")
	e := g.Block(g.Entry)

	x := g.NewArgument("x", Int32)
	y := g.NewVariable("y", Int32)

	a1 := NewBinary(Add, true, y, x, x)
	a2 := NewBinary(Mul, true, y, y, x)

	e.Append(a1)
	e.Append(a2)
	e.Append(NewReturn(y))

	nb := e.SplitAt(a2)

	require.NoError(t, g.Validate())
	assert.Equal(t, []Operator{a1, e.Control()}, e.Ops)
	assert.Same(t, nb, a2.Block())
	assert.Equal(t, []BlockID{nb.ID}, e.Successors())
	assert.Equal(t, []BlockID{e.ID}, nb.Predecessors())

	require.True(t, e.CanMerge(nb))
	e.Merge(nb)

	require.NoError(t, g.Validate())
	assert.Len(t, e.Ops, 3)
	assert.Same(t, e, a2.Block())
	assert.IsType(t, &Dead{}, nb.Control())
	assert.Empty(t, nb.Predecessors())
}

func TestCanMergeRequiresSinglePredecessor(t *testing.T) {
	g := NewGraph("Test::Diamond()")
	x := g.NewArgument("x", Bool)

	l := g.NewBlock(BlockNormal)
	r := g.NewBlock(BlockNormal)
	j := g.NewBlock(BlockNormal)

	g.Block(g.Entry).Append(NewBinaryConditional(x, l.ID, r.ID))
	l.Append(NewUnconditional(j.ID))
	r.Append(NewUnconditional(j.ID))
	j.Append(NewReturn())

	assert.False(t, l.CanMerge(j))
	assert.False(t, g.Block(g.Entry).CanMerge(l))
	assert.Panics(t, func() { l.Merge(j) })

	idom := g.Dominators()
	assert.Equal(t, g.Entry, idom[j.ID])
	assert.Equal(t, g.Entry, idom[l.ID])
	assert.True(t, g.Dominates(g.Entry, j.ID))
	assert.False(t, g.Dominates(l.ID, j.ID))

	tree := g.SpanningTree()
	assert.Equal(t, g.Entry, tree.Blocks[0])
	assert.Len(t, tree.Blocks, 4)
	assert.Equal(t, []ExprID{x}, tree.Vars)
}

func TestInsertNewSuccessorAndPredecessor(t *testing.T) {
	g := NewGraph("Test::Edges()")
	x := g.NewArgument("x", Bool)

	a := g.NewBlock(BlockNormal)
	b := g.NewBlock(BlockNormal)

	g.Block(g.Entry).Append(NewBinaryConditional(x, a.ID, b.ID))
	a.Append(NewUnconditional(b.ID))
	b.Append(NewReturn())

	s := g.Block(g.Entry).InsertNewSuccessor(b.ID)

	assert.ElementsMatch(t, []BlockID{a.ID, s.ID}, g.Block(g.Entry).Successors())
	assert.Equal(t, []BlockID{b.ID}, s.Successors())
	assert.ElementsMatch(t, []BlockID{a.ID, s.ID}, b.Predecessors())

	p := b.InsertNewPredecessor()

	assert.Equal(t, []BlockID{p.ID}, b.Predecessors())
	assert.ElementsMatch(t, []BlockID{a.ID, s.ID}, p.Predecessors())
	require.NoError(t, g.Validate())

	assert.Panics(t, func() { g.Block(g.Entry).InsertNewPredecessor() })
}

func TestInsertNewPredecessorOfHandler(t *testing.T) {
	g := testGraph(t)

	h := g.NewBlock(BlockHandler)
	h.Append(NewRethrow())

	g.Block(g.Entry).Append(NewUnconditional(1))
	g.Block(1).ProtectedBy = []BlockID{h.ID}

	n := len(g.Blocks)

	assert.PanicsWithValue(t, fmt.Sprintf("block %v: insert predecessor of a handler block, handlers are entered by exception edges only", h.ID), func() {
		h.InsertNewPredecessor()
	})

	assert.Len(t, g.Blocks, n)
	assert.Equal(t, []BlockID{1}, h.Predecessors())
}

func TestSubstituteUsageCopiesArgs(t *testing.T) {
	g := NewGraph("Test::Usage()")
	x := g.NewArgument("x", Int32)
	y := g.NewArgument("y", Int32)
	r := g.NewTemporary(Int32)

	args := []ExprID{x, x}
	op := &Binary{OpBase: OpBase{Results: []ExprID{r}, Args: args}, Alu: Add}

	assert.True(t, op.SubstituteUsage(x, y))
	assert.Equal(t, []ExprID{y, y}, op.Args)
	assert.Equal(t, []ExprID{x, x}, args)
	assert.Equal(t, uint64(1), op.Version())

	assert.False(t, op.SubstituteUsage(x, y))
	assert.Equal(t, uint64(1), op.Version())

	assert.True(t, op.SubstituteDefinition(r, x))
	assert.Equal(t, x, op.Result())
}

func TestValidate(t *testing.T) {
	g := NewGraph("Test::Bad()")

	assert.Error(t, g.Validate(), "entry is not terminated")

	g.Block(g.Entry).Append(NewUnconditional(7))
	assert.Error(t, g.Validate())

	g = NewGraph("Test::Good()")
	g.Block(g.Entry).Append(NewReturn())
	assert.NoError(t, g.Validate())
}

func TestConstants(t *testing.T) {
	assert.Equal(t, int64(-1), NewInt(Int8, -1).Signed())
	assert.Equal(t, uint64(0xff), NewInt(Int8, -1).Unsigned())
	assert.Equal(t, uint64(0xffff_ffff), NewInt(Int32, -1).Bits)
	assert.Equal(t, int64(-1), NewInt(Int64, -1).Signed())
	assert.Equal(t, 1.5, NewFloat32(1.5).Float())
	assert.True(t, NewFloat64(0).IsZero())
	assert.Equal(t, 2, Float64.Words())
	assert.Equal(t, 1, Bool.Words())
}
