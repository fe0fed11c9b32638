package ir

import (
	"github.com/slowlang/aot/compiler/set"
)

type (
	// SpanningTree is the depth first ordering of the reachable part of a graph.
	SpanningTree struct {
		Blocks    []BlockID // preorder
		Post      []BlockID
		Ops       []Operator
		Vars      []ExprID // variables and temporaries by first appearance
		Reachable set.Bits[BlockID]
	}

	// DataFlow holds def/use chains indexed by ExprID.
	DataFlow struct {
		g *ControlFlowGraph

		Defs [][]Operator
		Uses [][]Operator
	}
)

// SpanningTree returns the cached ordering, recomputing it after mutations.
func (g *ControlFlowGraph) SpanningTree() *SpanningTree {
	if g.tree != nil && g.treeAt == g.version {
		return g.tree
	}

	g.UpdateFlowInformation()

	t := &SpanningTree{
		Reachable: set.MakeBits[BlockID](len(g.Blocks)),
	}

	seenVar := set.MakeBits[ExprID](len(g.Exprs))

	addVar := func(id ExprID) {
		switch g.Exprs[id].(type) {
		case *Variable, *Temporary:
			if seenVar.Add(id) {
				t.Vars = append(t.Vars, id)
			}
		}
	}

	for _, id := range g.Args {
		addVar(id)
	}

	var walk func(id BlockID)
	walk = func(id BlockID) {
		if !t.Reachable.Add(id) {
			return
		}

		b := g.Blocks[id]

		t.Blocks = append(t.Blocks, id)

		for _, op := range b.Ops {
			t.Ops = append(t.Ops, op)

			for _, r := range op.Base().Results {
				addVar(r)
			}

			for _, a := range op.Base().Args {
				addVar(a)
			}
		}

		for _, s := range b.succ {
			walk(s)
		}

		for _, s := range b.esucc {
			walk(s)
		}

		t.Post = append(t.Post, id)
	}

	walk(g.Entry)

	g.tree, g.treeAt = t, g.version

	return t
}

// Dominators returns immediate dominators indexed by BlockID.
// The entry dominates itself, unreachable blocks get NoBlock.
func (g *ControlFlowGraph) Dominators() []BlockID {
	if g.idom != nil && g.domAt == g.version {
		return g.idom
	}

	t := g.SpanningTree()

	order := make([]int, len(g.Blocks)) // postorder number
	for i, id := range t.Post {
		order[id] = i
	}

	idom := make([]BlockID, len(g.Blocks))
	for i := range idom {
		idom[i] = NoBlock
	}

	idom[g.Entry] = g.Entry

	intersect := func(a, b BlockID) BlockID {
		for a != b {
			for order[a] < order[b] {
				a = idom[a]
			}

			for order[b] < order[a] {
				b = idom[b]
			}
		}

		return a
	}

	for changed := true; changed; {
		changed = false

		for i := len(t.Post) - 1; i >= 0; i-- {
			id := t.Post[i]
			if id == g.Entry {
				continue
			}

			n := NoBlock

			for _, p := range g.Blocks[id].pred {
				if !t.Reachable.IsSet(p) || idom[p] == NoBlock {
					continue
				}

				if n == NoBlock {
					n = p
				} else {
					n = intersect(p, n)
				}
			}

			if idom[id] != n {
				idom[id] = n
				changed = true
			}
		}
	}

	g.idom, g.domAt = idom, g.version

	return idom
}

// Dominates reports whether a dominates b.
func (g *ControlFlowGraph) Dominates(a, b BlockID) bool {
	idom := g.Dominators()

	for b != NoBlock {
		if a == b {
			return true
		}

		if idom[b] == b {
			return false
		}

		b = idom[b]
	}

	return false
}

// DataFlow returns the cached def/use chains.
func (g *ControlFlowGraph) DataFlow() *DataFlow {
	if g.df != nil && g.dfAt == g.version {
		return g.df
	}

	df := &DataFlow{
		g:    g,
		Defs: make([][]Operator, len(g.Exprs)),
		Uses: make([][]Operator, len(g.Exprs)),
	}

	g.Operators(func(_ *BasicBlock, op Operator) bool {
		for _, r := range op.Base().Results {
			df.Defs[r] = append(df.Defs[r], op)
		}

		for _, a := range op.Base().Args {
			df.Uses[a] = append(df.Uses[a], op)
		}

		return true
	})

	g.df, g.dfAt = df, g.version

	return df
}

func (df *DataFlow) Graph() *ControlFlowGraph { return df.g }

// SingleDefinition returns the only operator defining id, if there is one.
// Arguments are defined on entry, so any operator writing one is a second definition.
func (df *DataFlow) SingleDefinition(id ExprID) Operator {
	if int(id) >= len(df.Defs) || len(df.Defs[id]) != 1 {
		return nil
	}

	for _, a := range df.g.Args {
		if a == id {
			return nil
		}
	}

	return df.Defs[id][0]
}

// ConstantOrigin follows single definition assignment chains from id to a constant.
func (df *DataFlow) ConstantOrigin(id ExprID) (*Constant, bool) {
	visited := set.MakeBits[ExprID](len(df.g.Exprs))

	for visited.Add(id) {
		if c, ok := df.g.Exprs[id].(*Constant); ok {
			return c, true
		}

		a, ok := df.SingleDefinition(id).(*Assign)
		if !ok || len(a.Args) != 1 {
			return nil, false
		}

		id = a.Args[0]
	}

	return nil, false
}

// Stale reports whether the graph was mutated after the chains were built.
func (df *DataFlow) Stale() bool {
	return df.g.dfAt != df.g.version || df.g.df != df
}
