package transform

import (
	"encoding/binary"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
	"tlog.app/go/errors"
)

type (
	RegisterLookup func(mnemonic string) *machine.RegisterDescriptor

	// Reader rebuilds IR objects written by Writer.
	// The first error stops decoding; later calls return zero values.
	Reader struct {
		path

		b []byte
		i int

		lookup RegisterLookup

		err error
	}
)

var ErrCorrupted = errors.New("corrupted ir stream")

func NewReader(b []byte, lookup RegisterLookup) *Reader {
	return &Reader{b: b, lookup: lookup}
}

// Unmarshal fills x from b. All bytes must be consumed.
func Unmarshal(b []byte, lookup RegisterLookup, x Transformable) error {
	r := NewReader(b, lookup)
	x.ApplyTransformation(r)

	return r.Finish()
}

func UnmarshalGraph(b []byte, lookup RegisterLookup) (*ir.ControlFlowGraph, error) {
	var g *ir.ControlFlowGraph

	r := NewReader(b, lookup)
	r.Graph(&g)

	if err := r.Finish(); err != nil {
		return nil, err
	}

	return g, nil
}

func UnmarshalProgram(b []byte, lookup RegisterLookup) (*ir.Program, error) {
	p := &ir.Program{}

	if err := Unmarshal(b, lookup, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *Reader) Err() error { return r.err }

// Finish reports the first error or unread trailing bytes.
func (r *Reader) Finish() error {
	if r.err == nil && r.i != len(r.b) {
		r.fail(errors.New("%d trailing bytes", len(r.b)-r.i))
	}

	return r.err
}

func (r *Reader) fail(err error) {
	if r.err != nil {
		return
	}

	r.err = errors.Wrap(err, "at %v (offset %d)", r.Path(), r.i)
}

func (r *Reader) Copying() bool { return true }

func (r *Reader) byte() byte {
	if r.err != nil {
		return 0
	}

	if r.i >= len(r.b) {
		r.fail(ErrCorrupted)
		return 0
	}

	c := r.b[r.i]
	r.i++

	return c
}

func (r *Reader) varint() int64 {
	if r.err != nil {
		return 0
	}

	x, n := binary.Varint(r.b[r.i:])
	if n <= 0 {
		r.fail(ErrCorrupted)
		return 0
	}

	r.i += n

	return x
}

func (r *Reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}

	x, n := binary.Uvarint(r.b[r.i:])
	if n <= 0 {
		r.fail(ErrCorrupted)
		return 0
	}

	r.i += n

	return x
}

func (r *Reader) Bool(v *bool) {
	switch r.byte() {
	case 0:
		*v = false
	case 1:
		*v = true
	default:
		r.fail(ErrCorrupted)
	}
}

func (r *Reader) Int(v *int) { *v = int(r.varint()) }

func (r *Reader) Uint64(v *uint64) { *v = r.uvarint() }

// Len reads a slice length. Every element takes at least one byte.
func (r *Reader) Len(n *int) {
	x := r.uvarint()

	if x > uint64(len(r.b)-r.i) {
		r.fail(errors.Wrap(ErrCorrupted, "length %d", x))
		x = 0
	}

	*n = int(x)
}

func (r *Reader) String(v *string) {
	var n int
	r.Len(&n)

	if r.err != nil {
		*v = ""
		return
	}

	*v = string(r.b[r.i : r.i+n])
	r.i += n
}

func (r *Reader) Block(v *ir.BlockID) { *v = ir.BlockID(r.varint()) }

func (r *Reader) Expr(v *ir.ExprID) { *v = ir.ExprID(r.varint()) }

func (r *Reader) Register(v **machine.RegisterDescriptor) {
	var name string
	r.String(&name)

	*v = nil

	if name == "" || r.err != nil {
		return
	}

	if r.lookup != nil {
		*v = r.lookup(name)
	}

	if *v == nil {
		r.fail(errors.New("unknown register %q", name))
	}
}

func (r *Reader) Expression(v *ir.Expr) {
	k := ir.Kind(r.byte())
	*v = nil

	if r.err != nil || k == ir.KindInvalid {
		return
	}

	x := ir.NewExpr(k)
	if x == nil {
		r.fail(errors.New("unknown expression kind %d", k))
		return
	}

	x.ApplyTransformation(r)
	*v = x
}

func (r *Reader) Operator(v *ir.Operator) {
	k := ir.Kind(r.byte())
	*v = nil

	if r.err != nil {
		return
	}

	op := ir.NewOperator(k)
	if op == nil {
		r.fail(errors.New("unknown operator kind %d", k))
		return
	}

	op.ApplyTransformation(r)
	*v = op
}

func (r *Reader) Annotation(v *ir.Annotation) {
	k := ir.Kind(r.byte())
	*v = nil

	if r.err != nil {
		return
	}

	a := ir.NewAnnotation(k)
	if a == nil {
		r.fail(errors.New("unknown annotation kind %d", k))
		return
	}

	a.ApplyTransformation(r)
	*v = a
}

func (r *Reader) BasicBlock(v **ir.BasicBlock) {
	b := &ir.BasicBlock{}
	b.ApplyTransformation(r)

	*v = b
}

func (r *Reader) Graph(v **ir.ControlFlowGraph) {
	var ok bool
	r.Bool(&ok)

	*v = nil

	if !ok || r.err != nil {
		return
	}

	g := &ir.ControlFlowGraph{}
	g.ApplyTransformation(r)

	if r.err != nil {
		return
	}

	for i, b := range g.Blocks {
		if b.ID != ir.BlockID(i) {
			r.fail(errors.New("block %d has id %d", i, b.ID))
			return
		}
	}

	g.Relink()

	if err := g.Validate(); err != nil {
		r.fail(err)
		return
	}

	*v = g
}
