package transform

import (
	"encoding/binary"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
)

type (
	Transformable interface {
		ApplyTransformation(t ir.Transformer)
	}

	// Writer serializes IR objects. The encoding is a plain sequence
	// of varints and length prefixed strings in walk order.
	Writer struct {
		path

		b []byte
	}
)

func NewWriter(b []byte) *Writer {
	return &Writer{b: b}
}

// Marshal serializes x.
func Marshal(x Transformable) []byte {
	w := NewWriter(nil)
	x.ApplyTransformation(w)

	return w.Bytes()
}

func MarshalGraph(g *ir.ControlFlowGraph) []byte {
	w := NewWriter(nil)
	w.Graph(&g)

	return w.Bytes()
}

func (w *Writer) Bytes() []byte { return w.b }

func (w *Writer) Copying() bool { return false }

func (w *Writer) Bool(v *bool) {
	if *v {
		w.b = append(w.b, 1)
	} else {
		w.b = append(w.b, 0)
	}
}

func (w *Writer) Int(v *int) { w.b = binary.AppendVarint(w.b, int64(*v)) }

func (w *Writer) Uint64(v *uint64) { w.b = binary.AppendUvarint(w.b, *v) }

func (w *Writer) Len(n *int) { w.b = binary.AppendUvarint(w.b, uint64(*n)) }

func (w *Writer) String(v *string) {
	w.b = binary.AppendUvarint(w.b, uint64(len(*v)))
	w.b = append(w.b, *v...)
}

func (w *Writer) Block(v *ir.BlockID) { w.b = binary.AppendVarint(w.b, int64(*v)) }

func (w *Writer) Expr(v *ir.ExprID) { w.b = binary.AppendVarint(w.b, int64(*v)) }

func (w *Writer) Register(v **machine.RegisterDescriptor) {
	var name string

	if *v != nil {
		name = (*v).Mnemonic
	}

	w.String(&name)
}

func (w *Writer) Expression(v *ir.Expr) {
	if *v == nil {
		w.b = append(w.b, byte(ir.KindInvalid))
		return
	}

	w.b = append(w.b, byte(ir.ExprKind(*v)))
	(*v).ApplyTransformation(w)
}

func (w *Writer) Operator(v *ir.Operator) {
	w.b = append(w.b, byte(ir.OperatorKind(*v)))
	(*v).ApplyTransformation(w)
}

func (w *Writer) Annotation(v *ir.Annotation) {
	w.b = append(w.b, byte(ir.AnnotationKind(*v)))
	(*v).ApplyTransformation(w)
}

func (w *Writer) BasicBlock(v **ir.BasicBlock) {
	(*v).ApplyTransformation(w)
}

func (w *Writer) Graph(v **ir.ControlFlowGraph) {
	ok := *v != nil
	w.Bool(&ok)

	if ok {
		(*v).ApplyTransformation(w)
	}
}
