package back

import (
	"context"
	"strings"
	"unicode"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/pipeline"
)

type (
	// Backend turns lowered methods into the final artifact.
	Backend interface {
		Name() string
		Emit(ctx context.Context, st *pipeline.State) ([]byte, error)
	}

	// UnimplementedOperatorError is returned for operators a back end
	// has no translation for.
	UnimplementedOperatorError struct {
		Backend string
		Method  string
		Op      string
	}
)

const (
	NameAsm  = "asm"
	NameLLVM = "llvm"
)

func New(name string) (Backend, error) {
	switch name {
	case NameAsm, "":
		return Asm{}, nil
	case NameLLVM:
		return LLVM{}, nil
	default:
		return nil, errors.New("unknown back end %q", name)
	}
}

// unimplemented returns an error in strict mode and only logs a warning otherwise.
func unimplemented(ctx context.Context, st *pipeline.State, backend string, m *ir.Method, op ir.Operator) error {
	err := &UnimplementedOperatorError{
		Backend: backend,
		Method:  m.Name,
		Op:      opName(op),
	}

	if st.Strict {
		return err
	}

	tlog.SpanFromContext(ctx).Printw("warning: operator skipped", "backend", backend, "method", m.Name, "op", err.Op)

	return nil
}

// blockOrder is the computed layout, or depth first order if there is none.
func blockOrder(st *pipeline.State, m *ir.Method) []ir.BlockID {
	if l := st.Layout(m.Name); l != nil {
		return l
	}

	return m.CFG.SpanningTree().Blocks
}

func methods(st *pipeline.State) []*ir.Method {
	var r []*ir.Method

	for _, m := range st.Program.Methods {
		if m.HasCode() {
			r = append(r, m)
		}
	}

	return r
}

// Symbol mangles a method name into an assembler and linker friendly symbol.
func Symbol(name string) string {
	var b strings.Builder

	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			continue
		}

		b.WriteByte('_')
	}

	return b.String()
}

func opName(op ir.Operator) string {
	switch op := op.(type) {
	case *ir.Assign:
		return "assign"
	case *ir.Binary:
		return "binary." + op.Alu.String()
	case *ir.Unary:
		return "unary." + op.Alu.String()
	case *ir.Compare:
		return "compare"
	case *ir.Convert:
		return "convert." + op.From.String() + "." + op.To.String()
	case *ir.Load:
		return "load"
	case *ir.Store:
		return "store"
	case *ir.Call:
		return "call." + op.Kind.String()
	case *ir.New:
		return "new"
	case *ir.Unconditional:
		return "unconditional"
	case *ir.BinaryConditional:
		return "binary_conditional"
	case *ir.CompareConditional:
		return "compare_conditional"
	case *ir.MultiWay:
		return "multiway"
	case *ir.Return:
		return "return"
	case *ir.Leave:
		return "leave"
	case *ir.Rethrow:
		return "rethrow"
	case *ir.ResumeUnwind:
		return "resume_unwind"
	case *ir.Dead:
		return "dead"
	default:
		return "unknown"
	}
}

func (e *UnimplementedOperatorError) Error() string {
	return e.Backend + ": " + e.Method + ": unimplemented operator " + e.Op
}
