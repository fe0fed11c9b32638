package closure

import (
	"context"

	"github.com/slowlang/aot/compiler/ir"
	"tlog.app/go/tlog"
)

type (
	// Sink receives methods and types that must be part of the image.
	Sink interface {
		AddMethod(name string)
		AddType(name string)
	}

	// Expander contributes methods the generated code depends on
	// implicitly, such as runtime helpers of a platform.
	Expander interface {
		ExpandCallsClosure(s Sink)
	}

	Result struct {
		Methods []*ir.Method
		Types   []*ir.TypeInfo

		// NoCode lists reached methods without a body.
		NoCode []string

		methods   map[string]struct{}
		types     map[string]struct{}
		allocated map[string]struct{}
	}

	MissingMethodError struct {
		Method string
		From   string
	}

	walker struct {
		p   *ir.Program
		res *Result

		queue []string
		from  map[string]string

		// virtual slots called so far, by declaring type
		slots []slotRef
		alloc []*ir.TypeInfo

		cur string
		err error
	}

	slotRef struct {
		owner string
		slot  string
	}
)

// Compute walks the program from its entry points and collects
// every method and type reachable at run time.
func Compute(ctx context.Context, p *ir.Program, expanders ...Expander) (res *Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "calls closure", "entry_points", len(p.EntryPoints))
	defer tr.Finish("err", &err)

	w := &walker{
		p: p,
		res: &Result{
			methods:   map[string]struct{}{},
			types:     map[string]struct{}{},
			allocated: map[string]struct{}{},
		},
		from: map[string]string{},
	}

	w.cur = "<entry>"

	for _, name := range p.EntryPoints {
		w.AddMethod(name)
	}

	w.cur = "<platform>"

	for _, e := range expanders {
		e.ExpandCallsClosure(w)
	}

	for _, t := range p.Types {
		if t.Allocated {
			w.allocate(t.Name)
		}
	}

	for len(w.queue) != 0 && w.err == nil {
		name := w.queue[0]
		w.queue = w.queue[1:]

		w.method(ctx, name)
	}

	if w.err != nil {
		return nil, w.err
	}

	tr.Printw("closure", "methods", len(w.res.Methods), "types", len(w.res.Types), "no_code", len(w.res.NoCode))

	return w.res, nil
}

func (w *walker) AddMethod(name string) {
	if _, ok := w.res.methods[name]; ok {
		return
	}

	w.res.methods[name] = struct{}{}
	w.from[name] = w.cur
	w.queue = append(w.queue, name)
}

func (w *walker) AddType(name string) {
	if _, ok := w.res.types[name]; ok {
		return
	}

	t := w.p.Type(name)
	if t == nil {
		return
	}

	w.res.types[name] = struct{}{}
	w.res.Types = append(w.res.Types, t)

	if t.Base != "" {
		w.AddType(t.Base)
	}

	for _, i := range t.Interfaces {
		w.AddType(i)
	}
}

func (w *walker) allocate(name string) {
	if _, ok := w.res.allocated[name]; ok {
		return
	}

	w.res.allocated[name] = struct{}{}
	w.AddType(name)

	t := w.p.Type(name)
	if t == nil {
		return
	}

	w.alloc = append(w.alloc, t)

	for _, s := range w.slots {
		w.resolve(t, s)
	}
}

func (w *walker) resolve(t *ir.TypeInfo, s slotRef) {
	if !w.p.DerivesFrom(t, s.owner) {
		return
	}

	if m := w.p.Resolve(t, s.slot); m != "" {
		w.AddMethod(m)
	}
}

func (w *walker) method(ctx context.Context, name string) {
	m := w.p.Method(name)
	if m == nil {
		w.err = &MissingMethodError{Method: name, From: w.from[name]}
		return
	}

	w.res.Methods = append(w.res.Methods, m)
	w.cur = name

	if m.Owner != "" {
		w.AddType(m.Owner)
	}

	if !m.HasCode() {
		w.res.NoCode = append(w.res.NoCode, name)
		tlog.SpanFromContext(ctx).V("closure").Printw("no code", "method", name)

		return
	}

	m.CFG.Operators(func(b *ir.BasicBlock, op ir.Operator) bool {
		switch op := op.(type) {
		case *ir.Call:
			w.call(op)
		case *ir.New:
			w.allocate(op.Class)
		}

		return true
	})
}

func (w *walker) call(op *ir.Call) {
	if op.Kind == ir.CallIndirect || op.Method == "" {
		return
	}

	w.AddMethod(op.Method)

	switch op.Kind {
	case ir.CallVirtual, ir.CallInterface:
		decl := w.p.Method(op.Method)
		if decl == nil {
			return
		}

		s := slotRef{owner: decl.Owner, slot: decl.Slot}

		for _, x := range w.slots {
			if x == s {
				return
			}
		}

		w.slots = append(w.slots, s)

		for _, t := range w.alloc {
			w.resolve(t, s)
		}
	}
}

func (r *Result) HasMethod(name string) bool {
	_, ok := r.methods[name]
	return ok
}

func (r *Result) HasType(name string) bool {
	_, ok := r.types[name]
	return ok
}

func (r *Result) Allocated(name string) bool {
	_, ok := r.allocated[name]
	return ok
}

func (e *MissingMethodError) Error() string {
	return "missing method " + e.Method + " referenced from " + e.From
}
