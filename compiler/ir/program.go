package ir

import "sort"

type (
	MethodFlags uint32

	Method struct {
		Name   string // unique key, Owner::Name(sig)
		Owner  string
		Return Type
		Params []Type // this plus arguments
		Flags  MethodFlags

		// Slot is the virtual slot the method implements or introduces.
		Slot string

		// CFG is nil for methods with no convertible body.
		CFG *ControlFlowGraph
	}

	Override struct {
		Slot   string
		Method string
	}

	TypeInfo struct {
		Name       string
		Base       string
		Interfaces []string
		Overrides  []Override // sorted by Slot
		Allocated  bool
	}

	Program struct {
		Methods     []*Method
		Types       []*TypeInfo
		EntryPoints []string
	}
)

const (
	MethodStatic MethodFlags = 1 << iota
	MethodVirtual
	MethodAbstract
	MethodEntryPoint
)

func (m *Method) HasCode() bool { return m.CFG != nil }

func (m *Method) Is(f MethodFlags) bool { return m.Flags&f == f }

func (p *Program) Method(name string) *Method {
	for _, m := range p.Methods {
		if m.Name == name {
			return m
		}
	}

	return nil
}

func (p *Program) Type(name string) *TypeInfo {
	for _, t := range p.Types {
		if t.Name == name {
			return t
		}
	}

	return nil
}

// DerivesFrom reports whether t is base or inherits from or implements it.
func (p *Program) DerivesFrom(t *TypeInfo, base string) bool {
	for seen := 0; t != nil && seen <= len(p.Types); seen++ {
		if t.Name == base {
			return true
		}

		for _, i := range t.Interfaces {
			if i == base {
				return true
			}
		}

		t = p.Type(t.Base)
	}

	return false
}

// Resolve finds the implementation of slot for instances of t.
func (p *Program) Resolve(t *TypeInfo, slot string) string {
	for seen := 0; t != nil && seen <= len(p.Types); seen++ {
		if m := t.Override(slot); m != "" {
			return m
		}

		t = p.Type(t.Base)
	}

	return ""
}

func (t *TypeInfo) Override(slot string) string {
	i := sort.Search(len(t.Overrides), func(i int) bool { return t.Overrides[i].Slot >= slot })
	if i < len(t.Overrides) && t.Overrides[i].Slot == slot {
		return t.Overrides[i].Method
	}

	return ""
}

func (t *TypeInfo) SetOverride(slot, method string) {
	i := sort.Search(len(t.Overrides), func(i int) bool { return t.Overrides[i].Slot >= slot })
	if i < len(t.Overrides) && t.Overrides[i].Slot == slot {
		t.Overrides[i].Method = method
		return
	}

	t.Overrides = append(t.Overrides, Override{})
	copy(t.Overrides[i+1:], t.Overrides[i:])
	t.Overrides[i] = Override{Slot: slot, Method: method}
}

func (m *Method) ApplyTransformation(t Transformer) {
	t.Push(m)
	defer t.Pop()

	t.String(&m.Name)
	t.String(&m.Owner)
	m.Return.ApplyTransformation(t)
	TransformSlice(t, &m.Params, func(t Transformer, x *Type) { x.ApplyTransformation(t) })
	TransformEnum(t, &m.Flags)
	t.String(&m.Slot)
	t.Graph(&m.CFG)
}

func (x *TypeInfo) ApplyTransformation(t Transformer) {
	t.Push(x)
	defer t.Pop()

	t.String(&x.Name)
	t.String(&x.Base)
	TransformSlice(t, &x.Interfaces, Transformer.String)
	TransformSlice(t, &x.Overrides, func(t Transformer, o *Override) {
		t.String(&o.Slot)
		t.String(&o.Method)
	})
	t.Bool(&x.Allocated)
}

func (p *Program) ApplyTransformation(t Transformer) {
	t.Push(p)
	defer t.Pop()

	TransformSlice(t, &p.Methods, func(t Transformer, m **Method) {
		if t.Copying() {
			*m = ownedCopy(*m)
		}

		(*m).ApplyTransformation(t)
	})

	TransformSlice(t, &p.Types, func(t Transformer, x **TypeInfo) {
		if t.Copying() {
			*x = ownedCopy(*x)
		}

		(*x).ApplyTransformation(t)
	})

	TransformSlice(t, &p.EntryPoints, Transformer.String)
}

// ownedCopy returns a copy of *x, or a new zero value for nil.
func ownedCopy[T any](x *T) *T {
	r := new(T)

	if x != nil {
		*r = *x
	}

	return r
}
