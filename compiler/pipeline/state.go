package pipeline

import (
	"sync"

	"github.com/slowlang/aot/compiler/closure"
	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/target"
)

type (
	// State is everything phases share during one compilation.
	State struct {
		Program  *ir.Program
		Platform target.Platform

		// Workers > 1 lets per-method phases run in parallel.
		Workers int

		Backend string
		Strict  bool

		Closure *closure.Result

		Output []byte

		mu     sync.Mutex
		frames map[string]*Frame
		layout map[string][]ir.BlockID
	}

	// Frame is the lowered view of a method's activation.
	Frame struct {
		CallState target.CallState

		// Args holds the incoming storage of each this-plus-arguments value.
		Args   [][]ir.ExprID
		Result []ir.ExprID

		// Slots maps variables and temporaries to their stack location.
		Slots map[ir.ExprID]ir.ExprID

		// OutWords is the largest outgoing argument area of any call.
		OutWords int
	}
)

func (s *State) SetFrame(method string, f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames == nil {
		s.frames = map[string]*Frame{}
	}

	s.frames[method] = f
}

// Frame returns the frame of a method, nil before calling convention lowering.
func (s *State) Frame(method string) *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frames[method]
}

// SetLayout records the emission order of a method's blocks.
func (s *State) SetLayout(method string, order []ir.BlockID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.layout == nil {
		s.layout = map[string][]ir.BlockID{}
	}

	s.layout[method] = order
}

// Layout returns the emission order, or nil if none was computed.
func (s *State) Layout(method string) []ir.BlockID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.layout[method]
}

// Slot returns the storage of id: its stack slot if it has one, id otherwise.
func (f *Frame) Slot(id ir.ExprID) ir.ExprID {
	if s, ok := f.Slots[id]; ok {
		return s
	}

	return id
}
