package pipeline

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

type (
	Phase interface {
		Name() string
		Run(ctx context.Context, st *State) error
	}

	// Order constrains where a phase goes relative to others, by name.
	Order struct {
		After  []string
		Before []string
	}

	Stage uint8

	Event struct {
		Phase string
		Index int
		Stage Stage
		State *State
	}

	ObserverFunc func(ctx context.Context, ev Event) error

	FailureFunc func(ctx context.Context, lastCompleted string, st *State)

	Controller struct {
		phases []entry
		byName map[string]int

		disabled map[string]bool

		observers []observer
		failure   []FailureFunc

		order []int
		pos   []int
	}

	entry struct {
		Phase
		Order
	}

	observer struct {
		f  ObserverFunc
		pc loc.PC
	}

	// ready phases ordered by registration index
	queue struct {
		heap.Heap[int]
	}
)

const (
	Before Stage = iota
	After
)

var ErrLoop = errors.New("loop in phase ordering constraints")

func New() *Controller {
	return &Controller{
		byName:   map[string]int{},
		disabled: map[string]bool{},
	}
}

// Add registers a phase. Registration order breaks ordering ties.
func (c *Controller) Add(p Phase, o Order) {
	if _, ok := c.byName[p.Name()]; ok {
		panic("duplicate phase " + p.Name())
	}

	c.byName[p.Name()] = len(c.phases)
	c.phases = append(c.phases, entry{Phase: p, Order: o})
	c.order = nil
}

// Disable skips the named phases. They still take part in ordering.
func (c *Controller) Disable(names ...string) {
	for _, n := range names {
		c.disabled[n] = true
	}
}

func (c *Controller) Disabled(name string) bool { return c.disabled[name] }

// Observe registers f to be called before and after every phase.
func (c *Controller) Observe(f ObserverFunc) {
	c.observers = append(c.observers, observer{f: f, pc: loc.Caller(1)})
}

// OnFailure registers f to be called once when a phase fails.
func (c *Controller) OnFailure(f FailureFunc) {
	c.failure = append(c.failure, f)
}

// Sort computes the execution order.
func (c *Controller) Sort(ctx context.Context) (err error) {
	if c.order != nil {
		return nil
	}

	tr := tlog.SpanFromContext(ctx)

	n := len(c.phases)
	fwd := make(map[int][]int, n)
	bwd := make(map[int][]int, n)

	edge := func(from, to int) {
		fwd[from] = append(fwd[from], to)
		bwd[to] = append(bwd[to], from)
	}

	lookup := func(p entry, name string) (int, bool) {
		i, ok := c.byName[name]
		if !ok {
			tr.Printw("unknown phase in ordering constraint", "phase", p.Name(), "ref", name)
		}

		return i, ok
	}

	for i, p := range c.phases {
		for _, a := range p.After {
			if j, ok := lookup(p, a); ok {
				edge(j, i)
			}
		}

		for _, b := range p.Before {
			if j, ok := lookup(p, b); ok {
				edge(i, j)
			}
		}
	}

	indeg := make([]int, n)
	for i := range indeg {
		indeg[i] = len(bwd[i])
	}

	q := queue{Heap: heap.Heap[int]{Less: func(d []int, i, j int) bool { return d[i] < d[j] }}}

	for i, d := range indeg {
		if d == 0 {
			q.Push(i)
		}
	}

	order := make([]int, 0, n)

	for q.Len() != 0 {
		i := q.Pop()
		order = append(order, i)

		for _, j := range fwd[i] {
			indeg[j]--

			if indeg[j] == 0 {
				q.Push(j)
			}
		}
	}

	if len(order) != n {
		var loop []string

		for i, d := range indeg {
			if d > 0 {
				loop = append(loop, c.phases[i].Name())
			}
		}

		return errors.Wrap(ErrLoop, "phases %v", loop)
	}

	c.order = order
	c.pos = make([]int, n)

	for p, i := range order {
		c.pos[i] = p
	}

	tr.Printw("phase ordering", "phases", c.Phases())

	return nil
}

// Phases returns phase names in execution order, or nil before Sort.
func (c *Controller) Phases() []string {
	if c.order == nil {
		return nil
	}

	r := make([]string, len(c.order))

	for p, i := range c.order {
		r[p] = c.phases[i].Name()
	}

	return r
}

// PhaseIndex returns the position of the phase in execution order, -1 if unknown.
func (c *Controller) PhaseIndex(name string) int {
	i, ok := c.byName[name]
	if !ok || c.order == nil {
		return -1
	}

	return c.pos[i]
}

// Run executes all phases in order. The first error stops it.
func (c *Controller) Run(ctx context.Context, st *State) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "pipeline", "phases", len(c.phases))
	defer tr.Finish("err", &err)

	err = c.Sort(ctx)
	if err != nil {
		return err
	}

	last := ""

	for p, i := range c.order {
		ph := c.phases[i]
		name := ph.Name()

		if c.disabled[name] {
			tr.Printw("phase disabled", "phase", name, "index", p)
			continue
		}

		c.notify(ctx, Event{Phase: name, Index: p, Stage: Before, State: st})

		err = c.run(ctx, ph, st)
		if err != nil {
			for _, f := range c.failure {
				f(ctx, last, st)
			}

			return errors.Wrap(err, "phase %v", name)
		}

		last = name

		c.notify(ctx, Event{Phase: name, Index: p, Stage: After, State: st})
	}

	return nil
}

func (c *Controller) run(ctx context.Context, ph Phase, st *State) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "phase", "name", ph.Name())
	defer tr.Finish("err", &err)

	return ph.Run(ctx, st)
}

func (c *Controller) notify(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		err := o.f(ctx, ev)
		if err != nil {
			tlog.SpanFromContext(ctx).Printw("observer failed", "observer", o.pc, "phase", ev.Phase, "stage", ev.Stage, "err", err)
		}
	}
}

func (s Stage) String() string {
	if s == After {
		return "after"
	}

	return "before"
}
