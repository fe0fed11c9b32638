package compiler

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/board"
	"github.com/slowlang/aot/compiler/dump"
	"github.com/slowlang/aot/compiler/importer"
	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/pass"
	"github.com/slowlang/aot/compiler/pipeline"
	"github.com/slowlang/aot/compiler/target"
	"github.com/slowlang/aot/compiler/transform"

	_ "github.com/slowlang/aot/compiler/target/arm"
)

// CompileFile compiles an image for the board in boardFile.
// Empty boardFile means the default board.
func CompileFile(ctx context.Context, imageFile, boardFile string) (obj []byte, err error) {
	b := board.Default()

	if boardFile != "" {
		b, err = board.LoadFile(boardFile)
		if err != nil {
			return nil, err
		}
	}

	imp := importer.NewImage(imageFile)

	img, err := imp.Image(ctx)
	if err != nil {
		return nil, err
	}

	if img.Platform != b.Platform.Name {
		tlog.SpanFromContext(ctx).Printw("warning: image platform differs from board", "image", img.Platform, "board", b.Platform.Name)
	}

	return Compile(ctx, img.Program, b)
}

// Compile runs all phases over a copy of prog and returns the emitted code.
func Compile(ctx context.Context, prog *ir.Program, b *board.Board) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "board", b.Name, "platform", b.Platform.Name, "backend", b.Backend)
	defer tr.Finish("err", &err)

	st, err := NewState(prog, b)
	if err != nil {
		return nil, err
	}

	err = NewController(b).Run(ctx, st)
	if err != nil {
		return nil, err
	}

	tr.Printw("compiled", "methods", len(st.Program.Methods), "size", len(st.Output))

	return st.Output, nil
}

// NewState prepares the shared compilation state.
// The program is cloned since phases rewrite it in place.
func NewState(prog *ir.Program, b *board.Board) (*pipeline.State, error) {
	if prog == nil {
		return nil, errors.New("no program")
	}

	cfg, err := b.TargetConfig()
	if err != nil {
		return nil, errors.Wrap(err, "board %v", b.Name)
	}

	p, err := target.New(b.Platform.Name, cfg)
	if err != nil {
		return nil, err
	}

	prog = transform.CloneProgram(prog)
	prog.EntryPoints = append([]string(nil), prog.EntryPoints...)

	for _, e := range b.EntryPoints {
		if !contains(prog.EntryPoints, e) {
			prog.EntryPoints = append(prog.EntryPoints, e)
		}
	}

	return &pipeline.State{
		Program:  prog,
		Platform: p,
		Workers:  b.Workers,
		Backend:  b.Backend,
		Strict:   b.Strict,
	}, nil
}

// NewController registers the standard phases configured by b.
func NewController(b *board.Board) *pipeline.Controller {
	c := pipeline.New()
	pass.Register(c)

	c.Disable(b.DisabledPhases...)

	c.OnFailure(func(ctx context.Context, last string, st *pipeline.State) {
		tlog.SpanFromContext(ctx).Printw("compilation failed", "last_completed", last)
	})

	if b.Dump.Dir != "" {
		o := &dump.Observer{
			Dir:    b.Dump.Dir,
			Phases: b.Dump.Phases,
			XML:    b.Dump.XML,
		}

		c.Observe(o.Observe)
		c.OnFailure(o.Failure)
	}

	return c
}

func contains(l []string, s string) bool {
	for _, x := range l {
		if x == s {
			return true
		}
	}

	return false
}
