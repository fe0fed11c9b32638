// Package importer supplies programs to the compiler.
package importer

import (
	"context"
	"sync"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/image"
	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/transform"
)

type (
	Importer interface {
		Program(ctx context.Context) (*ir.Program, error)
		Method(ctx context.Context, name string) (*ir.Method, error)
	}

	// Static serves an in-memory program.
	Static struct {
		Prog *ir.Program
	}

	// ImageImporter loads a persisted image on first use.
	ImageImporter struct {
		Path   string
		Lookup transform.RegisterLookup

		mu  sync.Mutex
		img *image.Image
	}
)

var (
	// ErrNoCode is returned for methods that exist but have no body to compile.
	ErrNoCode = errors.New("method has no code")

	ErrNotFound = errors.New("method not found")
)

func NewStatic(p *ir.Program) Static { return Static{Prog: p} }

func (s Static) Program(ctx context.Context) (*ir.Program, error) {
	if s.Prog == nil {
		return nil, errors.New("no program")
	}

	return s.Prog, nil
}

func (s Static) Method(ctx context.Context, name string) (*ir.Method, error) {
	if s.Prog == nil {
		return nil, errors.New("no program")
	}

	return method(s.Prog, name)
}

func NewImage(path string) *ImageImporter {
	return &ImageImporter{Path: path}
}

func (i *ImageImporter) Program(ctx context.Context) (*ir.Program, error) {
	img, err := i.Image(ctx)
	if err != nil {
		return nil, err
	}

	return img.Program, nil
}

func (i *ImageImporter) Method(ctx context.Context, name string) (*ir.Method, error) {
	img, err := i.Image(ctx)
	if err != nil {
		return nil, err
	}

	return method(img.Program, name)
}

// Image returns the loaded image. Failed loads are retried on the next call.
func (i *ImageImporter) Image(ctx context.Context) (*image.Image, error) {
	defer i.mu.Unlock()
	i.mu.Lock()

	if i.img != nil {
		return i.img, nil
	}

	img, err := image.ReadFile(ctx, i.Path, i.Lookup)
	if err != nil {
		return nil, err
	}

	tlog.SpanFromContext(ctx).V("importer").Printw("image loaded", "path", i.Path, "platform", img.Platform)

	i.img = img

	return img, nil
}

func method(p *ir.Program, name string) (*ir.Method, error) {
	m := p.Method(name)
	if m == nil {
		return nil, errors.Wrap(ErrNotFound, "%v", name)
	}

	if !m.HasCode() {
		return m, errors.Wrap(ErrNoCode, "%v", name)
	}

	return m, nil
}
