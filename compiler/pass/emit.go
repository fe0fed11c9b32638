package pass

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/back"
	"github.com/slowlang/aot/compiler/pipeline"
)

func emitCode(ctx context.Context, st *pipeline.State) (err error) {
	be, err := back.New(st.Backend)
	if err != nil {
		return err
	}

	st.Output, err = be.Emit(ctx, st)
	if err != nil {
		return err
	}

	tlog.SpanFromContext(ctx).Printw("code emitted", "backend", be.Name(), "size", len(st.Output))

	return nil
}
