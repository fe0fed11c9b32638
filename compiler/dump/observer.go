package dump

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/back"
	"github.com/slowlang/aot/compiler/pipeline"
)

type (
	// Observer writes dumps of every method after the selected phases.
	// Each phase gets its own directory under Dir.
	Observer struct {
		Dir string

		// Phases to dump after. Empty means all.
		Phases []string

		XML bool
	}
)

// Observe is a pipeline.ObserverFunc.
func (o *Observer) Observe(ctx context.Context, ev pipeline.Event) (err error) {
	if ev.Stage != pipeline.After || !o.wants(ev.Phase) {
		return nil
	}

	dir := filepath.Join(o.Dir, string(hfmt.Appendf(nil, "%02d_%s", ev.Index, ev.Phase)))

	files, err := o.write(dir, ev.State)
	if err != nil {
		return err
	}

	tlog.SpanFromContext(ctx).V("dump").Printw("dumped", "phase", ev.Phase, "dir", dir, "files", files)

	return nil
}

// Failure is a pipeline.FailureFunc.
// It dumps the state left by the last completed phase into failed_<phase>.
// The phase filter does not apply.
func (o *Observer) Failure(ctx context.Context, last string, st *pipeline.State) {
	if last == "" {
		last = "start"
	}

	dir := filepath.Join(o.Dir, "failed_"+last)

	files, err := o.write(dir, st)
	if err != nil {
		tlog.SpanFromContext(ctx).Printw("failure dump", "dir", dir, "err", err)
		return
	}

	tlog.SpanFromContext(ctx).Printw("dumped failed state", "last_completed", last, "dir", dir, "files", files)
}

func (o *Observer) write(dir string, st *pipeline.State) (files int, err error) {
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return 0, errors.Wrap(err, "mkdir")
	}

	for _, m := range st.Program.Methods {
		if !m.HasCode() {
			continue
		}

		order := st.Layout(m.Name)
		base := filepath.Join(dir, back.Symbol(m.Name))

		err = os.WriteFile(base+".txt", AppendText(nil, m, order), 0o644)
		if err != nil {
			return files, errors.Wrap(err, "write text")
		}

		files++

		if !o.XML {
			continue
		}

		x, err := AppendXML(nil, m, order)
		if err != nil {
			return files, err
		}

		err = os.WriteFile(base+".xml", x, 0o644)
		if err != nil {
			return files, errors.Wrap(err, "write xml")
		}

		files++
	}

	return files, nil
}

func (o *Observer) wants(phase string) bool {
	if len(o.Phases) == 0 {
		return true
	}

	for _, p := range o.Phases {
		if p == phase {
			return true
		}
	}

	return false
}
