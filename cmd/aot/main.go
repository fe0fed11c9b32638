package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler"
	"github.com/slowlang/aot/compiler/board"
	"github.com/slowlang/aot/compiler/dump"
	"github.com/slowlang/aot/compiler/image"
	"github.com/slowlang/aot/compiler/pass"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile image into assembly or llvm ir",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("board,b", "", "board file"),
			cli.NewFlag("out,o", "-", "output file"),
			cli.NewFlag("verbosity,v", "", "tlog verbosity topics"),
		},
	}

	phasesCmd := &cli.Command{
		Name:        "phases",
		Description: "print phases in execution order",
		Action:      phasesAct,
		Flags: []*cli.Flag{
			cli.NewFlag("board,b", "", "board file"),
		},
	}

	dumpCmd := &cli.Command{
		Name:        "dump",
		Description: "print methods of an image",
		Action:      dumpAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("board,b", "", "board file"),
			cli.NewFlag("after", "", "run phases up to and including this one first"),
			cli.NewFlag("xml", false, "xml format"),
			cli.NewFlag("verbosity,v", "", "tlog verbosity topics"),
		},
	}

	roundtripCmd := &cli.Command{
		Name:        "roundtrip",
		Description: "check image survives decode and encode unchanged",
		Action:      roundtripAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "aot",
		Description: "aot compiles program images ahead of time for microcontrollers",
		Commands: []*cli.Command{
			compileCmd,
			phasesCmd,
			dumpCmd,
			roundtripCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func compileAct(c *cli.Command) (err error) {
	ctx := setup(c.String("verbosity"))

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a, c.String("board"))
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		err = output(c.String("out"), obj)
		if err != nil {
			return err
		}
	}

	return nil
}

func phasesAct(c *cli.Command) (err error) {
	ctx := setup("")

	b, err := loadBoard(c.String("board"))
	if err != nil {
		return err
	}

	ctl := compiler.NewController(b)

	err = ctl.Sort(ctx)
	if err != nil {
		return err
	}

	for i, p := range ctl.Phases() {
		state := ""
		if ctl.Disabled(p) {
			state = "\t(disabled)"
		}

		fmt.Printf("%2d  %s%s\n", i, p, state)
	}

	return nil
}

func dumpAct(c *cli.Command) (err error) {
	ctx := setup(c.String("verbosity"))

	b, err := loadBoard(c.String("board"))
	if err != nil {
		return err
	}

	for _, a := range c.Args {
		img, err := image.ReadFile(ctx, a, nil)
		if err != nil {
			return err
		}

		st, err := compiler.NewState(img.Program, b)
		if err != nil {
			return err
		}

		if after := c.String("after"); after != "" {
			ctl := compiler.NewController(b)
			ctl.Disable(pass.EmitCode)

			err = ctl.Sort(ctx)
			if err != nil {
				return err
			}

			later := false

			for _, p := range ctl.Phases() {
				if later {
					ctl.Disable(p)
				}

				later = later || p == after
			}

			if !later {
				return errors.New("unknown phase %q", after)
			}

			err = ctl.Run(ctx, st)
			if err != nil {
				return errors.Wrap(err, "image %v", a)
			}
		}

		var buf []byte

		for _, m := range st.Program.Methods {
			order := st.Layout(m.Name)

			if !c.Bool("xml") {
				buf = dump.AppendText(buf, m, order)
				buf = append(buf, '\n')

				continue
			}

			buf, err = dump.AppendXML(buf, m, order)
			if err != nil {
				return err
			}
		}

		_, err = os.Stdout.Write(buf)
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}

func roundtripAct(c *cli.Command) (err error) {
	ctx := setup("")

	for _, a := range c.Args {
		data, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read")
		}

		img, err := image.Read(bytes.NewReader(data), nil)
		if err != nil {
			return errors.Wrap(err, "image %v", a)
		}

		var buf bytes.Buffer

		err = image.Write(&buf, img)
		if err != nil {
			return errors.Wrap(err, "image %v", a)
		}

		if !bytes.Equal(data, buf.Bytes()) {
			return errors.New("image %v: re-encoded image differs (%d bytes, was %d)", a, buf.Len(), len(data))
		}

		tlog.SpanFromContext(ctx).Printw("roundtrip ok", "image", a, "id", img.ID.String(), "methods", len(img.Program.Methods))
	}

	return nil
}

func setup(verbosity string) context.Context {
	if verbosity != "" {
		tlog.SetVerbosity(verbosity)
	}

	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	return ctx
}

func loadBoard(name string) (*board.Board, error) {
	if name == "" {
		return board.Default(), nil
	}

	return board.LoadFile(name)
}

func output(name string, data []byte) error {
	if name == "" || name == "-" {
		_, err := os.Stdout.Write(data)
		if err != nil {
			return errors.Wrap(err, "write")
		}

		return nil
	}

	err := os.WriteFile(name, data, 0o644)
	if err != nil {
		return errors.Wrap(err, "write %v", name)
	}

	return nil
}
