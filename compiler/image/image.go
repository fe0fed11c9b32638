// Package image persists a program in a compact binary form.
//
// An image is the magic, a format version, the image id, the platform name
// and an lz4 compressed transform stream of the program.
package image

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/target"
	"github.com/slowlang/aot/compiler/transform"
)

type (
	Image struct {
		ID       uuid.UUID
		Platform string
		Program  *ir.Program
	}
)

const (
	Magic   = "AOTI"
	Version = 1

	maxPlatformName = 256
)

var (
	ErrMagic   = errors.New("not an image")
	ErrVersion = errors.New("unsupported image version")
)

// New makes an image with a fresh id.
func New(prog *ir.Program, platform string) *Image {
	return &Image{
		ID:       uuid.New(),
		Platform: platform,
		Program:  prog,
	}
}

func Write(w io.Writer, img *Image) (err error) {
	if img.Program == nil {
		return errors.New("no program")
	}

	b := append([]byte{}, Magic...)
	b = binary.AppendUvarint(b, Version)
	b = append(b, img.ID[:]...)
	b = binary.AppendUvarint(b, uint64(len(img.Platform)))
	b = append(b, img.Platform...)

	_, err = w.Write(b)
	if err != nil {
		return errors.Wrap(err, "write header")
	}

	zw := lz4.NewWriter(w)

	_, err = zw.Write(transform.Marshal(img.Program))
	if err != nil {
		return errors.Wrap(err, "write payload")
	}

	err = zw.Close()
	if err != nil {
		return errors.Wrap(err, "flush payload")
	}

	return nil
}

// Read decodes an image. Registers are resolved with lookup,
// or with the image's platform if lookup is nil.
func Read(r io.Reader, lookup transform.RegisterLookup) (img *Image, err error) {
	br := bufio.NewReader(r)

	var magic [len(Magic)]byte

	_, err = io.ReadFull(br, magic[:])
	if err != nil {
		return nil, errors.Wrap(err, "read magic")
	}

	if string(magic[:]) != Magic {
		return nil, ErrMagic
	}

	ver, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errors.Wrap(err, "read version")
	}

	if ver != Version {
		return nil, errors.Wrap(ErrVersion, "version %d", ver)
	}

	img = &Image{}

	_, err = io.ReadFull(br, img.ID[:])
	if err != nil {
		return nil, errors.Wrap(err, "read id")
	}

	l, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errors.Wrap(err, "read platform")
	}

	if l > maxPlatformName {
		return nil, errors.Wrap(transform.ErrCorrupted, "platform name length %d", l)
	}

	name := make([]byte, l)

	_, err = io.ReadFull(br, name)
	if err != nil {
		return nil, errors.Wrap(err, "read platform")
	}

	img.Platform = string(name)

	if lookup == nil {
		p, err := target.New(img.Platform, target.Config{VFP: true})
		if err != nil {
			return nil, errors.Wrap(err, "image platform")
		}

		lookup = p.RegisterByMnemonic
	}

	var payload bytes.Buffer

	_, err = payload.ReadFrom(lz4.NewReader(br))
	if err != nil {
		return nil, errors.Wrap(err, "read payload")
	}

	img.Program, err = transform.UnmarshalProgram(payload.Bytes(), lookup)
	if err != nil {
		return nil, errors.Wrap(err, "decode program")
	}

	return img, nil
}

func WriteFile(ctx context.Context, name string, img *Image) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "write_image", "name", name, "id", img.ID.String())
	defer tr.Finish("err", &err)

	var buf bytes.Buffer

	err = Write(&buf, img)
	if err != nil {
		return err
	}

	err = os.WriteFile(name, buf.Bytes(), 0o644)
	if err != nil {
		return errors.Wrap(err, "write file")
	}

	tr.Printw("image written", "size", buf.Len(), "methods", len(img.Program.Methods))

	return nil
}

func ReadFile(ctx context.Context, name string, lookup transform.RegisterLookup) (img *Image, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "read_image", "name", name)
	defer tr.Finish("err", &err)

	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	defer func() {
		e := f.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close")
		}
	}()

	img, err = Read(f, lookup)
	if err != nil {
		return nil, errors.Wrap(err, "image %v", name)
	}

	tr.Printw("image read", "id", img.ID.String(), "platform", img.Platform, "methods", len(img.Program.Methods))

	return img, nil
}
