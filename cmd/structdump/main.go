// Diagnostic tool for dumping a struct chunk of a binary file
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Giulio2002/filestruct"
)

type options struct {
	path   string
	offset int64
	size   int64
	width  int
	index  int
	order  filestruct.Order
}

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.WithError(err).Error("invalid arguments")
		os.Exit(2)
	}

	if err := run(opts, os.Stdout, log); err != nil {
		log.WithError(err).Error("structdump failed")
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("structdump", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: structdump [flags] <file>")
		fs.PrintDefaults()
	}

	opts := &options{}
	var order string
	fs.Int64Var(&opts.offset, "offset", 0, "offset of the chunk in the file")
	fs.Int64Var(&opts.size, "size", -1, "size of the chunk in bytes (-1: up to the end of the file)")
	fs.IntVar(&opts.width, "width", 0, "decode words of 1, 2, 4 or 8 bytes")
	fs.IntVar(&opts.index, "index", -1, "treat the chunk as an array of -size records and dump this element")
	fs.StringVar(&order, "order", "native", "byte order of the words: big, little or native")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one file")
	}
	opts.path = fs.Arg(0)

	o, err := filestruct.ParseOrder(order)
	if err != nil {
		return nil, errors.Wrap(err, "-order")
	}
	opts.order = o

	switch opts.width {
	case 0, 1, 2, 4, 8:
	default:
		return nil, errors.Errorf("-width must be 1, 2, 4 or 8, got %d", opts.width)
	}
	return opts, nil
}

func run(opts *options, w io.Writer, log logrus.FieldLogger) (err error) {
	f, err := filestruct.Open(opts.path, filestruct.WithLogger(log))
	if err != nil {
		return errors.Wrapf(err, "open %s", opts.path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.WithError(cerr).Warn("close failed")
		}
	}()

	size := opts.size
	if size < 0 {
		size = f.Size() - opts.offset
	}

	var c *filestruct.Chunk
	if opts.index >= 0 {
		whole, err := f.Map(f.Size()-opts.offset, opts.offset)
		if err != nil {
			return errors.Wrap(err, "map array")
		}
		defer teardown(whole, log)

		c, err = whole.Derive(size, int64(opts.index)*size)
		if err != nil {
			return errors.Wrapf(err, "element %d", opts.index)
		}
	} else {
		c, err = f.Map(size, opts.offset)
		if err != nil {
			return errors.Wrap(err, "map chunk")
		}
	}
	defer teardown(c, log)

	return dump(w, c, opts.width, opts.order)
}

func teardown(c *filestruct.Chunk, log logrus.FieldLogger) {
	if err := c.Teardown(); err != nil {
		log.WithError(err).Warn("teardown failed")
	}
}

func dump(w io.Writer, c *filestruct.Chunk, width int, order filestruct.Order) error {
	fmt.Fprintf(w, "offset: %#x\n", c.Offset())
	fmt.Fprintf(w, "size:   %d\n", c.Size())
	fmt.Fprint(w, hex.Dump(c.Bytes()))

	if width == 0 {
		return nil
	}
	fmt.Fprintf(w, "words (%d bytes, %s):\n", width, order)
	for off := int64(0); off+int64(width) <= c.Size(); off += int64(width) {
		var (
			v   uint64
			err error
		)
		switch width {
		case 1:
			var b uint8
			b, err = c.Uint8(off)
			v = uint64(b)
		case 2:
			var h uint16
			h, err = c.Uint16(off, order)
			v = uint64(h)
		case 4:
			var x uint32
			x, err = c.Uint32(off, order)
			v = uint64(x)
		case 8:
			v, err = c.Uint64(off, order)
		}
		if err != nil {
			return errors.Wrapf(err, "word at %#x", off)
		}
		fmt.Fprintf(w, "  %#06x: %#0*x\n", off, 2*width+2, v)
	}
	return nil
}
