package logger

import (
	"bytes"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

type destinationStdout struct {
	w          io.Writer
	structured bool
	useColor   bool
	buf        bytes.Buffer
}

func newDestinationStdout(w io.Writer, structured bool) destination {
	useColor := false
	if f, ok := w.(*os.File); ok && !structured {
		useColor = term.IsTerminal(int(f.Fd()))
	}

	return &destinationStdout{
		w:          w,
		structured: structured,
		useColor:   useColor,
	}
}

func (d *destinationStdout) log(t time.Time, level Level, format string, args ...interface{}) {
	d.buf.Reset()
	if d.structured {
		writeStructured(&d.buf, t, level, format, args)
	} else {
		writePlain(&d.buf, t, level, d.useColor, format, args)
	}
	d.w.Write(d.buf.Bytes()) //nolint:errcheck
}

func (d *destinationStdout) close() {
}
