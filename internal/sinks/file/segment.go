package file

import (
	"bufio"
	"os"
	"path/filepath"
	"time"

	"github.com/ovframework/ovf/internal/logger"
)

type segment struct {
	s     *Sink
	path  string
	start time.Time
	last  time.Time
	size  uint64

	fi *os.File
	bw *bufio.Writer
}

func (g *segment) initialize() error {
	g.path = segmentPath(g.s.PathFormat, g.start)
	g.s.Log(logger.Debug, "creating segment %s", g.path)

	err := os.MkdirAll(filepath.Dir(g.path), 0o755)
	if err != nil {
		return err
	}

	g.fi, err = os.Create(g.path)
	if err != nil {
		return err
	}

	g.bw = bufio.NewWriterSize(g.fi, 64*1024)
	g.last = g.start

	return nil
}

func (g *segment) close() error {
	g.s.Log(logger.Debug, "closing segment %s", g.path)

	err := g.bw.Flush()
	err2 := g.fi.Close()
	if err == nil {
		err = err2
	}

	if err == nil {
		g.s.onSegmentComplete(g.path, g.last.Sub(g.start))
	}

	return err
}

func (g *segment) write(t time.Time, data []byte) error {
	_, err := g.bw.Write(data)
	if err != nil {
		return err
	}

	g.size += uint64(len(data))
	if t.After(g.last) {
		g.last = t
	}

	return nil
}
