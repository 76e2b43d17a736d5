// Package asyncwriter contains a writer that runs callbacks in a dedicated routine.
package asyncwriter

import (
	"fmt"
	"sync/atomic"

	"github.com/bluenviron/gortsplib/v4/pkg/ringbuffer"

	"github.com/ovframework/ovf/internal/logger"
)

func ceilPowerOfTwo(v int) uint64 {
	n := uint64(1)
	for n < uint64(v) {
		n <<= 1
	}
	return n
}

// Writer runs callbacks in a dedicated routine, through a bounded queue.
// Callbacks pushed while the queue is full are discarded.
type Writer struct {
	QueueSize int
	Parent    logger.Writer

	limitedLogger logger.Writer
	buffer        *ringbuffer.RingBuffer
	discarded     atomic.Uint64

	// out
	err chan error
}

// Initialize initializes Writer.
func (w *Writer) Initialize() error {
	if w.QueueSize <= 0 {
		return fmt.Errorf("invalid queue size: %d", w.QueueSize)
	}

	var err error
	w.buffer, err = ringbuffer.New(ceilPowerOfTwo(w.QueueSize))
	if err != nil {
		return err
	}

	w.limitedLogger = logger.NewLimitedLogger(w.Parent)
	w.err = make(chan error, 1)

	return nil
}

// Start starts the writer routine.
func (w *Writer) Start() {
	go w.run()
}

// Stop stops the writer routine and waits for it to exit.
func (w *Writer) Stop() {
	w.buffer.Close()
	<-w.err
}

// Error returns a channel that receives the error that stopped the routine.
func (w *Writer) Error() <-chan error {
	return w.err
}

// Discarded returns the number of callbacks discarded because the queue was full.
func (w *Writer) Discarded() uint64 {
	return w.discarded.Load()
}

func (w *Writer) run() {
	w.err <- w.runInner()
	close(w.err)
}

func (w *Writer) runInner() error {
	for {
		cb, ok := w.buffer.Pull()
		if !ok {
			return fmt.Errorf("terminated")
		}

		err := cb.(func() error)()
		if err != nil {
			return err
		}
	}
}

// Push appends a callback to the queue.
func (w *Writer) Push(cb func() error) bool {
	ok := w.buffer.Push(cb)
	if !ok {
		w.discarded.Add(1)
		w.limitedLogger.Log(logger.Warn, "write queue is full, discarding frame")
	}
	return ok
}
