package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrEdgeClosed is returned when receiving from a closed and drained edge,
// or when sending to a closed edge.
var ErrEdgeClosed = errors.New("edge closed")

// DropPolicy is the behavior of a bounded edge when it is full.
type DropPolicy int

// Drop policies.
const (
	// Block makes the sender wait until there's space.
	Block DropPolicy = iota

	// DropOldest discards the oldest queued value.
	DropOldest
)

// EdgeConfig is the configuration of an edge.
// A zero Capacity means unbounded.
type EdgeConfig struct {
	Capacity int
	Policy   DropPolicy
}

// Edge is a single-writer, single-reader FIFO between two elements.
type Edge[T any] struct {
	conf EdgeConfig
	from string

	mutex    sync.Mutex
	queue    []T
	closed   bool
	dropped  uint64
	attached bool

	readable chan struct{}
	writable chan struct{}
}

// NewEdge allocates an Edge.
func NewEdge[T any](conf EdgeConfig) *Edge[T] {
	return &Edge[T]{
		conf:     conf,
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func release(v interface{}) {
	if c, ok := v.(io.Closer); ok {
		c.Close() //nolint:errcheck
	}
}

// Send appends a value to the edge.
func (e *Edge[T]) Send(ctx context.Context, v T) error {
	for {
		e.mutex.Lock()

		if e.closed {
			e.mutex.Unlock()
			return ErrEdgeClosed
		}

		if e.conf.Capacity <= 0 || len(e.queue) < e.conf.Capacity {
			e.queue = append(e.queue, v)
			e.mutex.Unlock()
			notify(e.readable)
			return nil
		}

		if e.conf.Policy == DropOldest {
			oldest := e.queue[0]
			var zero T
			e.queue[0] = zero
			e.queue = append(e.queue[1:], v)
			e.dropped++
			e.mutex.Unlock()
			release(oldest)
			notify(e.readable)
			return nil
		}

		e.mutex.Unlock()

		select {
		case <-e.writable:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Receive pops the oldest value from the edge.
// Queued values are delivered before the closure of the edge or the
// cancellation of ctx are reported.
func (e *Edge[T]) Receive(ctx context.Context) (T, error) {
	var zero T

	for {
		e.mutex.Lock()

		if len(e.queue) > 0 {
			v := e.queue[0]
			e.queue[0] = zero
			e.queue = e.queue[1:]
			e.mutex.Unlock()
			notify(e.writable)
			return v, nil
		}

		if e.closed {
			e.mutex.Unlock()
			return zero, ErrEdgeClosed
		}

		e.mutex.Unlock()

		select {
		case <-e.readable:

		case <-ctx.Done():
			e.mutex.Lock()
			pending := len(e.queue) > 0 || e.closed
			e.mutex.Unlock()

			if !pending {
				return zero, ctx.Err()
			}
		}
	}
}

// Close closes the edge. It can be called multiple times.
func (e *Edge[T]) Close() {
	e.mutex.Lock()
	e.closed = true
	e.mutex.Unlock()

	notify(e.readable)
	notify(e.writable)
}

// Len returns the number of queued values.
func (e *Edge[T]) Len() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.queue)
}

// Dropped returns the number of values discarded by the drop policy.
func (e *Edge[T]) Dropped() uint64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.dropped
}
