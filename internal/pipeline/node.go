package pipeline

import (
	"context"
	"sync"
)

type node interface {
	label() string
	prepare(ctx context.Context) error
	run(ctx context.Context) error
	cleanup()
}

// nodeBase runs the cleanup of an element exactly once.
type nodeBase struct {
	element   interface{}
	closeOnce sync.Once
}

func (n *nodeBase) label() string {
	return labelOf(n.element)
}

func (n *nodeBase) cleanup() {
	n.closeOnce.Do(func() {
		if c, ok := n.element.(Closer); ok {
			c.Close() //nolint:errcheck
		}
	})
}

type sourceNode[T any] struct {
	nodeBase
	src Source[T]
	out *Edge[T]
}

func (n *sourceNode[T]) prepare(ctx context.Context) error {
	return n.src.Prepare(ctx)
}

func (n *sourceNode[T]) run(ctx context.Context) error {
	defer n.out.Close()
	return n.src.Produce(ctx, n.out)
}

type unitNode[In, Out any] struct {
	nodeBase
	unit Unit[In, Out]
	in   *Edge[In]
	out  *Edge[Out]
}

func (n *unitNode[In, Out]) prepare(ctx context.Context) error {
	return n.unit.Prepare(ctx)
}

func (n *unitNode[In, Out]) run(ctx context.Context) error {
	defer n.out.Close()
	return n.unit.Process(ctx, n.in, n.out)
}

type sinkNode[T any] struct {
	nodeBase
	sink Sink[T]
	in   *Edge[T]
}

func (n *sinkNode[T]) prepare(ctx context.Context) error {
	return n.sink.Prepare(ctx)
}

func (n *sinkNode[T]) run(ctx context.Context) error {
	return n.sink.Consume(ctx, n.in)
}

// splitterNode duplicates every value of its inbound edge onto all its outbound edges.
type splitterNode[T any] struct {
	nodeBase
	in   *Edge[T]
	outs []*Edge[T]
}

func (n *splitterNode[T]) String() string {
	return "splitter"
}

func (n *splitterNode[T]) prepare(_ context.Context) error {
	return nil
}

func (n *splitterNode[T]) run(ctx context.Context) error {
	defer func() {
		for _, out := range n.outs {
			out.Close()
		}
	}()

	return ForEach[T](ctx, n.in, func(v T) error {
		for _, out := range n.outs {
			err := out.Send(ctx, v)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
