package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Reader is the receiving side of an edge.
type Reader[T any] interface {
	Receive(ctx context.Context) (T, error)
}

// Writer is the sending side of an edge.
type Writer[T any] interface {
	Send(ctx context.Context, v T) error
}

// Source produces values onto its outbound edge.
type Source[T any] interface {
	Prepare(ctx context.Context) error
	Produce(ctx context.Context, out Writer[T]) error
}

// Unit consumes values of type In and produces values of type Out.
type Unit[In, Out any] interface {
	Prepare(ctx context.Context) error
	Process(ctx context.Context, in Reader[In], out Writer[Out]) error
}

// Sink consumes values without producing any output.
type Sink[T any] interface {
	Prepare(ctx context.Context) error
	Consume(ctx context.Context, in Reader[T]) error
}

// Closer is implemented by elements that own resources.
// Close is called exactly once after the element has finished.
type Closer interface {
	Close() error
}

// EdgeConfigurer is implemented by elements that choose the configuration
// of their inbound edge.
type EdgeConfigurer interface {
	InboundEdge() EdgeConfig
}

// ForEach calls cb for every value received from in, until the edge is closed.
func ForEach[T any](ctx context.Context, in Reader[T], cb func(T) error) error {
	for {
		v, err := in.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrEdgeClosed) {
				return nil
			}
			return err
		}

		err = cb(v)
		if err != nil {
			return err
		}
	}
}

func labelOf(e interface{}) string {
	if s, ok := e.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", e)
}
