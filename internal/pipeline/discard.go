package pipeline

import (
	"context"
)

// Discard is a sink that drops every value, releasing the ones that implement io.Closer.
type Discard[T any] struct{}

// String implements fmt.Stringer.
func (*Discard[T]) String() string {
	return "discard"
}

// Prepare implements Sink.
func (*Discard[T]) Prepare(_ context.Context) error {
	return nil
}

// Consume implements Sink.
func (*Discard[T]) Consume(ctx context.Context, in Reader[T]) error {
	return ForEach(ctx, in, func(v T) error {
		release(v)
		return nil
	})
}
