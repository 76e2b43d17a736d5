package pipeline

import (
	"context"
)

// ChannelSource is a source that forwards the values of a Go channel.
// It terminates when the channel is closed.
type ChannelSource[T any] struct {
	Chan <-chan T
}

// String implements fmt.Stringer.
func (*ChannelSource[T]) String() string {
	return "channel source"
}

// Prepare implements Source.
func (*ChannelSource[T]) Prepare(_ context.Context) error {
	return nil
}

// Produce implements Source.
func (s *ChannelSource[T]) Produce(ctx context.Context, out Writer[T]) error {
	for {
		select {
		case v, ok := <-s.Chan:
			if !ok {
				return nil
			}

			err := out.Send(ctx, v)
			if err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
