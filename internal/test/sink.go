package test

import (
	"context"
	"sync"

	"github.com/ovframework/ovf/internal/pipeline"
)

// Sink is a pipeline sink that stores every value it receives.
type Sink[T any] struct {
	mutex sync.Mutex
	items []T
}

// Prepare implements pipeline.Sink.
func (*Sink[T]) Prepare(_ context.Context) error {
	return nil
}

// Consume implements pipeline.Sink.
func (s *Sink[T]) Consume(ctx context.Context, in pipeline.Reader[T]) error {
	return pipeline.ForEach(ctx, in, func(v T) error {
		s.mutex.Lock()
		s.items = append(s.items, v)
		s.mutex.Unlock()
		return nil
	})
}

// Items returns the received values.
func (s *Sink[T]) Items() []T {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]T(nil), s.items...)
}
