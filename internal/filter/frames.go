package filter

import (
	"context"

	"github.com/ovframework/ovf/internal/frame"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/pipeline"
)

// Frames forwards the frames of a media kind.
type Frames struct {
	Kind media.Kind
}

// String implements fmt.Stringer.
func (f *Frames) String() string {
	return f.Kind.String() + " frame filter"
}

// Prepare implements pipeline.Unit.
func (*Frames) Prepare(_ context.Context) error {
	return nil
}

// Process implements pipeline.Unit.
func (f *Frames) Process(ctx context.Context, in pipeline.Reader[frame.Frame], out pipeline.Writer[frame.Frame]) error {
	return pipeline.ForEach(ctx, in, func(fr frame.Frame) error {
		if fr.Kind() != f.Kind {
			return nil
		}
		return out.Send(ctx, fr)
	})
}
