// Package filter contains pipeline units that select packets and frames.
package filter

import (
	"context"
	"slices"

	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/pipeline"
)

type streamsParent interface {
	logger.Writer
}

// Streams forwards the packets of the streams whose media kind is allowed.
// When Codecs is not empty, the codec of the stream must be allowed too.
type Streams struct {
	Kinds  []media.Kind
	Codecs []media.Codec
	Parent streamsParent

	rejected map[uint32]struct{}
}

// String implements fmt.Stringer.
func (*Streams) String() string {
	return "stream filter"
}

// Log implements logger.Writer.
func (f *Streams) Log(level logger.Level, format string, args ...interface{}) {
	f.Parent.Log(level, "[stream filter] "+format, args...)
}

// Prepare implements pipeline.Unit.
func (f *Streams) Prepare(_ context.Context) error {
	f.rejected = make(map[uint32]struct{})
	return nil
}

func (f *Streams) allowed(sc media.StreamContext) bool {
	if !slices.Contains(f.Kinds, sc.Kind) {
		return false
	}
	return len(f.Codecs) == 0 || slices.Contains(f.Codecs, sc.Codec)
}

// Process implements pipeline.Unit.
func (f *Streams) Process(ctx context.Context, in pipeline.Reader[*media.Packet], out pipeline.Writer[*media.Packet]) error {
	return pipeline.ForEach(ctx, in, func(pkt *media.Packet) error {
		if !f.allowed(pkt.Stream) {
			if _, ok := f.rejected[pkt.SSRC]; !ok {
				f.rejected[pkt.SSRC] = struct{}{}
				f.Log(logger.Info, "discarding stream %08x (%v, %v, payload type %d)",
					pkt.SSRC, pkt.Stream.Kind, pkt.Stream.Codec, pkt.PayloadType)
			}
			return nil
		}

		return out.Send(ctx, pkt)
	})
}
