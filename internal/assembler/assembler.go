// Package assembler contains the unit that turns RTP packets into complete frames.
package assembler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ovframework/ovf/internal/frame"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/metrics"
	"github.com/ovframework/ovf/internal/pipeline"
	"github.com/ovframework/ovf/internal/protocols/rtpac3"
	"github.com/ovframework/ovf/internal/protocols/rtpjpeg"
)

// ErrUnsupportedCodec is returned when no assembler exists for the codec of a stream.
var ErrUnsupportedCodec = errors.New("unsupported codec")

// Assembler reassembles the packets of a single SSRC.
type Assembler interface {
	Push(pkt *media.Packet) (frame.Frame, error)
}

var constructors = map[media.Codec]func(l logger.Writer) Assembler{
	media.CodecMJPEG: func(l logger.Writer) Assembler {
		return &rtpjpeg.Assembler{Logger: l}
	},
	media.CodecAC3: func(l logger.Writer) Assembler {
		return &rtpac3.Assembler{Logger: l}
	},
}

// New allocates the assembler of a codec.
func New(codec media.Codec, l logger.Writer) (Assembler, error) {
	c, ok := constructors[codec]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCodec, codec)
	}
	return c(l), nil
}

// Supported returns whether an assembler exists for the codec.
func Supported(codec media.Codec) bool {
	_, ok := constructors[codec]
	return ok
}

func isIncomplete(err error) bool {
	return errors.Is(err, rtpjpeg.ErrMorePacketsNeeded) ||
		errors.Is(err, rtpac3.ErrMorePacketsNeeded)
}

type unitParent interface {
	logger.Writer
}

// Unit is a pipeline unit that keeps one assembler for each SSRC.
// Transient errors are logged and counted, but they never stop the unit.
type Unit struct {
	Metrics *metrics.Metrics
	Parent  unitParent

	limitedLogger logger.Writer
	assemblers    map[uint32]Assembler
}

// String implements fmt.Stringer.
func (*Unit) String() string {
	return "frame assembler"
}

// Log implements logger.Writer.
func (u *Unit) Log(level logger.Level, format string, args ...interface{}) {
	u.Parent.Log(level, "[assembler] "+format, args...)
}

// Prepare implements pipeline.Unit.
func (u *Unit) Prepare(_ context.Context) error {
	u.limitedLogger = logger.NewLimitedLogger(u)
	u.assemblers = make(map[uint32]Assembler)
	return nil
}

// Process implements pipeline.Unit.
func (u *Unit) Process(ctx context.Context, in pipeline.Reader[*media.Packet], out pipeline.Writer[frame.Frame]) error {
	return pipeline.ForEach(ctx, in, func(pkt *media.Packet) error {
		fr, err := u.push(pkt)
		if err != nil {
			return err
		}

		if fr == nil {
			return nil
		}

		return out.Send(ctx, fr)
	})
}

func (u *Unit) push(pkt *media.Packet) (frame.Frame, error) {
	codec := pkt.Stream.Codec

	a, ok := u.assemblers[pkt.SSRC]
	if !ok {
		var err error
		a, err = New(codec, u.limitedLogger)
		if err != nil {
			return nil, fmt.Errorf("SSRC %08x: %w", pkt.SSRC, err)
		}

		u.Log(logger.Debug, "created %v assembler for SSRC %08x", codec, pkt.SSRC)
		u.assemblers[pkt.SSRC] = a
	}

	fr, err := a.Push(pkt)
	if err != nil {
		if !isIncomplete(err) {
			u.Metrics.FrameDropped(codec)
			u.limitedLogger.Log(logger.Warn, "%v frame of SSRC %08x dropped: %v", codec, pkt.SSRC, err)
		}
		return nil, nil
	}

	u.Metrics.FrameAssembled(codec)

	return fr, nil
}
