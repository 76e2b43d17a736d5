package assembler

import (
	"context"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/ovframework/ovf/internal/frame"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/pipeline"
	"github.com/ovframework/ovf/internal/protocols/rtpac3"
	"github.com/ovframework/ovf/internal/protocols/rtpjpeg"
	"github.com/ovframework/ovf/internal/test"
)

func jpegPacket(ssrc uint32, ts uint32, marker bool, offset uint32, data []byte) *media.Packet {
	h := rtpjpeg.Header{
		FragmentOffset: offset,
		Type:           1,
		Quantization:   50,
		Width:          64,
		Height:         48,
	}

	return &media.Packet{
		Packet: &rtp.Packet{
			Header: rtp.Header{
				Version:     2,
				Marker:      marker,
				PayloadType: 26,
				Timestamp:   ts,
				SSRC:        ssrc,
			},
			Payload: append(h.Marshal(nil), data...),
		},
		ClockRate:  90000,
		ReceivedAt: time.Now(),
		Stream: media.StreamContext{
			SSRC:  ssrc,
			Kind:  media.KindVideo,
			Codec: media.CodecMJPEG,
		},
	}
}

func ac3Packet(ssrc uint32, ts uint32) *media.Packet {
	data := make([]byte, 512)
	copy(data, []byte{0x0B, 0x77, 0x00, 0x00, 0x10, 0x40, 0x44})

	h := rtpac3.Header{FrameType: rtpac3.FrameTypeComplete, NumberOfFrames: 1}

	return &media.Packet{
		Packet: &rtp.Packet{
			Header: rtp.Header{
				Version:     2,
				Marker:      true,
				PayloadType: 97,
				Timestamp:   ts,
				SSRC:        ssrc,
			},
			Payload: append(h.Marshal(nil), data...),
		},
		ClockRate:  48000,
		ReceivedAt: time.Now(),
		Stream: media.StreamContext{
			SSRC:  ssrc,
			Kind:  media.KindAudio,
			Codec: media.CodecAC3,
		},
	}
}

func TestNew(t *testing.T) {
	a, err := New(media.CodecMJPEG, test.NilLogger)
	require.NoError(t, err)
	require.IsType(t, &rtpjpeg.Assembler{}, a)

	a, err = New(media.CodecAC3, test.NilLogger)
	require.NoError(t, err)
	require.IsType(t, &rtpac3.Assembler{}, a)

	_, err = New(media.CodecH264, test.NilLogger)
	require.ErrorIs(t, err, ErrUnsupportedCodec)

	require.True(t, Supported(media.CodecMJPEG))
	require.False(t, Supported(media.CodecG711))
}

func TestUnit(t *testing.T) {
	ch := make(chan *media.Packet, 10)

	// two interleaved SSRCs
	ch <- jpegPacket(1, 100, false, 0, []byte{1, 2, 3})
	ch <- ac3Packet(2, 500)
	ch <- jpegPacket(1, 100, true, 3, []byte{4, 5})
	// offset mismatch, dropped
	ch <- jpegPacket(1, 200, true, 10, []byte{6})
	ch <- jpegPacket(1, 300, true, 0, []byte{7})
	close(ch)

	warnings := 0
	u := &Unit{
		Parent: test.Logger(func(l logger.Level, _ string, _ ...interface{}) {
			if l == logger.Warn {
				warnings++
			}
		}),
	}
	sink := &test.Sink[frame.Frame]{}

	h := pipeline.To[*media.Packet, frame.Frame](
		pipeline.From[*media.Packet](&pipeline.ChannelSource[*media.Packet]{Chan: ch}), u).
		Flush(sink).
		Run(context.Background())

	require.NoError(t, h.Wait())

	frames := sink.Items()
	require.Len(t, frames, 3)

	require.Equal(t, media.KindAudio, frames[0].Kind())
	require.Equal(t, uint32(2), frames[0].GetBase().SSRC)

	require.Equal(t, media.KindVideo, frames[1].Kind())
	require.Equal(t, []byte{4, 5, 0xFF, 0xD9}, frames[1].GetBase().Data[len(frames[1].GetBase().Data)-4:])

	require.Equal(t, []byte{7, 0xFF, 0xD9}, frames[2].GetBase().Data[len(frames[2].GetBase().Data)-3:])

	require.Equal(t, 1, warnings)
}

func TestUnitUnsupportedCodec(t *testing.T) {
	pkt := jpegPacket(1, 100, true, 0, []byte{1})
	pkt.Stream.Codec = media.CodecH264

	ch := make(chan *media.Packet, 1)
	ch <- pkt
	close(ch)

	h := pipeline.To[*media.Packet, frame.Frame](
		pipeline.From[*media.Packet](&pipeline.ChannelSource[*media.Packet]{Chan: ch}),
		&Unit{Parent: test.NilLogger}).
		Build().
		Run(context.Background())

	err := h.Wait()
	require.ErrorIs(t, err, ErrUnsupportedCodec)
}
