package rtpac3

import (
	"errors"
	"fmt"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/ac3"

	"github.com/ovframework/ovf/internal/frame"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
)

// ErrMorePacketsNeeded is returned when more packets are needed to complete a frame.
var ErrMorePacketsNeeded = errors.New("need more packets")

// kbit/s, indexed by frmsizecod.
var bitrates = [38]int{
	32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 448, 512, 576, 640, 768, 896,
	1024, 1152, 1280, 1408, 1536, 1664, 1792, 1920, 2048, 2176, 2304, 2432, 2560, 2688, 2816, 2944, 3072,
}

// Assembler turns RTP/AC-3 packets of a single SSRC into complete AC-3 frames.
type Assembler struct {
	Logger logger.Writer

	fragments [][]byte
	size      int
	timestamp uint32
}

// Push adds a packet. It returns a frame when the packet completes one.
func (a *Assembler) Push(pkt *media.Packet) (frame.Frame, error) {
	if len(a.fragments) != 0 && pkt.Timestamp != a.timestamp {
		a.Logger.Log(logger.Warn, "new frame started before previous completed, dropping incomplete frame")
		a.reset()
	}

	a.timestamp = pkt.Timestamp

	var h Header
	n, err := h.Unmarshal(pkt.Payload)
	if err != nil {
		a.reset()
		return nil, err
	}

	if h.FrameType == FrameTypeContinuation && len(a.fragments) == 0 {
		return nil, fmt.Errorf("received fragment without initial fragment")
	}

	a.fragments = append(a.fragments, pkt.Payload[n:])
	a.size += len(pkt.Payload) - n

	if !pkt.Marker {
		return nil, ErrMorePacketsNeeded
	}

	defer a.reset()

	if len(a.fragments) != int(h.NumberOfFrames) {
		return nil, fmt.Errorf("missed %d packets", int(h.NumberOfFrames)-len(a.fragments))
	}

	data := make([]byte, 0, a.size)
	for _, f := range a.fragments {
		data = append(data, f...)
	}

	var syncInfo ac3.SyncInfo
	err = syncInfo.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("invalid AC-3 frame: %w", err)
	}

	if len(data) < 6 {
		return nil, fmt.Errorf("invalid AC-3 frame: not enough bytes")
	}

	var bsi ac3.BSI
	err = bsi.Unmarshal(data[5:])
	if err != nil {
		return nil, fmt.Errorf("invalid AC-3 frame: %w", err)
	}

	sampleRate := syncInfo.SampleRate()
	if sampleRate == 0 {
		return nil, fmt.Errorf("invalid AC-3 frame: invalid fscod")
	}

	if int(syncInfo.Frmsizecod) >= len(bitrates) {
		return nil, fmt.Errorf("invalid AC-3 frame: invalid frmsizecod")
	}

	return &frame.Audio{
		Base: frame.Base{
			Data:       data,
			IsKeyFrame: true,
			ReceivedAt: pkt.ReceivedAt,
			NTP:        pkt.NTP,
			SSRC:       pkt.SSRC,
			Codec:      media.CodecAC3,
			ClockRate:  pkt.ClockRate,
			Duration:   time.Duration(ac3.SamplesPerFrame) * time.Second / time.Duration(sampleRate),
		},
		SampleRate: sampleRate,
		Channels:   bsi.ChannelCount(),
		Bitrate:    bitrates[syncInfo.Frmsizecod],
	}, nil
}

func (a *Assembler) reset() {
	a.fragments = nil
	a.size = 0
}
