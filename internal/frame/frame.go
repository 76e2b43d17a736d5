// Package frame contains the complete frame definitions.
package frame

import (
	"time"

	"github.com/ovframework/ovf/internal/media"
)

// Frame is a complete, reassembled media unit.
type Frame interface {
	GetBase() *Base
	Kind() media.Kind
}

// Base contains fields shared across all frames.
type Base struct {
	Data       []byte
	ExtraData  []byte
	IsKeyFrame bool
	ReceivedAt time.Time

	// absolute time, zero if the stream is not synchronized yet
	NTP time.Time

	SSRC      uint32
	Codec     media.Codec
	ClockRate int
	Duration  time.Duration
}

// GetBase implements Frame.
func (b *Base) GetBase() *Base {
	return b
}

// Video is a video frame.
type Video struct {
	Base
	Width  int
	Height int
}

// Kind implements Frame.
func (*Video) Kind() media.Kind {
	return media.KindVideo
}

// Audio is an audio frame.
type Audio struct {
	Base
	SampleRate int
	Channels   int

	// kbit/s
	Bitrate int
}

// Kind implements Frame.
func (*Audio) Kind() media.Kind {
	return media.KindAudio
}
