package media

import (
	"time"
)

// StreamContext is the identity of a RTP stream, together with its counters.
type StreamContext struct {
	SSRC            uint32
	PayloadType     uint8
	Kind            Kind
	Codec           Codec
	FirstPacketTime time.Time
	LastPacketTime  time.Time
	PacketCount     uint64
	LostCount       int64
	LastSequence    uint16
}
