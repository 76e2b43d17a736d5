// Package rtpac3 contains a RTP/AC-3 (RFC 4184) frame assembler.
package rtpac3

import (
	"fmt"
)

const (
	headerSize = 2
)

// FrameType is the FT field of the payload header.
type FrameType uint8

// frame types.
const (
	FrameTypeComplete             FrameType = 0
	FrameTypeInitialWithHeader    FrameType = 1
	FrameTypeInitialWithoutHeader FrameType = 2
	FrameTypeContinuation         FrameType = 3
)

// Header is the RTP/AC-3 payload header.
type Header struct {
	MBZ            uint8
	FrameType      FrameType
	NumberOfFrames uint8
}

// Unmarshal decodes a Header.
func (h *Header) Unmarshal(buf []byte) (int, error) {
	if len(buf) < headerSize {
		return 0, fmt.Errorf("buffer is too short (%d bytes)", len(buf))
	}

	h.MBZ = buf[0] >> 2
	h.FrameType = FrameType(buf[0] & 0x03)
	h.NumberOfFrames = buf[1]

	return headerSize, nil
}

// Marshal encodes a Header.
func (h Header) Marshal(buf []byte) []byte {
	return append(buf, h.MBZ<<2|uint8(h.FrameType)&0x03, h.NumberOfFrames)
}
