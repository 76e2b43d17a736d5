// Package rtpjpeg contains a RTP/JPEG (RFC 2435) frame assembler.
package rtpjpeg

import (
	"fmt"
)

const (
	headerSize = 8
)

// Header is the RTP/JPEG main header.
type Header struct {
	TypeSpecific   uint8
	FragmentOffset uint32
	Type           uint8
	Quantization   uint8
	Width          int
	Height         int
}

// Unmarshal decodes a Header.
func (h *Header) Unmarshal(buf []byte) (int, error) {
	if len(buf) < headerSize {
		return 0, fmt.Errorf("buffer is too short (%d bytes)", len(buf))
	}

	h.TypeSpecific = buf[0]
	h.FragmentOffset = uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	h.Type = buf[4]
	h.Quantization = buf[5]
	h.Width = int(buf[6]) * 8
	h.Height = int(buf[7]) * 8

	return headerSize, nil
}

// Marshal encodes a Header.
func (h Header) Marshal(buf []byte) []byte {
	return append(buf,
		h.TypeSpecific,
		byte(h.FragmentOffset>>16), byte(h.FragmentOffset>>8), byte(h.FragmentOffset),
		h.Type,
		h.Quantization,
		byte(h.Width/8),
		byte(h.Height/8))
}

// QuantizationTableHeader is the header of in-band quantization tables.
type QuantizationTableHeader struct {
	MBZ       uint8
	Precision uint8
	Tables    []byte
}

// Unmarshal decodes a QuantizationTableHeader.
func (h *QuantizationTableHeader) Unmarshal(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("buffer is too short (%d bytes)", len(buf))
	}

	h.MBZ = buf[0]
	if h.MBZ != 0 {
		return 0, fmt.Errorf("MBZ is %d", h.MBZ)
	}

	h.Precision = buf[1]
	length := int(buf[2])<<8 | int(buf[3])

	if len(buf) < 4+length {
		return 0, fmt.Errorf("quantization tables are truncated")
	}

	h.Tables = buf[4 : 4+length]

	return 4 + length, nil
}

// Marshal encodes a QuantizationTableHeader.
func (h QuantizationTableHeader) Marshal(buf []byte) []byte {
	buf = append(buf, h.MBZ, h.Precision, byte(len(h.Tables)>>8), byte(len(h.Tables)))
	return append(buf, h.Tables...)
}
