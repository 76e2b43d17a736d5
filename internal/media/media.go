// Package media contains the media kinds, codecs and the RTP payload type table.
package media

import (
	"fmt"
	"strings"
)

// Kind is a media kind.
type Kind int

// Media kinds.
const (
	KindUnknown Kind = iota
	KindVideo
	KindAudio
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	}
	return "unknown"
}

// ParseKind parses a media kind from its textual representation.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "video":
		return KindVideo, nil
	case "audio":
		return KindAudio, nil
	case "unknown":
		return KindUnknown, nil
	}
	return 0, fmt.Errorf("invalid media kind: '%s'", s)
}

// Codec is a media codec.
type Codec int

// Codecs.
const (
	CodecUnknown Codec = iota
	CodecMJPEG
	CodecH264
	CodecH265
	CodecMPEG4
	CodecAAC
	CodecPCM
	CodecG711
	CodecAC3
)

var codecNames = map[Codec]string{
	CodecUnknown: "unknown",
	CodecMJPEG:   "MJPEG",
	CodecH264:    "H264",
	CodecH265:    "H265",
	CodecMPEG4:   "MPEG4",
	CodecAAC:     "AAC",
	CodecPCM:     "PCM",
	CodecG711:    "G711",
	CodecAC3:     "AC3",
}

// String implements fmt.Stringer.
func (c Codec) String() string {
	if n, ok := codecNames[c]; ok {
		return n
	}
	return "unknown"
}

// ParseCodec parses a codec from its textual representation.
func ParseCodec(s string) (Codec, error) {
	for c, n := range codecNames {
		if strings.EqualFold(n, s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid codec: '%s'", s)
}

// Kind returns the media kind of the codec.
func (c Codec) Kind() Kind {
	switch c {
	case CodecMJPEG, CodecH264, CodecH265, CodecMPEG4:
		return KindVideo
	case CodecAAC, CodecPCM, CodecG711, CodecAC3:
		return KindAudio
	}
	return KindUnknown
}

var payloadTypes = map[uint8]Codec{
	26:  CodecMJPEG,
	96:  CodecH264,
	97:  CodecH265,
	98:  CodecMPEG4,
	99:  CodecAAC,
	100: CodecPCM,
	101: CodecG711,
}

// Lookup maps a RTP payload type to a media kind and codec.
// Payload types outside the table map to KindUnknown and CodecUnknown.
func Lookup(payloadType uint8) (Kind, Codec) {
	c, ok := payloadTypes[payloadType]
	if !ok {
		return KindUnknown, CodecUnknown
	}
	return c.Kind(), c
}

// CodecFromEncodingName maps a SDP rtpmap encoding name to a codec.
func CodecFromEncodingName(name string) Codec {
	switch strings.ToUpper(name) {
	case "JPEG":
		return CodecMJPEG
	case "H264":
		return CodecH264
	case "H265":
		return CodecH265
	case "MP4V-ES":
		return CodecMPEG4
	case "MPEG4-GENERIC", "MP4A-LATM":
		return CodecAAC
	case "L16", "L24":
		return CodecPCM
	case "PCMU", "PCMA":
		return CodecG711
	case "AC3":
		return CodecAC3
	}
	return CodecUnknown
}
