package rtsp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/gortsplib/v4/pkg/base"
	psdp "github.com/pion/sdp/v3"

	"github.com/ovframework/ovf/internal/media"
)

// TrackMetadata is a track announced by the session description.
type TrackMetadata struct {
	Kind             media.Kind
	PayloadType      uint8
	Codec            media.Codec
	EncodingName     string
	ClockRate        int
	FormatParameters string

	// absolute URL of the track
	Control *base.URL
}

func staticClockRate(payloadType uint8, kind media.Kind) int {
	switch payloadType {
	case 0, 8:
		return 8000
	}

	if kind == media.KindAudio {
		return 8000
	}
	return 90000
}

func staticEncodingName(payloadType uint8) string {
	switch payloadType {
	case 0:
		return "PCMU"
	case 8:
		return "PCMA"
	case 26:
		return "JPEG"
	}
	return ""
}

func parseKind(m string) media.Kind {
	switch m {
	case "video":
		return media.KindVideo
	case "audio":
		return media.KindAudio
	}
	return media.KindUnknown
}

// attributeForPayloadType returns the value of an attribute in the form
// "<payload type> <value>".
func attributeForPayloadType(md *psdp.MediaDescription, key string, payloadType string) string {
	for _, attr := range md.Attributes {
		if attr.Key != key {
			continue
		}

		pt, v, ok := strings.Cut(attr.Value, " ")
		if ok && pt == payloadType {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseRTPMap(v string) (string, int, error) {
	parts := strings.Split(v, "/")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("invalid rtpmap (%v)", v)
	}

	clockRate, err := strconv.ParseUint(parts[1], 10, 31)
	if err != nil || clockRate == 0 {
		return "", 0, fmt.Errorf("invalid clock rate (%v)", parts[1])
	}

	return parts[0], int(clockRate), nil
}

func absoluteControl(baseURL *base.URL, control string) (*base.URL, error) {
	if control == "" || control == "*" {
		return baseURL, nil
	}

	if strings.HasPrefix(strings.ToLower(control), "rtsp://") {
		return base.ParseURL(control)
	}

	s := baseURL.String()
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return base.ParseURL(s + control)
}

func unmarshalMedia(md *psdp.MediaDescription, baseURL *base.URL) (*TrackMetadata, error) {
	if len(md.MediaName.Formats) == 0 {
		return nil, fmt.Errorf("no payload types")
	}

	ptStr := md.MediaName.Formats[0]
	pt, err := strconv.ParseUint(ptStr, 10, 7)
	if err != nil {
		return nil, fmt.Errorf("invalid payload type (%v)", ptStr)
	}

	t := &TrackMetadata{
		Kind:        parseKind(md.MediaName.Media),
		PayloadType: uint8(pt),
	}

	if v := attributeForPayloadType(md, "rtpmap", ptStr); v != "" {
		t.EncodingName, t.ClockRate, err = parseRTPMap(v)
		if err != nil {
			return nil, err
		}
	} else {
		t.EncodingName = staticEncodingName(t.PayloadType)
		t.ClockRate = staticClockRate(t.PayloadType, t.Kind)
	}

	t.FormatParameters = attributeForPayloadType(md, "fmtp", ptStr)

	t.Codec = media.CodecFromEncodingName(t.EncodingName)
	if t.Codec == media.CodecUnknown {
		_, t.Codec = media.Lookup(t.PayloadType)
	}

	control, _ := md.Attribute("control")
	t.Control, err = absoluteControl(baseURL, control)
	if err != nil {
		return nil, fmt.Errorf("invalid control attribute (%v)", control)
	}

	return t, nil
}

// ParseSDP decodes the tracks of a session description.
// Relative control attributes are resolved against baseURL.
func ParseSDP(byts []byte, baseURL *base.URL) ([]*TrackMetadata, error) {
	var sd psdp.SessionDescription
	err := sd.Unmarshal(byts)
	if err != nil {
		return nil, err
	}

	if len(sd.MediaDescriptions) == 0 {
		return nil, fmt.Errorf("no media found")
	}

	tracks := make([]*TrackMetadata, len(sd.MediaDescriptions))

	for i, md := range sd.MediaDescriptions {
		tracks[i], err = unmarshalMedia(md, baseURL)
		if err != nil {
			return nil, fmt.Errorf("media %d is invalid: %w", i+1, err)
		}
	}

	return tracks, nil
}
