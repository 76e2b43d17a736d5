package rtsp

import (
	"testing"

	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/stretchr/testify/require"

	"github.com/ovframework/ovf/internal/media"
)

func TestParseSDP(t *testing.T) {
	baseURL, err := base.ParseURL("rtsp://localhost:8554/mystream")
	require.NoError(t, err)

	tracks, err := ParseSDP([]byte("v=0\r\n"+
		"o=- 0 0 IN IP4 127.0.0.1\r\n"+
		"s=Stream\r\n"+
		"c=IN IP4 0.0.0.0\r\n"+
		"t=0 0\r\n"+
		"m=video 0 RTP/AVP 26\r\n"+
		"a=control:*\r\n"+
		"m=audio 0 RTP/AVP 96\r\n"+
		"a=rtpmap:96 AC3/44100\r\n"+
		"a=fmtp:96 some=param\r\n"+
		"a=control:trackID=1\r\n"+
		"m=video 0 RTP/AVP 98\r\n"+
		"a=rtpmap:98 H265/90000\r\n"+
		"a=control:rtsp://otherhost/track\r\n"+
		"m=application 0 RTP/AVP 107\r\n"+
		"a=rtpmap:107 vnd.onvif.metadata/90000\r\n"), baseURL)
	require.NoError(t, err)
	require.Len(t, tracks, 4)

	require.Equal(t, media.KindVideo, tracks[0].Kind)
	require.Equal(t, uint8(26), tracks[0].PayloadType)
	require.Equal(t, "JPEG", tracks[0].EncodingName)
	require.Equal(t, media.CodecMJPEG, tracks[0].Codec)
	require.Equal(t, 90000, tracks[0].ClockRate)
	require.Equal(t, "rtsp://localhost:8554/mystream", tracks[0].Control.String())

	require.Equal(t, media.KindAudio, tracks[1].Kind)
	require.Equal(t, media.CodecAC3, tracks[1].Codec)
	require.Equal(t, 44100, tracks[1].ClockRate)
	require.Equal(t, "some=param", tracks[1].FormatParameters)
	require.Equal(t, "rtsp://localhost:8554/mystream/trackID=1", tracks[1].Control.String())

	require.Equal(t, media.CodecH265, tracks[2].Codec)
	require.Equal(t, "rtsp://otherhost/track", tracks[2].Control.String())

	require.Equal(t, media.KindUnknown, tracks[3].Kind)
	require.Equal(t, media.CodecUnknown, tracks[3].Codec)
}

func TestParseSDPErrors(t *testing.T) {
	baseURL, err := base.ParseURL("rtsp://localhost:8554/mystream")
	require.NoError(t, err)

	for _, ca := range []struct {
		name string
		sdp  string
		err  string
	}{
		{
			"no media",
			"v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=Stream\r\nt=0 0\r\n",
			"no media found",
		},
		{
			"invalid clock rate",
			"v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=Stream\r\nt=0 0\r\n" +
				"m=video 0 RTP/AVP 96\r\na=rtpmap:96 JPEG/abc\r\n",
			"media 1 is invalid: invalid clock rate (abc)",
		},
		{
			"zero clock rate",
			"v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=Stream\r\nt=0 0\r\n" +
				"m=audio 0 RTP/AVP 97\r\na=rtpmap:97 AC3/0\r\n",
			"media 1 is invalid: invalid clock rate (0)",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			_, err := ParseSDP([]byte(ca.sdp), baseURL)
			require.EqualError(t, err, ca.err)
		})
	}
}
