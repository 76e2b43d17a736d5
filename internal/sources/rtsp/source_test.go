package rtsp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/headers"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/ntpsync"
	"github.com/ovframework/ovf/internal/pipeline"
	"github.com/ovframework/ovf/internal/test"
)

func writeResponse(t *testing.T, conn net.Conn, res base.Response) {
	byts, err := res.Marshal()
	require.NoError(t, err)
	_, err = conn.Write(byts)
	require.NoError(t, err)
}

func readRequest(t *testing.T, br *bufio.Reader, method base.Method) *base.Request {
	var req base.Request
	err := req.Unmarshal(br)
	require.NoError(t, err)
	require.Equal(t, method, req.Method)
	return &req
}

func TestSource(t *testing.T) {
	serverRTP, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverRTP.Close()

	serverRTCP, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverRTCP.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ntpBase := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	serverDone := make(chan struct{})
	defer func() { <-serverDone }()

	go func() {
		defer close(serverDone)

		conn, err2 := ln.Accept()
		require.NoError(t, err2)
		defer conn.Close()
		br := bufio.NewReader(conn)

		req := readRequest(t, br, base.Options)
		writeResponse(t, conn, base.Response{
			StatusCode: base.StatusOK,
			Header:     base.Header{"CSeq": req.Header["CSeq"]},
		})

		req = readRequest(t, br, base.Describe)
		writeResponse(t, conn, base.Response{
			StatusCode: base.StatusOK,
			Header:     base.Header{"CSeq": req.Header["CSeq"]},
			Body: []byte("v=0\r\n" +
				"o=- 0 0 IN IP4 127.0.0.1\r\n" +
				"s=Stream\r\n" +
				"t=0 0\r\n" +
				"m=video 0 RTP/AVP 26\r\n" +
				"a=control:trackID=0\r\n" +
				"m=audio 0 RTP/AVP 97\r\n" +
				"a=rtpmap:97 AC3/48000\r\n" +
				"a=control:trackID=1\r\n"),
		})

		// the audio track is not set up
		req = readRequest(t, br, base.Setup)
		require.Equal(t, "rtsp://"+ln.Addr().String()+"/stream/trackID=0", req.URL.String())

		var th headers.Transport
		err2 = th.Unmarshal(req.Header["Transport"])
		require.NoError(t, err2)

		writeResponse(t, conn, base.Response{
			StatusCode: base.StatusOK,
			Header: base.Header{
				"CSeq": req.Header["CSeq"],
				"Transport": base.HeaderValue{fmt.Sprintf("RTP/AVP/UDP;unicast;client_port=%d-%d;server_port=%d-%d",
					th.ClientPorts[0], th.ClientPorts[1],
					serverRTP.LocalAddr().(*net.UDPAddr).Port,
					serverRTCP.LocalAddr().(*net.UDPAddr).Port)},
				"Session": base.HeaderValue{"ABCD"},
			},
		})

		req = readRequest(t, br, base.Play)
		writeResponse(t, conn, base.Response{
			StatusCode: base.StatusOK,
			Header:     base.Header{"CSeq": req.Header["CSeq"]},
		})

		sr := &rtcp.SenderReport{
			SSRC:    0x1234,
			NTPTime: ntpsync.EncodeTime(ntpBase),
			RTPTime: 90000,
		}
		byts, err2 := sr.Marshal()
		require.NoError(t, err2)
		_, err2 = serverRTCP.WriteToUDP(byts, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: th.ClientPorts[1]})
		require.NoError(t, err2)

		time.Sleep(100 * time.Millisecond)

		for i := 0; i < 3; i++ {
			pkt := rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					PayloadType:    26,
					SequenceNumber: uint16(100 + i),
					Timestamp:      90000 + uint32(i)*9000,
					SSRC:           0x1234,
				},
				Payload: []byte{1, 2, 3},
			}
			byts, err2 = pkt.Marshal()
			require.NoError(t, err2)
			_, err2 = serverRTP.WriteToUDP(byts, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: th.ClientPorts[0]})
			require.NoError(t, err2)
		}

		req = readRequest(t, br, base.Teardown)
		require.Equal(t, base.HeaderValue{"ABCD"}, req.Header["Session"])
		writeResponse(t, conn, base.Response{
			StatusCode: base.StatusOK,
			Header:     base.Header{"CSeq": req.Header["CSeq"]},
		})
	}()

	s := &Source{
		URL:                  "rtsp://" + ln.Addr().String() + "/stream",
		MediaKinds:           []media.Kind{media.KindVideo},
		ReceiverReportPeriod: 100 * time.Millisecond,
		Parent:               test.NilLogger,
	}
	sink := &test.Sink[*media.Packet]{}

	h := pipeline.From[*media.Packet](s).Flush(sink).Run(context.Background())

	var items []*media.Packet
	for i := 0; i < 100; i++ {
		items = sink.Items()
		if len(items) == 3 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Len(t, items, 3)

	for i, pkt := range items {
		require.Equal(t, uint16(100+i), pkt.SequenceNumber)
		require.Equal(t, []byte{1, 2, 3}, pkt.Payload)
		require.Equal(t, 90000, pkt.ClockRate)
		require.Equal(t, media.KindVideo, pkt.Stream.Kind)
		require.Equal(t, media.CodecMJPEG, pkt.Stream.Codec)
		require.Equal(t, uint64(i+1), pkt.Stream.PacketCount)
		require.True(t, pkt.Synchronized())
		require.WithinDuration(t, ntpBase.Add(time.Duration(i)*100*time.Millisecond), pkt.NTP, time.Millisecond)
	}

	// wait for a receiver report that includes every packet
	serverRTCP.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	buf := make([]byte, 1500)

	for {
		n, _, err2 := serverRTCP.ReadFromUDP(buf)
		require.NoError(t, err2)

		pkts, err2 := rtcp.Unmarshal(buf[:n])
		require.NoError(t, err2)

		rr, ok := pkts[0].(*rtcp.ReceiverReport)
		require.True(t, ok)
		require.Len(t, rr.Reports, 1)
		require.Equal(t, uint32(0x1234), rr.Reports[0].SSRC)
		require.Equal(t, uint32(ntpsync.EncodeTime(ntpBase)>>16), rr.Reports[0].LastSenderReport)

		if rr.Reports[0].LastSequenceNumber == 102 {
			require.Equal(t, uint32(0), rr.Reports[0].TotalLost)
			break
		}
	}

	h.Cancel()
	require.NoError(t, h.Wait())
}

func TestSourceNoTracks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan struct{})
	defer func() { <-serverDone }()

	go func() {
		defer close(serverDone)

		conn, err2 := ln.Accept()
		require.NoError(t, err2)
		defer conn.Close()
		br := bufio.NewReader(conn)

		req := readRequest(t, br, base.Options)
		writeResponse(t, conn, base.Response{
			StatusCode: base.StatusOK,
			Header:     base.Header{"CSeq": req.Header["CSeq"]},
		})

		req = readRequest(t, br, base.Describe)
		writeResponse(t, conn, base.Response{
			StatusCode: base.StatusOK,
			Header:     base.Header{"CSeq": req.Header["CSeq"]},
			Body: []byte("v=0\r\n" +
				"o=- 0 0 IN IP4 127.0.0.1\r\n" +
				"s=Stream\r\n" +
				"t=0 0\r\n" +
				"m=audio 0 RTP/AVP 97\r\n" +
				"a=rtpmap:97 AC3/48000\r\n"),
		})
	}()

	s := &Source{
		URL:        "rtsp://" + ln.Addr().String() + "/stream",
		MediaKinds: []media.Kind{media.KindVideo},
		Parent:     test.NilLogger,
	}

	err = pipeline.From[*media.Packet](s).Build().Run(context.Background()).Wait()
	require.EqualError(t, err, "RTSP source: no tracks have been set up")
}
