package demux

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/ovframework/ovf/internal/media"
)

func newPacket(ssrc uint32, pt uint8, seq uint16, ts uint32, receivedAt time.Time) *media.Packet {
	return &media.Packet{
		Packet: &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    pt,
				SequenceNumber: seq,
				Timestamp:      ts,
				SSRC:           ssrc,
			},
		},
		ClockRate:  90000,
		ReceivedAt: receivedAt,
	}
}

func TestTrackerCreatesContext(t *testing.T) {
	var tr Tracker
	t0 := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

	c := tr.ProcessPacket(newPacket(0x1111, 26, 100, 0, t0))
	require.Equal(t, media.StreamContext{
		SSRC:            0x1111,
		PayloadType:     26,
		Kind:            media.KindVideo,
		Codec:           media.CodecMJPEG,
		FirstPacketTime: t0,
		LastPacketTime:  t0,
		PacketCount:     1,
		LostCount:       0,
		LastSequence:    100,
	}, c)

	c = tr.ProcessPacket(newPacket(0x1111, 26, 103, 3000, t0.Add(time.Second)))
	require.Equal(t, uint64(2), c.PacketCount)
	require.Equal(t, int64(2), c.LostCount)
	require.Equal(t, uint16(103), c.LastSequence)
	require.Equal(t, t0, c.FirstPacketTime)
	require.Equal(t, t0.Add(time.Second), c.LastPacketTime)

	c = tr.ProcessPacket(newPacket(0x2222, 111, 1, 0, t0))
	require.Equal(t, media.KindUnknown, c.Kind)
	require.Equal(t, media.CodecUnknown, c.Codec)

	require.Len(t, tr.Streams(), 2)
}

func TestTrackerCodecOverride(t *testing.T) {
	tr := Tracker{Codec: media.CodecAC3}
	c := tr.ProcessPacket(newPacket(0x1111, 97, 1, 0, time.Now()))
	require.Equal(t, media.KindAudio, c.Kind)
	require.Equal(t, media.CodecAC3, c.Codec)
}

func TestTrackerPendingSenderReport(t *testing.T) {
	var tr Tracker
	t0 := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

	require.Nil(t, tr.ReceiverReport(1, t0))

	tr.ProcessSenderReport(&rtcp.SenderReport{
		SSRC:    0x1111,
		NTPTime: 0x0000AAAABBBB0000,
	}, t0)
	require.Equal(t, 1, tr.Pending(0x1111))

	tr.ProcessPacket(newPacket(0x1111, 26, 1, 0, t0))
	require.Equal(t, 0, tr.Pending(0x1111))

	rr := tr.ReceiverReport(0x9999, t0.Add(time.Second))
	require.NotNil(t, rr)
	require.Equal(t, uint32(0x9999), rr.SSRC)
	require.Len(t, rr.Reports, 1)
	require.Equal(t, uint32(0x1111), rr.Reports[0].SSRC)
	require.Equal(t, uint32(0xAAAABBBB), rr.Reports[0].LastSenderReport)
	require.Equal(t, uint32(65536), rr.Reports[0].Delay)
}

func TestTrackerPendingLimit(t *testing.T) {
	var tr Tracker
	for i := 0; i < 100; i++ {
		tr.ProcessSenderReport(&rtcp.SenderReport{SSRC: 5}, time.Now())
	}
	require.Equal(t, maxPendingReports, tr.Pending(5))
}

func TestTrackerIndependentReports(t *testing.T) {
	var tr Tracker
	t0 := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := uint16(0); i < 10; i++ {
		tr.ProcessPacket(newPacket(1, 26, i, uint32(i)*3000, t0))
		if i != 5 {
			tr.ProcessPacket(newPacket(2, 99, i, uint32(i)*3000, t0))
		}
	}

	rr := tr.ReceiverReport(0x9999, t0)
	require.Len(t, rr.Reports, 2)
	require.Equal(t, uint32(0), rr.Reports[0].TotalLost)
	require.Equal(t, uint32(1), rr.Reports[1].TotalLost)
	require.Equal(t, uint8((1<<8)/10), rr.Reports[1].FractionLost)
}
