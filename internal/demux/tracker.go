// Package demux routes RTP packets and RTCP reports to per-SSRC stream state.
package demux

import (
	"sync"
	"time"

	"github.com/pion/rtcp"

	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/rtpstats"
)

const (
	maxPendingReports = 16
)

type pendingReport struct {
	sr         *rtcp.SenderReport
	receivedAt time.Time
}

type stream struct {
	mutex sync.Mutex
	ctx   media.StreamContext
	stats rtpstats.Statistics
}

func (s *stream) snapshot() media.StreamContext {
	c := s.ctx
	c.LostCount = s.stats.CumulativeLost()
	c.LastSequence = s.stats.LastSequenceNumber()
	return c
}

// Tracker keeps the context and the statistics of every SSRC received on a track.
// RTP and RTCP routines can use it concurrently; each SSRC has its own lock.
type Tracker struct {
	// overrides the payload type table, when the track's codec is known from SDP.
	Codec media.Codec

	mutex   sync.RWMutex
	streams map[uint32]*stream
	order   []uint32
	pending map[uint32][]pendingReport
}

func (t *Tracker) classify(payloadType uint8) (media.Kind, media.Codec) {
	if t.Codec != media.CodecUnknown {
		return t.Codec.Kind(), t.Codec
	}
	return media.Lookup(payloadType)
}

func (t *Tracker) get(ssrc uint32) *stream {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.streams[ssrc]
}

func (t *Tracker) getOrCreate(ssrc uint32, payloadType uint8, clockRate int, now time.Time) *stream {
	if s := t.get(ssrc); s != nil {
		return s
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if s, ok := t.streams[ssrc]; ok {
		return s
	}

	if t.streams == nil {
		t.streams = make(map[uint32]*stream)
	}

	kind, codec := t.classify(payloadType)

	s := &stream{
		ctx: media.StreamContext{
			SSRC:            ssrc,
			PayloadType:     payloadType,
			Kind:            kind,
			Codec:           codec,
			FirstPacketTime: now,
		},
		stats: rtpstats.Statistics{
			SSRC:      ssrc,
			ClockRate: clockRate,
		},
	}

	// replay reports received before the first packet,
	// before the stream becomes visible to other routines.
	for _, p := range t.pending[ssrc] {
		s.stats.ProcessSenderReport(p.sr, p.receivedAt)
	}
	delete(t.pending, ssrc)

	t.streams[ssrc] = s
	t.order = append(t.order, ssrc)

	return s
}

// ProcessPacket updates the stream the packet belongs to, creating it if needed,
// and returns a snapshot of its context.
func (t *Tracker) ProcessPacket(pkt *media.Packet) media.StreamContext {
	s := t.getOrCreate(pkt.SSRC, pkt.PayloadType, pkt.ClockRate, pkt.ReceivedAt)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stats.ProcessPacket(pkt.SequenceNumber, pkt.Timestamp, pkt.ReceivedAt)
	s.ctx.LastPacketTime = pkt.ReceivedAt
	s.ctx.PacketCount++

	return s.snapshot()
}

// ProcessSenderReport routes a sender report to the statistics of its SSRC.
// If no packet has been received for the SSRC yet, the report is queued and
// replayed once the stream is created.
func (t *Tracker) ProcessSenderReport(sr *rtcp.SenderReport, receivedAt time.Time) {
	s := t.get(sr.SSRC)

	if s == nil {
		t.mutex.Lock()

		// the stream may have been created in the meantime
		s = t.streams[sr.SSRC]

		if s == nil {
			if t.pending == nil {
				t.pending = make(map[uint32][]pendingReport)
			}
			queue := t.pending[sr.SSRC]
			if len(queue) == maxPendingReports {
				queue = queue[1:]
			}
			t.pending[sr.SSRC] = append(queue, pendingReport{sr, receivedAt})
			t.mutex.Unlock()
			return
		}

		t.mutex.Unlock()
	}

	s.mutex.Lock()
	s.stats.ProcessSenderReport(sr, receivedAt)
	s.mutex.Unlock()
}

// Pending returns the number of sender reports waiting for their stream.
func (t *Tracker) Pending(ssrc uint32) int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.pending[ssrc])
}

// Stream returns a snapshot of the context of a SSRC.
func (t *Tracker) Stream(ssrc uint32) (media.StreamContext, bool) {
	s := t.get(ssrc)
	if s == nil {
		return media.StreamContext{}, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.snapshot(), true
}

// Streams returns snapshots of all the streams, in order of creation.
func (t *Tracker) Streams() []media.StreamContext {
	t.mutex.RLock()
	order := append([]uint32(nil), t.order...)
	t.mutex.RUnlock()

	out := make([]media.StreamContext, 0, len(order))
	for _, ssrc := range order {
		if c, ok := t.Stream(ssrc); ok {
			out = append(out, c)
		}
	}
	return out
}

// Jitter returns the interarrival jitter of a SSRC in seconds.
func (t *Tracker) Jitter(ssrc uint32) float64 {
	s := t.get(ssrc)
	if s == nil {
		return 0
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats.Jitter()
}

// ReceiverReport builds a receiver report with one block for each stream.
// It returns nil when no stream exists yet.
func (t *Tracker) ReceiverReport(localSSRC uint32, now time.Time) *rtcp.ReceiverReport {
	t.mutex.RLock()
	order := append([]uint32(nil), t.order...)
	t.mutex.RUnlock()

	if len(order) == 0 {
		return nil
	}

	rr := &rtcp.ReceiverReport{
		SSRC: localSSRC,
	}

	for _, ssrc := range order {
		s := t.get(ssrc)
		s.mutex.Lock()
		rr.Reports = append(rr.Reports, s.stats.ReportBlock(now))
		s.mutex.Unlock()
	}

	return rr
}
