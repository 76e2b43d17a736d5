// Package rtpstats contains RTP reception statistics, computed as described in RFC 3550.
package rtpstats

import (
	"math"
	"time"

	"github.com/pion/rtcp"
)

const (
	maxCumulativeLost = 0x7FFFFF
	minCumulativeLost = -0x800000
)

// Statistics are the reception statistics of a single SSRC.
// They are not safe for concurrent use.
type Statistics struct {
	SSRC      uint32
	ClockRate int

	initialized bool
	baseSeq     uint16
	maxSeq      uint16
	cycles      uint32
	received    uint64

	expectedPrior uint64
	receivedPrior uint64

	lastArrival time.Time
	lastRTPTime uint32
	jitter      float64

	lastSRNTP      uint64
	lastSRReceived time.Time
}

// ProcessPacket updates the statistics with a received RTP packet.
func (s *Statistics) ProcessPacket(seq uint16, rtpTime uint32, receivedAt time.Time) {
	s.received++

	if !s.initialized {
		s.initialized = true
		s.baseSeq = seq
		s.maxSeq = seq
		s.lastArrival = receivedAt
		s.lastRTPTime = rtpTime
		return
	}

	// packets in the forward half of the sequence space advance the maximum.
	// a new maximum that is numerically lower than the current one is a wrap.
	if diff := seq - s.maxSeq; diff != 0 && diff < 0x8000 {
		if seq < s.maxSeq {
			s.cycles++
		}
		s.maxSeq = seq
	}

	// jitter is undefined without a clock rate
	if s.ClockRate > 0 {
		arrivalDiff := receivedAt.Sub(s.lastArrival).Seconds()
		rtpDiff := float64(int32(rtpTime-s.lastRTPTime)) / float64(s.ClockRate)
		deviation := math.Abs(arrivalDiff - rtpDiff)
		s.jitter += (deviation - s.jitter) / 16
	}

	s.lastArrival = receivedAt
	s.lastRTPTime = rtpTime
}

// ProcessSenderReport stores the timing information of a sender report.
func (s *Statistics) ProcessSenderReport(sr *rtcp.SenderReport, receivedAt time.Time) {
	s.lastSRNTP = sr.NTPTime
	s.lastSRReceived = receivedAt
}

// Initialized returns whether at least one packet has been processed.
func (s *Statistics) Initialized() bool {
	return s.initialized
}

// Received returns the number of received packets.
func (s *Statistics) Received() uint64 {
	return s.received
}

// LastSequenceNumber returns the highest sequence number received.
func (s *Statistics) LastSequenceNumber() uint16 {
	return s.maxSeq
}

// ExtendedHighestSequenceNumber returns the highest sequence number received, extended with the cycle count.
func (s *Statistics) ExtendedHighestSequenceNumber() uint32 {
	return s.cycles<<16 | uint32(s.maxSeq)
}

func (s *Statistics) expected() uint64 {
	return uint64(s.ExtendedHighestSequenceNumber()) - uint64(s.baseSeq) + 1
}

// CumulativeLost returns the number of lost packets, clamped to a signed 24-bit value.
func (s *Statistics) CumulativeLost() int64 {
	if !s.initialized {
		return 0
	}

	lost := int64(s.expected()) - int64(s.received)

	switch {
	case lost > maxCumulativeLost:
		return maxCumulativeLost
	case lost < minCumulativeLost:
		return minCumulativeLost
	}
	return lost
}

// Jitter returns the interarrival jitter in seconds.
func (s *Statistics) Jitter() float64 {
	return s.jitter
}

// ReportBlock generates a reception report and starts a new reporting interval.
func (s *Statistics) ReportBlock(now time.Time) rtcp.ReceptionReport {
	expected := s.expected()

	expectedInterval := int64(expected - s.expectedPrior)
	receivedInterval := int64(s.received - s.receivedPrior)
	lostInterval := expectedInterval - receivedInterval

	var fractionLost uint8
	if expectedInterval > 0 && lostInterval > 0 {
		v := (lostInterval << 8) / expectedInterval
		if v > 255 {
			v = 255
		}
		fractionLost = uint8(v)
	}

	s.expectedPrior = expected
	s.receivedPrior = s.received

	var dlsr uint32
	if !s.lastSRReceived.IsZero() {
		dlsr = uint32(math.Round(now.Sub(s.lastSRReceived).Seconds() * 65536))
	}

	return rtcp.ReceptionReport{
		SSRC:               s.SSRC,
		FractionLost:       fractionLost,
		TotalLost:          uint32(int32(s.CumulativeLost())) & 0xFFFFFF,
		LastSequenceNumber: s.ExtendedHighestSequenceNumber(),
		Jitter:             uint32(math.Round(s.jitter * float64(s.ClockRate))),
		LastSenderReport:   uint32(s.lastSRNTP >> 16),
		Delay:              dlsr,
	}
}
