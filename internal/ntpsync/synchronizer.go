// Package ntpsync maps RTP timestamps to absolute time by using RTCP sender reports.
package ntpsync

import (
	"sync"
	"time"
)

// January 1, 1900
var ntpEpoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

func multiplyAndDivide(v, m, d time.Duration) time.Duration {
	secs := v / d
	dec := v % d
	return (secs*m + dec*m/d)
}

// DecodeTime converts a 64-bit NTP timestamp into a time.Time.
func DecodeTime(v uint64) time.Time {
	secs := time.Duration(v>>32) * time.Second
	frac := time.Duration(v&0xFFFFFFFF) * time.Second >> 32
	return ntpEpoch.Add(secs + frac)
}

// EncodeTime converts a time.Time into a 64-bit NTP timestamp.
func EncodeTime(t time.Time) uint64 {
	d := t.Sub(ntpEpoch)
	secs := uint64(d / time.Second)
	frac := uint64(d%time.Second) << 32 / uint64(time.Second)
	return secs<<32 | frac
}

type reference struct {
	mutex   sync.Mutex
	ntp     time.Time
	rtpTime uint32
}

// Synchronizer stores, for each SSRC, the last (NTP, RTP) pair received in a sender report.
// Distinct SSRCs are updated independently.
type Synchronizer struct {
	mutex sync.RWMutex
	refs  map[uint32]*reference
}

func (s *Synchronizer) get(ssrc uint32, create bool) *reference {
	s.mutex.RLock()
	ref, ok := s.refs[ssrc]
	s.mutex.RUnlock()

	if ok || !create {
		return ref
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.refs == nil {
		s.refs = make(map[uint32]*reference)
	}

	ref, ok = s.refs[ssrc]
	if !ok {
		ref = &reference{}
		s.refs[ssrc] = ref
	}
	return ref
}

// ProcessSenderReport stores the timing information of a sender report.
func (s *Synchronizer) ProcessSenderReport(ssrc uint32, ntpTime uint64, rtpTime uint32) {
	ref := s.get(ssrc, true)

	ref.mutex.Lock()
	ref.ntp = DecodeTime(ntpTime)
	ref.rtpTime = rtpTime
	ref.mutex.Unlock()
}

// Convert returns the absolute time of a RTP timestamp.
// It returns false when no sender report has been received for the SSRC.
func (s *Synchronizer) Convert(ssrc uint32, rtpTime uint32, clockRate int) (time.Time, bool) {
	ref := s.get(ssrc, false)
	if ref == nil || clockRate <= 0 {
		return time.Time{}, false
	}

	ref.mutex.Lock()
	defer ref.mutex.Unlock()

	delta := time.Duration(rtpTime - ref.rtpTime)
	return ref.ntp.Add(multiplyAndDivide(delta, time.Second, time.Duration(clockRate))), true
}
