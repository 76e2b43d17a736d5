package ntpsync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeCodec(t *testing.T) {
	tm := time.Date(2021, 6, 1, 12, 30, 15, 500000000, time.UTC)
	v := EncodeTime(tm)
	require.Equal(t, uint64(0x80000000), v&0xFFFFFFFF)
	require.Equal(t, tm, DecodeTime(v))
}

func TestConvertBeforeSenderReport(t *testing.T) {
	var s Synchronizer
	_, ok := s.Convert(1234, 0, 90000)
	require.False(t, ok)
}

func TestConvert(t *testing.T) {
	for _, ca := range []struct {
		name      string
		clockRate int
		t0        uint32
		rtpTime   uint32
		offset    time.Duration
	}{
		{"one second", 90000, 100000, 190000, time.Second},
		{"audio", 48000, 5000, 5000 + 24000, 500 * time.Millisecond},
		{"wraparound", 90000, 0xFFFFFFFF - 44999, 45000, time.Second},
		{"same timestamp", 8000, 42, 42, 0},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var s Synchronizer

			const secs = 3900000000
			s.ProcessSenderReport(1234, secs<<32, ca.t0)

			ntp, ok := s.Convert(1234, ca.rtpTime, ca.clockRate)
			require.True(t, ok)
			require.Equal(t, ntpEpoch.Add(secs*time.Second+ca.offset), ntp)

			_, ok = s.Convert(5678, ca.rtpTime, ca.clockRate)
			require.False(t, ok)
		})
	}
}

func TestConcurrentSSRCs(t *testing.T) {
	var s Synchronizer
	var wg sync.WaitGroup

	for i := uint32(0); i < 8; i++ {
		wg.Add(1)
		go func(ssrc uint32) {
			defer wg.Done()
			for j := uint32(0); j < 100; j++ {
				s.ProcessSenderReport(ssrc, uint64(j)<<32, j*90000)
				_, ok := s.Convert(ssrc, j*90000, 90000)
				require.True(t, ok)
			}
		}(i)
	}

	wg.Wait()
}
