package media

import (
	"time"

	"github.com/pion/rtp"
)

// Packet is a decoded RTP packet together with its receive context.
type Packet struct {
	*rtp.Packet

	// clock rate of the track the packet was received on
	ClockRate int

	// time of receipt
	ReceivedAt time.Time

	// absolute time, set when a NTP mapping exists for the SSRC
	NTP time.Time

	// stream the packet belongs to
	Stream StreamContext
}

// Synchronized returns whether the packet has been stamped with an absolute time.
func (p *Packet) Synchronized() bool {
	return !p.NTP.IsZero()
}

// Stamp sets the absolute time of the packet. It is effective only once.
func (p *Packet) Stamp(ntp time.Time) {
	if p.NTP.IsZero() {
		p.NTP = ntp
	}
}
