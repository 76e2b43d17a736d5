package rtsp

import (
	"fmt"
	"math/rand"
	"net"
)

const (
	udpMinPort      = 10000
	udpMaxPort      = 65534
	udpPairAttempts = 100
)

// listenPair opens a couple of UDP sockets on consecutive ports,
// the first one being even.
func listenPair() (*net.UDPConn, *net.UDPConn, error) {
	for i := 0; i < udpPairAttempts; i++ {
		port := udpMinPort + rand.Intn((udpMaxPort-udpMinPort)/2)*2

		rtpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
		if err != nil {
			continue
		}

		rtcpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port + 1})
		if err != nil {
			rtpConn.Close()
			continue
		}

		return rtpConn, rtcpConn, nil
	}

	return nil, nil, fmt.Errorf("unable to find a free UDP port pair")
}
