// Package rtsp contains the RTSP source.
package rtsp

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"slices"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"golang.org/x/sync/errgroup"

	"github.com/ovframework/ovf/internal/demux"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/metrics"
	"github.com/ovframework/ovf/internal/ntpsync"
	"github.com/ovframework/ovf/internal/pipeline"
	prtsp "github.com/ovframework/ovf/internal/protocols/rtsp"
)

const (
	defaultReceiverReportPeriod = 5 * time.Second

	// 1500 (UDP MTU) - 20 (IP header) - 8 (UDP header)
	udpMaxPayloadSize = 1472
)

type sourceParent interface {
	logger.Writer
}

type receiver struct {
	track   *prtsp.Track
	tracker *demux.Tracker
}

// Source is a pipeline source that reads RTP packets from a RTSP server.
// It never reconnects: once the session fails, the pipeline has to be restarted.
type Source struct {
	URL                  string
	User                 string
	Pass                 string
	ReadTimeout          time.Duration
	MediaKinds           []media.Kind
	ReceiverReportPeriod time.Duration
	Metrics              *metrics.Metrics
	Parent               sourceParent

	client        *prtsp.Client
	receivers     []*receiver
	sync          ntpsync.Synchronizer
	localSSRC     uint32
	limitedLogger logger.Writer
}

// String implements fmt.Stringer.
func (*Source) String() string {
	return "RTSP source"
}

// Log implements logger.Writer.
func (s *Source) Log(level logger.Level, format string, args ...interface{}) {
	s.Parent.Log(level, "[RTSP source] "+format, args...)
}

func (s *Source) kindAllowed(k media.Kind) bool {
	return len(s.MediaKinds) == 0 || slices.Contains(s.MediaKinds, k)
}

// Prepare implements pipeline.Source.
// It negotiates the session and sets up every allowed track.
func (s *Source) Prepare(ctx context.Context) error {
	if s.ReceiverReportPeriod == 0 {
		s.ReceiverReportPeriod = defaultReceiverReportPeriod
	}

	s.limitedLogger = logger.NewLimitedLogger(s)
	s.localSSRC = rand.Uint32()

	s.client = &prtsp.Client{
		URL:         s.URL,
		User:        s.User,
		Pass:        s.Pass,
		ReadTimeout: s.ReadTimeout,
		Parent:      s,
	}

	s.Log(logger.Debug, "connecting")

	err := s.client.Connect(ctx)
	if err != nil {
		return err
	}

	err = s.client.Options(ctx)
	if err != nil {
		return err
	}

	tracks, err := s.client.Describe(ctx)
	if err != nil {
		return err
	}

	for _, md := range tracks {
		if !s.kindAllowed(md.Kind) {
			s.Log(logger.Info, "track %s skipped, media kind is %v", md.Control, md.Kind)
			continue
		}

		var track *prtsp.Track
		track, err = s.client.Setup(ctx, md)
		if err != nil {
			return err
		}

		r := &receiver{
			track:   track,
			tracker: &demux.Tracker{},
		}

		// codecs with dynamic payload types can be identified through SDP only
		if md.Codec == media.CodecMJPEG || md.Codec == media.CodecAC3 {
			r.tracker.Codec = md.Codec
		}

		s.receivers = append(s.receivers, r)

		s.Log(logger.Info, "track %s set up, %v %v, RTP port %d",
			md.Control, md.Kind, md.Codec, track.RTPConn.LocalAddr().(*net.UDPAddr).Port)
	}

	if len(s.receivers) == 0 {
		return fmt.Errorf("no tracks have been set up")
	}

	return nil
}

// Produce implements pipeline.Source.
func (s *Source) Produce(ctx context.Context, out pipeline.Writer[*media.Packet]) error {
	err := s.client.Play(ctx)
	if err != nil {
		return err
	}

	s.Log(logger.Info, "playing")

	g, gctx := errgroup.WithContext(ctx)

	// unblock socket reads when the run is over
	stop := context.AfterFunc(gctx, func() {
		for _, r := range s.receivers {
			r.track.RTPConn.SetReadDeadline(time.Now())  //nolint:errcheck
			r.track.RTCPConn.SetReadDeadline(time.Now()) //nolint:errcheck
		}
	})
	defer stop()

	for _, r := range s.receivers {
		r := r
		g.Go(func() error { return s.runRTP(gctx, r, out) })
		g.Go(func() error { return s.runRTCP(gctx, r) })
		g.Go(func() error { return s.runReceiverReports(gctx, r) })
	}

	err = g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Source) runRTP(ctx context.Context, r *receiver, out pipeline.Writer[*media.Packet]) error {
	md := r.track.Metadata
	buf := make([]byte, udpMaxPayloadSize+1)

	for {
		n, _, err := r.track.RTPConn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		now := time.Now()

		if n > udpMaxPayloadSize {
			s.limitedLogger.Log(logger.Warn, "RTP packet is too big to be read with UDP")
			continue
		}

		var pkt rtp.Packet
		err = pkt.Unmarshal(append([]byte(nil), buf[:n]...))
		if err != nil {
			s.limitedLogger.Log(logger.Warn, "invalid RTP packet: %v", err)
			continue
		}

		mp := &media.Packet{
			Packet:     &pkt,
			ClockRate:  md.ClockRate,
			ReceivedAt: now,
		}

		mp.Stream = r.tracker.ProcessPacket(mp)

		if ntp, ok := s.sync.Convert(pkt.SSRC, pkt.Timestamp, md.ClockRate); ok {
			mp.Stamp(ntp)
		}

		s.Metrics.SetStream(mp.Stream, r.tracker.Jitter(pkt.SSRC))

		err = out.Send(ctx, mp)
		if err != nil {
			return err
		}
	}
}

func (s *Source) runRTCP(ctx context.Context, r *receiver) error {
	buf := make([]byte, udpMaxPayloadSize+1)

	for {
		n, _, err := r.track.RTCPConn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		now := time.Now()

		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			s.limitedLogger.Log(logger.Warn, "invalid RTCP packet: %v", err)
			continue
		}

		for _, pkt := range pkts {
			if sr, ok := pkt.(*rtcp.SenderReport); ok {
				r.tracker.ProcessSenderReport(sr, now)
				s.sync.ProcessSenderReport(sr.SSRC, sr.NTPTime, sr.RTPTime)
			}
		}
	}
}

func (s *Source) runReceiverReports(ctx context.Context, r *receiver) error {
	t := time.NewTicker(s.ReceiverReportPeriod)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			rr := r.tracker.ReceiverReport(s.localSSRC, time.Now())
			if rr == nil {
				continue
			}

			byts, err := rr.Marshal()
			if err != nil {
				return err
			}

			_, err = r.track.RTCPConn.WriteToUDP(byts, r.track.ServerRTCPAddr)
			if err != nil {
				s.limitedLogger.Log(logger.Warn, "unable to send receiver report: %v", err)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close implements pipeline.Closer.
func (s *Source) Close() error {
	s.Metrics.ResetStreams()

	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
