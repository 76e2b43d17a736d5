// Package file contains a sink that records the frames of a media kind into segment files.
package file

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ovframework/ovf/internal/conf"
	"github.com/ovframework/ovf/internal/externalcmd"
	"github.com/ovframework/ovf/internal/frame"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/metrics"
	"github.com/ovframework/ovf/internal/pipeline"
)

// frames are placed on the timeline by their absolute time when available.
func frameTime(b *frame.Base) time.Time {
	if !b.NTP.IsZero() {
		return b.NTP
	}
	if !b.ReceivedAt.IsZero() {
		return b.ReceivedAt
	}
	return time.Now()
}

type sinkParent interface {
	logger.Writer
}

// Sink writes the raw data of frames into segment files.
// A new segment is started when the current one exceeds SegmentDuration or SegmentMaxSize.
type Sink struct {
	Kind                 media.Kind
	PathFormat           string
	SegmentDuration      conf.StringDuration
	SegmentMaxSize       conf.StringSize
	RunOnSegmentComplete string
	ExternalCmdPool      *externalcmd.Pool
	Metrics              *metrics.Metrics
	Parent               sinkParent

	cur *segment
}

// String implements fmt.Stringer.
func (s *Sink) String() string {
	return s.Kind.String() + " file sink"
}

// Log implements logger.Writer.
func (s *Sink) Log(level logger.Level, format string, args ...interface{}) {
	s.Parent.Log(level, "[%s recorder] "+format, append([]interface{}{s.Kind}, args...)...)
}

// Prepare implements pipeline.Sink.
func (s *Sink) Prepare(_ context.Context) error {
	if s.PathFormat == "" {
		return fmt.Errorf("path format is empty")
	}
	if s.SegmentDuration <= 0 {
		return fmt.Errorf("invalid segment duration: %v", time.Duration(s.SegmentDuration))
	}
	if s.SegmentMaxSize == 0 {
		return fmt.Errorf("invalid segment max size: 0")
	}

	s.Log(logger.Info, "recording to %s", s.PathFormat)
	return nil
}

// Consume implements pipeline.Sink.
func (s *Sink) Consume(ctx context.Context, in pipeline.Reader[frame.Frame]) error {
	return pipeline.ForEach(ctx, in, func(fr frame.Frame) error {
		if fr.Kind() != s.Kind {
			return nil
		}

		return s.write(fr.GetBase())
	})
}

func (s *Sink) write(b *frame.Base) error {
	t := frameTime(b)

	if s.cur != nil && (t.Sub(s.cur.start) >= time.Duration(s.SegmentDuration) ||
		s.cur.size+uint64(len(b.Data)) > uint64(s.SegmentMaxSize)) {
		cur := s.cur
		s.cur = nil

		err := cur.close()
		if err != nil {
			return err
		}
	}

	if s.cur == nil {
		s.cur = &segment{
			s:     s,
			start: t,
		}
		err := s.cur.initialize()
		if err != nil {
			s.cur = nil
			return err
		}
	}

	return s.cur.write(t, b.Data)
}

// Close implements pipeline.Closer.
func (s *Sink) Close() error {
	if s.cur == nil {
		return nil
	}

	err := s.cur.close()
	s.cur = nil
	return err
}

func (s *Sink) onSegmentComplete(path string, duration time.Duration) {
	s.Log(logger.Info, "segment %s completed", path)
	s.Metrics.SegmentCompleted(s.Kind)

	if s.RunOnSegmentComplete == "" || s.ExternalCmdPool == nil {
		return
	}

	s.Log(logger.Info, "runOnSegmentComplete command launched")
	externalcmd.NewCmd(
		s.ExternalCmdPool,
		s.RunOnSegmentComplete,
		externalcmd.Environment{
			"OVF_SEGMENT_PATH":     path,
			"OVF_SEGMENT_DURATION": strconv.FormatFloat(duration.Seconds(), 'f', -1, 64),
		},
		func(err error) {
			if err != nil {
				s.Log(logger.Warn, "runOnSegmentComplete command exited: %v", err)
			}
		})
}
