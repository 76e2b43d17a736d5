package core

import (
	"time"

	"github.com/ovframework/ovf/internal/assembler"
	"github.com/ovframework/ovf/internal/conf"
	"github.com/ovframework/ovf/internal/externalcmd"
	"github.com/ovframework/ovf/internal/filter"
	"github.com/ovframework/ovf/internal/frame"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/metrics"
	"github.com/ovframework/ovf/internal/pipeline"
	"github.com/ovframework/ovf/internal/sinks/file"
	"github.com/ovframework/ovf/internal/sinks/mjpeg"
	"github.com/ovframework/ovf/internal/sources/rtsp"
)

// newPipeline builds
//
//	RTSP source -> stream filter -> assembler -+-> audio frame filter -> audio file sink
//	                                           +-> video frame filter -+-> MJPEG sink
//	                                                                   +-> video file sink
//
// omitting the disabled sinks.
func newPipeline(
	cnf *conf.Conf,
	m *metrics.Metrics,
	externalCmdPool *externalcmd.Pool,
	parent logger.Writer,
) *pipeline.Pipeline {
	src := &rtsp.Source{
		URL:         cnf.Source,
		User:        cnf.RTSPUser,
		Pass:        cnf.RTSPPass,
		ReadTimeout: time.Duration(cnf.ReadTimeout),
		MediaKinds:  cnf.MediaKinds,
		Metrics:     m,
		Parent:      parent,
	}

	packets := pipeline.To[*media.Packet, *media.Packet](pipeline.From[*media.Packet](src), &filter.Streams{
		Kinds:  cnf.MediaKinds,
		Codecs: cnf.Codecs,
		Parent: parent,
	})

	frames := pipeline.To[*media.Packet, frame.Frame](packets, &assembler.Unit{
		Metrics: m,
		Parent:  parent,
	})

	newFileSink := func(kind media.Kind, pathFormat string) *file.Sink {
		return &file.Sink{
			Kind:                 kind,
			PathFormat:           pathFormat,
			SegmentDuration:      cnf.RecordSegmentDuration,
			SegmentMaxSize:       cnf.RecordSegmentMaxSize,
			RunOnSegmentComplete: cnf.RunOnSegmentComplete,
			ExternalCmdPool:      externalCmdPool,
			Metrics:              m,
			Parent:               parent,
		}
	}

	if cnf.RecordAudio {
		frames = frames.Branch(func(g *pipeline.Graph[frame.Frame]) {
			pipeline.To[frame.Frame, frame.Frame](g, &filter.Frames{Kind: media.KindAudio}).
				Flush(newFileSink(media.KindAudio, cnf.RecordAudioPath))
		})
	}

	if !cnf.MJPEG && !cnf.RecordVideo {
		return frames.Build()
	}

	video := pipeline.To[frame.Frame, frame.Frame](frames, &filter.Frames{Kind: media.KindVideo})

	var mjpegSink *mjpeg.Sink
	if cnf.MJPEG {
		mjpegSink = &mjpeg.Sink{
			Address:     cnf.MJPEGAddress,
			Route:       cnf.MJPEGRoute,
			QueueSize:   cnf.MJPEGQueueSize,
			ReadTimeout: cnf.ReadTimeout,
			Metrics:     m,
			Parent:      parent,
		}
	}

	switch {
	case cnf.MJPEG && cnf.RecordVideo:
		return video.
			Branch(func(g *pipeline.Graph[frame.Frame]) {
				g.Flush(mjpegSink)
			}).
			Flush(newFileSink(media.KindVideo, cnf.RecordVideoPath))

	case cnf.MJPEG:
		return video.Flush(mjpegSink)

	default:
		return video.Flush(newFileSink(media.KindVideo, cnf.RecordVideoPath))
	}
}
