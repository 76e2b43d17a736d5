// Package metrics contains the metrics provider.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovframework/ovf/internal/conf"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/protocols/httpp"
)

func ssrcLabel(ssrc uint32) string {
	return fmt.Sprintf("%08x", ssrc)
}

type metricsParent interface {
	logger.Writer
}

// Metrics is a Prometheus metrics exporter.
// All methods can be called on a nil *Metrics, in which case they do nothing.
type Metrics struct {
	Address     string
	ReadTimeout conf.StringDuration
	Parent      metricsParent

	registry        *prometheus.Registry
	packets         *prometheus.GaugeVec
	lost            *prometheus.GaugeVec
	jitter          *prometheus.GaugeVec
	framesAssembled *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	mjpegClients    prometheus.Gauge
	segments        *prometheus.CounterVec
	restarts        prometheus.Counter
	httpServer      *httpp.Server
}

// Initialize initializes Metrics.
func (m *Metrics) Initialize() error {
	m.registry = prometheus.NewRegistry()
	f := promauto.With(m.registry)

	m.packets = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ovf_stream_packets",
		Help: "Number of RTP packets received by stream",
	}, []string{"ssrc", "kind", "codec"})

	m.lost = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ovf_stream_packets_lost",
		Help: "Cumulative number of RTP packets lost by stream",
	}, []string{"ssrc", "kind", "codec"})

	m.jitter = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ovf_stream_jitter_seconds",
		Help: "Interarrival jitter by stream",
	}, []string{"ssrc", "kind", "codec"})

	m.framesAssembled = f.NewCounterVec(prometheus.CounterOpts{
		Name: "ovf_frames_assembled_total",
		Help: "Number of frames assembled",
	}, []string{"codec"})

	m.framesDropped = f.NewCounterVec(prometheus.CounterOpts{
		Name: "ovf_frames_dropped_total",
		Help: "Number of frames dropped during assembly",
	}, []string{"codec"})

	m.mjpegClients = f.NewGauge(prometheus.GaugeOpts{
		Name: "ovf_mjpeg_clients",
		Help: "Number of connected MJPEG clients",
	})

	m.segments = f.NewCounterVec(prometheus.CounterOpts{
		Name: "ovf_record_segments_total",
		Help: "Number of completed recording segments",
	}, []string{"kind"})

	m.restarts = f.NewCounter(prometheus.CounterOpts{
		Name: "ovf_pipeline_restarts_total",
		Help: "Number of pipeline restarts",
	})

	router := gin.New()
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))

	m.httpServer = &httpp.Server{
		Address:     m.Address,
		ReadTimeout: time.Duration(m.ReadTimeout),
		Handler:     router,
		Parent:      m,
	}
	err := m.httpServer.Initialize()
	if err != nil {
		return err
	}

	m.Log(logger.Info, "listener opened on "+m.httpServer.Addr().String())

	return nil
}

// Close closes Metrics.
func (m *Metrics) Close() {
	m.Log(logger.Info, "listener is closing")
	m.httpServer.Close()
}

// Log implements logger.Writer.
func (m *Metrics) Log(level logger.Level, format string, args ...interface{}) {
	m.Parent.Log(level, "[metrics] "+format, args...)
}

// SetStream updates the counters of a RTP stream.
func (m *Metrics) SetStream(sc media.StreamContext, jitter float64) {
	if m == nil {
		return
	}

	labels := prometheus.Labels{
		"ssrc":  ssrcLabel(sc.SSRC),
		"kind":  sc.Kind.String(),
		"codec": sc.Codec.String(),
	}

	m.packets.With(labels).Set(float64(sc.PacketCount))
	m.lost.With(labels).Set(float64(sc.LostCount))
	m.jitter.With(labels).Set(jitter)
}

// ResetStreams removes the counters of all streams.
func (m *Metrics) ResetStreams() {
	if m == nil {
		return
	}

	m.packets.Reset()
	m.lost.Reset()
	m.jitter.Reset()
}

// FrameAssembled increments the assembled frame counter.
func (m *Metrics) FrameAssembled(codec media.Codec) {
	if m == nil {
		return
	}
	m.framesAssembled.WithLabelValues(codec.String()).Inc()
}

// FrameDropped increments the dropped frame counter.
func (m *Metrics) FrameDropped(codec media.Codec) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(codec.String()).Inc()
}

// SetMJPEGClients sets the number of MJPEG clients.
func (m *Metrics) SetMJPEGClients(n int) {
	if m == nil {
		return
	}
	m.mjpegClients.Set(float64(n))
}

// SegmentCompleted increments the completed segment counter.
func (m *Metrics) SegmentCompleted(kind media.Kind) {
	if m == nil {
		return
	}
	m.segments.WithLabelValues(kind.String()).Inc()
}

// PipelineRestarted increments the restart counter.
func (m *Metrics) PipelineRestarted() {
	if m == nil {
		return
	}
	m.restarts.Inc()
}

// String implements fmt.Stringer.
func (m *Metrics) String() string {
	return "metrics on " + strconv.Quote(m.Address)
}
