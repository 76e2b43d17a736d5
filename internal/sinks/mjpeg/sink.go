// Package mjpeg contains the MJPEG HTTP sink.
package mjpeg

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ovframework/ovf/internal/asyncwriter"
	"github.com/ovframework/ovf/internal/conf"
	"github.com/ovframework/ovf/internal/frame"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/metrics"
	"github.com/ovframework/ovf/internal/pipeline"
	"github.com/ovframework/ovf/internal/protocols/httpp"
	"github.com/ovframework/ovf/internal/websocket"
)

const (
	boundary         = "frame"
	defaultQueueSize = 10
)

func writePart(w http.ResponseWriter, data []byte) error {
	_, err := w.Write([]byte("--" + boundary + "\r\n" +
		"Content-Type: image/jpeg\r\n" +
		"Content-Length: " + strconv.FormatInt(int64(len(data)), 10) + "\r\n\r\n"))
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	if err != nil {
		return err
	}

	_, err = w.Write([]byte("\r\n"))
	if err != nil {
		return err
	}

	w.(http.Flusher).Flush()
	return nil
}

type client struct {
	id     uuid.UUID
	addr   string
	parent logger.Writer
	writer *asyncwriter.Writer
	write  func([]byte) error
}

func (c *client) Log(level logger.Level, format string, args ...interface{}) {
	c.parent.Log(level, "[client %v] "+format, append([]interface{}{c.id}, args...)...)
}

type sinkParent interface {
	logger.Writer
}

// Sink serves MJPEG frames to HTTP clients, as a multipart stream,
// as a single snapshot or through a WebSocket.
type Sink struct {
	Address     string
	Route       string
	QueueSize   int
	ReadTimeout conf.StringDuration
	Metrics     *metrics.Metrics
	Parent      sinkParent

	ctx        context.Context
	ctxCancel  func()
	httpServer *httpp.Server

	mutex   sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

// String implements fmt.Stringer.
func (s *Sink) String() string {
	return "MJPEG sink"
}

// InboundEdge implements pipeline.EdgeConfigurer.
func (s *Sink) InboundEdge() pipeline.EdgeConfig {
	return pipeline.EdgeConfig{
		Capacity: s.queueSize(),
		Policy:   pipeline.DropOldest,
	}
}

func (s *Sink) queueSize() int {
	if s.QueueSize <= 0 {
		return defaultQueueSize
	}
	return s.QueueSize
}

// Prepare implements pipeline.Sink.
func (s *Sink) Prepare(_ context.Context) error {
	if !strings.HasPrefix(s.Route, "/") {
		return fmt.Errorf("invalid route: '%s'", s.Route)
	}

	s.ctx, s.ctxCancel = context.WithCancel(context.Background())
	s.clients = make(map[*client]struct{})

	base := strings.TrimSuffix(s.Route, "/")

	router := gin.New()
	router.GET(s.Route, s.onStream)
	router.GET(base+"/snapshot", s.onSnapshot)
	router.GET(base+"/ws", s.onWebSocket)

	s.httpServer = &httpp.Server{
		Address:     s.Address,
		ReadTimeout: time.Duration(s.ReadTimeout),
		Handler:     router,
		Parent:      s,
	}
	err := s.httpServer.Initialize()
	if err != nil {
		s.ctxCancel()
		s.httpServer = nil
		return err
	}

	s.Log(logger.Info, "listener opened on %s, route %s", s.httpServer.Addr(), s.Route)

	return nil
}

// Close implements pipeline.Closer.
func (s *Sink) Close() error {
	if s.httpServer == nil {
		return nil
	}

	s.Log(logger.Info, "listener is closing")
	s.ctxCancel()
	s.httpServer.Close()
	s.Metrics.SetMJPEGClients(0)
	return nil
}

// Log implements logger.Writer.
func (s *Sink) Log(level logger.Level, format string, args ...interface{}) {
	s.Parent.Log(level, "[MJPEG] "+format, args...)
}

// Consume implements pipeline.Sink.
func (s *Sink) Consume(ctx context.Context, in pipeline.Reader[frame.Frame]) error {
	return pipeline.ForEach(ctx, in, func(fr frame.Frame) error {
		base := fr.GetBase()
		if base.Codec != media.CodecMJPEG {
			return nil
		}

		s.broadcast(base.Data)
		return nil
	})
}

func (s *Sink) broadcast(data []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.last = data

	for c := range s.clients {
		c := c
		c.writer.Push(func() error {
			return c.write(data)
		})
	}
}

// Addr returns the listening address.
func (s *Sink) Addr() net.Addr {
	return s.httpServer.Addr()
}

func (s *Sink) newClient(addr string) (*client, error) {
	c := &client{
		id:     uuid.New(),
		addr:   addr,
		parent: s,
	}

	c.writer = &asyncwriter.Writer{
		QueueSize: s.queueSize(),
		Parent:    c,
	}
	err := c.writer.Initialize()
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Sink) addClient(c *client) {
	s.mutex.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mutex.Unlock()

	s.Metrics.SetMJPEGClients(n)
	c.Log(logger.Info, "connected (%v)", c.addr)
}

func (s *Sink) removeClient(c *client, err error) {
	s.mutex.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.mutex.Unlock()

	s.Metrics.SetMJPEGClients(n)
	c.Log(logger.Info, "disconnected: %v", err)
}

// wait blocks until the client, the writer or the sink terminates.
func (s *Sink) wait(reqCtx context.Context, c *client, done <-chan error) error {
	select {
	case <-reqCtx.Done():
		return fmt.Errorf("terminated by client")

	case err := <-done:
		return err

	case err := <-c.writer.Error():
		return err

	case <-s.ctx.Done():
		return fmt.Errorf("terminated")
	}
}

func (s *Sink) onStream(ctx *gin.Context) {
	c, err := s.newClient(ctx.Request.RemoteAddr)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	w := ctx.Writer
	c.write = func(data []byte) error {
		return writePart(w, data)
	}

	// frames received before the writer starts are queued
	s.addClient(c)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	c.writer.Start()

	err = s.wait(ctx.Request.Context(), c, nil)
	c.writer.Stop()
	s.removeClient(c, err)
}

func (s *Sink) onSnapshot(ctx *gin.Context) {
	s.mutex.Lock()
	last := s.last
	s.mutex.Unlock()

	if last == nil {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	ctx.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	ctx.Data(http.StatusOK, "image/jpeg", last)
}

func (s *Sink) onWebSocket(ctx *gin.Context) {
	c, err := s.newClient(ctx.Request.RemoteAddr)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	var conn *websocket.ServerConn
	c.write = func(data []byte) error {
		return conn.WriteBinary(data)
	}

	s.addClient(c)

	conn, err = websocket.NewServerConn(ctx.Writer, ctx.Request)
	if err != nil {
		s.removeClient(c, err)
		return
	}
	defer conn.Close()

	c.writer.Start()

	err = s.wait(ctx.Request.Context(), c, conn.Done())
	c.writer.Stop()
	s.removeClient(c, err)
}
