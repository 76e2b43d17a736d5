package mjpeg

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ovframework/ovf/internal/conf"
	"github.com/ovframework/ovf/internal/frame"
	"github.com/ovframework/ovf/internal/media"
	"github.com/ovframework/ovf/internal/pipeline"
	"github.com/ovframework/ovf/internal/test"
)

func jpegFrame(b byte) *frame.Video {
	return &frame.Video{
		Base: frame.Base{
			Data:       []byte{0xFF, 0xD8, b, b, b, 0xFF, 0xD9},
			IsKeyFrame: true,
			Codec:      media.CodecMJPEG,
			ClockRate:  90000,
		},
		Width:  8,
		Height: 8,
	}
}

func readPart(t *testing.T, br *bufio.Reader) (http.Header, []byte) {
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "--frame\r\n", line)

	h := make(http.Header)
	for {
		line, err = br.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
		k, v, ok := strings.Cut(strings.TrimSuffix(line, "\r\n"), ": ")
		require.True(t, ok)
		h.Set(k, v)
	}

	l, err := strconv.Atoi(h.Get("Content-Length"))
	require.NoError(t, err)

	data := make([]byte, l)
	_, err = io.ReadFull(br, data)
	require.NoError(t, err)

	crlf := make([]byte, 2)
	_, err = io.ReadFull(br, crlf)
	require.NoError(t, err)
	require.Equal(t, []byte("\r\n"), crlf)

	return h, data
}

func newSink(t *testing.T) *Sink {
	s := &Sink{
		Address:     "localhost:0",
		Route:       "/stream",
		QueueSize:   10,
		ReadTimeout: conf.StringDuration(10 * time.Second),
		Parent:      test.NilLogger,
	}
	err := s.Prepare(context.Background())
	require.NoError(t, err)
	return s
}

func TestSink(t *testing.T) {
	s := newSink(t)
	defer s.Close()

	edge := pipeline.NewEdge[frame.Frame](s.InboundEdge())

	consumeDone := make(chan error)
	go func() {
		consumeDone <- s.Consume(context.Background(), edge)
	}()

	hc := &http.Client{}
	base := "http://" + s.Addr().String() + "/stream"

	res, err := hc.Get(base + "/snapshot")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = hc.Get(base)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "multipart/x-mixed-replace; boundary=frame", res.Header.Get("Content-Type"))

	err = edge.Send(context.Background(), jpegFrame(1))
	require.NoError(t, err)

	// frames of other codecs are ignored
	err = edge.Send(context.Background(), &frame.Audio{
		Base: frame.Base{Data: []byte{0x0B, 0x77}, Codec: media.CodecAC3},
	})
	require.NoError(t, err)

	err = edge.Send(context.Background(), jpegFrame(2))
	require.NoError(t, err)

	br := bufio.NewReader(res.Body)

	h, data := readPart(t, br)
	require.Equal(t, "image/jpeg", h.Get("Content-Type"))
	require.Equal(t, jpegFrame(1).Data, data)

	_, data = readPart(t, br)
	require.Equal(t, jpegFrame(2).Data, data)

	res2, err := hc.Get(base + "/snapshot")
	require.NoError(t, err)
	defer res2.Body.Close()
	require.Equal(t, http.StatusOK, res2.StatusCode)
	require.Equal(t, "image/jpeg", res2.Header.Get("Content-Type"))
	byts, err := io.ReadAll(res2.Body)
	require.NoError(t, err)
	require.Equal(t, jpegFrame(2).Data, byts)

	wc, wres, err := gwebsocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/stream/ws", nil)
	require.NoError(t, err)
	defer wres.Body.Close()
	defer wc.Close()

	err = edge.Send(context.Background(), jpegFrame(3))
	require.NoError(t, err)

	typ, byts, err := wc.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, gwebsocket.BinaryMessage, typ)
	require.Equal(t, jpegFrame(3).Data, byts)

	// the multipart client receives the same frame
	_, data = readPart(t, br)
	require.Equal(t, jpegFrame(3).Data, data)

	edge.Close()
	require.NoError(t, <-consumeDone)
}

func TestSinkSlowClient(t *testing.T) {
	s := newSink(t)
	defer s.Close()

	edge := pipeline.NewEdge[frame.Frame](s.InboundEdge())
	go s.Consume(context.Background(), edge) //nolint:errcheck
	defer edge.Close()

	res, err := http.Get("http://" + s.Addr().String() + "/stream")
	require.NoError(t, err)
	defer res.Body.Close()

	// a client that never reads must not block the sink
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = edge.Send(ctx, jpegFrame(byte(i)))
		cancel()
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		return s.last != nil && s.last[2] == 199
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSinkClientDisconnect(t *testing.T) {
	s := newSink(t)
	defer s.Close()

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)

	_, err = conn.Write([]byte("GET /stream HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	res, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	s.mutex.Lock()
	require.Len(t, s.clients, 1)
	s.mutex.Unlock()

	conn.Close()

	require.Eventually(t, func() bool {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		return len(s.clients) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSinkPrepareError(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	s := &Sink{
		Address: ln.Addr().String(),
		Route:   "/stream",
		Parent:  test.NilLogger,
	}
	err = s.Prepare(context.Background())
	require.Error(t, err)
	require.NoError(t, s.Close())

	s = &Sink{
		Address: "localhost:0",
		Route:   "stream",
		Parent:  test.NilLogger,
	}
	err = s.Prepare(context.Background())
	require.EqualError(t, err, "invalid route: 'stream'")
}
