package websocket

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestServerConn(t *testing.T) {
	pingReceived := make(chan struct{})
	pingInterval = 100 * time.Millisecond
	handlerDone := make(chan error, 1)

	handler := func(w http.ResponseWriter, r *http.Request) {
		c, err := NewServerConn(w, r)
		require.NoError(t, err)
		defer c.Close()

		err = c.WriteBinary([]byte{0xFF, 0xD8, 0xFF, 0xD9})
		require.NoError(t, err)

		handlerDone <- <-c.Done()
	}

	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	s := &http.Server{Handler: http.HandlerFunc(handler)}
	go s.Serve(ln)
	defer s.Shutdown(context.Background())

	c, res, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/", nil)
	require.NoError(t, err)
	defer res.Body.Close()

	c.SetPingHandler(func(string) error {
		select {
		case <-pingReceived:
		default:
			close(pingReceived)
		}
		return nil
	})

	typ, byts, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, typ)
	require.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, byts)

	// pings are processed while reading
	go c.ReadMessage() //nolint:errcheck
	<-pingReceived

	c.Close()

	select {
	case err = <-handlerDone:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Errorf("disconnection not detected")
	}
}
