package httpp

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovframework/ovf/internal/test"
)

func TestServer(t *testing.T) {
	s := &Server{
		Address: "localhost:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("hello")) //nolint:errcheck
			w.(http.Flusher).Flush()
		}),
		Parent: test.NilLogger,
	}
	err := s.Initialize()
	require.NoError(t, err)
	defer s.Close()

	res, err := http.Get("http://" + s.Addr().String() + "/path")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ovf", res.Header.Get("Server"))

	byts, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, "hello", string(byts))
}

func TestServerFilterRequests(t *testing.T) {
	s := &Server{
		Address: "localhost:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		Parent: test.NilLogger,
	}
	err := s.Initialize()
	require.NoError(t, err)
	defer s.Close()

	for _, ca := range []struct {
		name   string
		req    string
		status int
	}{
		{
			"empty path",
			"GET http://localhost HTTP/1.1\r\nHost: localhost\r\n\r\n",
			http.StatusBadRequest,
		},
		{
			"method",
			"POST /path HTTP/1.1\r\nHost: localhost\r\nContent-Length: 0\r\n\r\n",
			http.StatusMethodNotAllowed,
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			conn, err := net.Dial("tcp", s.Addr().String())
			require.NoError(t, err)
			defer conn.Close()

			_, err = conn.Write([]byte(ca.req))
			require.NoError(t, err)

			res, err := http.ReadResponse(bufio.NewReader(conn), nil)
			require.NoError(t, err)
			defer res.Body.Close()

			require.Equal(t, ca.status, res.StatusCode)
		})
	}
}
