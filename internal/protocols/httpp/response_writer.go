package httpp

import (
	"bufio"
	"net"
	"net/http"
)

// wrappedWriter forwards the optional interfaces of the underlying writer,
// which are needed by streaming responses and WebSocket upgrades.
type wrappedWriter struct {
	w http.ResponseWriter
}

func (w *wrappedWriter) Header() http.Header {
	return w.w.Header()
}

func (w *wrappedWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *wrappedWriter) WriteHeader(statusCode int) {
	w.w.WriteHeader(statusCode)
}

func (w *wrappedWriter) Flush() {
	http.NewResponseController(w.w).Flush() //nolint:errcheck
}

func (w *wrappedWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.w).Hijack()
}

func (w *wrappedWriter) Unwrap() http.ResponseWriter {
	return w.w
}
