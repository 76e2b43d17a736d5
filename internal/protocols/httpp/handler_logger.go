package httpp

import (
	"net/http"

	"github.com/ovframework/ovf/internal/logger"
)

type loggerWriter struct {
	wrappedWriter
	status int
	size   int
}

func (w *loggerWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.w.Write(b)
	w.size += n
	return n, err
}

func (w *loggerWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.w.WriteHeader(statusCode)
}

// log requests and responses.
type handlerLogger struct {
	h   http.Handler
	log logger.Writer
}

func (h *handlerLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.log.Log(logger.Debug, "[conn %v] %s %s", r.RemoteAddr, r.Method, r.URL.Path)

	logw := &loggerWriter{wrappedWriter: wrappedWriter{w: w}}

	h.h.ServeHTTP(logw, r)

	h.log.Log(logger.Debug, "[conn %v] %d %s (%d bytes)",
		r.RemoteAddr, logw.status, http.StatusText(logw.status), logw.size)
}
