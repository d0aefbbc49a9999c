package logging

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one entry per request through logger. It replaces
// middleware.Logger so access logs share the process format.
func RequestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(&requestFormatter{logger: logger})
}

type requestFormatter struct {
	logger *logrus.Logger
}

func (f *requestFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestEntry{entry: f.logger.WithFields(logrus.Fields{
		"request_id":  middleware.GetReqID(r.Context()),
		"method":      r.Method,
		"path":        r.URL.Path,
		"remote_addr": r.RemoteAddr,
	})}
}

type requestEntry struct {
	entry *logrus.Entry
}

func (e *requestEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	entry := e.entry.WithFields(logrus.Fields{
		"status":      status,
		"bytes":       bytes,
		"duration_ms": float64(elapsed.Microseconds()) / 1000,
	})
	switch {
	case status >= 500:
		entry.Error("request")
	case status >= 400:
		entry.Warn("request")
	default:
		entry.Info("request")
	}
}

func (e *requestEntry) Panic(v interface{}, stack []byte) {
	e.entry.WithField("stack", string(stack)).Error(fmt.Sprintf("panic: %v", v))
}
