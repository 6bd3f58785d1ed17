package api

import (
    "bufio"
    "errors"
    "net"
    "net/http"
    "strconv"
    "time"

    "github.com/sirupsen/logrus"

    "vrpsearch/internal/metrics"
)

// statusRecorder captures the response status and keeps streaming
// (Flusher) and upgrades (Hijacker) working through the middleware.
type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) {
    if r.status == 0 { r.status = code }
    r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
    if r.status == 0 { r.status = http.StatusOK }
    return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
    if f, ok := r.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := r.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, errors.New("hijack not supported") }
    if r.status == 0 { r.status = http.StatusSwitchingProtocols }
    return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// logMiddleware logs every request and records the HTTP metrics. Paths are
// labelled by the mux pattern that served them to bound label cardinality.
func logMiddleware(log logrus.FieldLogger, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w}
        next.ServeHTTP(rec, r)
        dur := time.Since(start)
        if rec.status == 0 { rec.status = http.StatusOK }
        path := r.Pattern
        if path == "" { path = "unmatched" }
        status := strconv.Itoa(rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
        log.WithFields(logrus.Fields{
            "remote":   r.RemoteAddr,
            "method":   r.Method,
            "path":     r.URL.Path,
            "status":   rec.status,
            "duration": dur,
        }).Info("request")
    })
}
