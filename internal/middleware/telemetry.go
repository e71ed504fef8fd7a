package middleware

import (
	"bufio"
	"fmt"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// latencyWindowSize bounds the per-route sample set backing the rolling
// p50/p95 figures in the request log.
const latencyWindowSize = 200

type routeLatencies struct {
	mu      sync.Mutex
	byRoute map[string][]int64
}

var latencies = &routeLatencies{byRoute: make(map[string][]int64)}

// record adds a duration sample for the route, drops the oldest samples past
// the window, and returns the rolling p50/p95.
func (l *routeLatencies) record(route string, ms int64) (p50, p95 int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	samples := append(l.byRoute[route], ms)
	if len(samples) > latencyWindowSize {
		samples = samples[len(samples)-latencyWindowSize:]
	}
	l.byRoute[route] = samples

	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return quantile(sorted, 0.5), quantile(sorted, 0.95)
}

// quantile is nearest-rank over an ascending slice.
func quantile(sorted []int64, q float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type responseMeta struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeta) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeta) Write(p []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(p)
	m.bytes += n
	return n, err
}

// Hijack keeps websocket upgrades working behind the wrapper.
func (m *responseMeta) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := m.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (m *responseMeta) Flush() {
	if f, ok := m.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Telemetry logs one structured line per request with rolling per-route
// latency percentiles.
func Telemetry(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			meta := &responseMeta{ResponseWriter: w}
			next.ServeHTTP(meta, r)

			status := meta.status
			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			ms := time.Since(start).Milliseconds()
			p50, p95 := latencies.record(r.Method+" "+route, ms)

			logger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("routePattern", route),
				zap.String("requestId", readRequestIDHeader(r)),
				zap.Int("status", status),
				zap.Int("bytes", meta.bytes),
				zap.Int64("duration_ms", ms),
				zap.Int64("p50_ms", p50),
				zap.Int64("p95_ms", p95),
				zap.Bool("error", status >= 500),
				zap.Bool("clientError", status >= 400 && status < 500),
			)
		})
	}
}
