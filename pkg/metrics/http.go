package metrics

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMonitor tracks requests served by the control API
type HTTPMonitor struct {
	requests     *prometheus.CounterVec
	responseSize *prometheus.HistogramVec
}

// NewHTTPMonitor creates the API request metrics on the scheduler registry
func (m *SchedulerMetrics) NewHTTPMonitor() *HTTPMonitor {
	hm := &HTTPMonitor{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Control API requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		responseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "Control API response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(hm.requests, hm.responseSize)
	return hm
}

// Middleware records every request. Routes are labeled by their template so
// frame indices do not explode cardinality.
func (hm *HTTPMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		hm.requests.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		hm.responseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
	})
}

type responseWriter struct {
	http.ResponseWriter
	bytesWritten int
	statusCode   int
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
