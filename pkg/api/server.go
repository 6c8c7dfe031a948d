package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/psantana5/lumirender/pkg/auth"
	"github.com/psantana5/lumirender/pkg/metrics"
	"github.com/psantana5/lumirender/pkg/tracing"
)

// RouterOptions selects the optional layers around the API routes
type RouterOptions struct {
	Metrics *metrics.SchedulerMetrics // Serves /metrics and counts requests
	Tracing *tracing.Provider
	Limiter *Limiter
	Auth    *auth.APIKeyAuth // Guards state-changing routes
}

// NewRouter registers the API routes and wraps them in request ID, access
// log, tracing, metrics, rate limiting and auth middleware
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods("GET")
	}

	r.Use(RequestIDMiddleware)
	r.Use(AccessLogMiddleware(h.logger))
	if opts.Tracing != nil {
		r.Use(tracing.HTTPMiddleware(opts.Tracing))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.NewHTTPMonitor().Middleware)
	}
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware(ClientKey))
	}
	if opts.Auth != nil {
		r.Use(opts.Auth.Middleware)
	}
	return r
}

// NewServer creates the HTTP server for the API
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       2 * writeTimeout,
	}
}
