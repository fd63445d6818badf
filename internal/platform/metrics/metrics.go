// Package metrics provides Prometheus instrumentation for the processor and the gateway.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Processing outcomes
const (
	OutcomeApplied  = "applied"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeDeferred = "deferred"
)

var (
	// EventsProcessed counts execution events by type and outcome.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "account_engine_events_processed_total",
		Help: "Execution events processed",
	}, []string{"type", "outcome"})

	// ProcessingLatency tracks the time from dequeue to commit.
	ProcessingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "account_engine_processing_latency_seconds",
		Help:    "Execution event processing latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"type"})

	// RateMisses counts calculations aborted for lack of a cross-rate.
	RateMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "account_engine_rate_misses_total",
		Help: "Account calculations aborted for missing exchange rates",
	}, []string{"from", "to"})

	// QuotesApplied counts quotes written to the rate cache.
	QuotesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "account_engine_quotes_applied_total",
		Help: "Quotes applied to the rate cache",
	})

	// AccountsLoaded tracks accounts held in memory.
	AccountsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "account_engine_accounts_loaded",
		Help: "Accounts currently held in memory",
	})

	// StatesPublished counts account states published from the outbox.
	StatesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "account_engine_states_published_total",
		Help: "Account states published from the outbox",
	}, []string{"status"})

	// WebSocketClients tracks connected stream subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "account_engine_websocket_clients",
		Help: "Connected account stream clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "account_engine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "account_engine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request metrics, labelled by route template
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Server exposes /metrics on its own port for processes without an HTTP API
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server listening on port
func NewServer(port int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown is called
func (s *Server) Start() {
	go func() {
		s.logger.Info("Metrics server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server error", "error", err)
		}
	}()
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
