// Package api serves the diagnostics surface of a casehub instance: service
// health, on-demand re-probes, retry counters, Prometheus metrics and a
// websocket stream of status transitions.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"casehub/core"
	"casehub/metrics"
	"casehub/monitor"
	"casehub/util/goroutine"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrServerStarted is returned by a second Start, even after Stop
var ErrServerStarted = errors.New("diagnostics server already started")

// StatusMonitor is the part of the services monitor the server reads
type StatusMonitor interface {
	Services() []core.ServiceID
	Snapshot() []core.ServiceStatusReport
	LastKnownStatus(id core.ServiceID) (core.ServiceStatusReport, bool)
	CheckService(ctx context.Context, id core.ServiceID) (core.ServiceStatusReport, error)
	AddStatusChangeListener(fn monitor.StatusChangeListener, ids ...core.ServiceID) monitor.ListenerID
	RemoveStatusChangeListener(id monitor.ListenerID) bool
}

// Options configures the server
type Options struct {
	Addr     string
	Instance string

	// CheckRate is the sustained number of on-demand re-probes per second;
	// zero disables the limit
	CheckRate  float64
	CheckBurst int
}

// Server is the diagnostics HTTP server
type Server struct {
	opts     Options
	monitor  StatusMonitor
	stats    metrics.StatsSource
	logger   *zap.SugaredLogger
	router   *mux.Router
	limiter  *rate.Limiter
	registry *prometheus.Registry

	mu         sync.Mutex
	started    bool
	hub        *Hub
	httpServer *http.Server
	listener   net.Listener
	listenerID monitor.ListenerID
	serveDone  chan struct{}
}

// NewServer creates a server over mon. stats may be nil.
func NewServer(mon StatusMonitor, stats metrics.StatsSource, opts Options, logger *zap.SugaredLogger) *Server {
	limit := rate.Inf
	if opts.CheckRate > 0 {
		limit = rate.Limit(opts.CheckRate)
	}
	burst := opts.CheckBurst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		opts:     opts,
		monitor:  mon,
		stats:    stats,
		logger:   logger,
		router:   mux.NewRouter(),
		limiter:  rate.NewLimiter(limit, burst),
		registry: prometheus.NewRegistry(),
		hub:      NewHub(context.Background(), logger),
	}
	if stats != nil {
		s.registry.MustRegister(metrics.NewRetryCollector(stats))
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/services/{id}", s.serviceStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/services/{id}/check", s.checkService).Methods(http.MethodPost)
	s.router.HandleFunc("/stats/retry", s.retryStats).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, s.registry},
		promhttp.HandlerOpts{},
	))
	s.router.Handle("/ws/status", s.hub).Methods(http.MethodGet)
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listen address and serves in the background. Status
// transitions reported by the monitor are forwarded to websocket clients.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrServerStarted
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	s.started = true
	goroutine.Go("diagnostics-hub", s.logger, nil, s.hub.Run)
	s.listenerID = s.monitor.AddStatusChangeListener(s.forwardStatusChange)

	s.listener = ln
	s.serveDone = make(chan struct{})
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("Diagnostics server failed", "error", err)
		}
	}(s.httpServer, s.serveDone)

	s.logger.Infow("Diagnostics server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Stop shuts the server down. Calling Stop on a server that was never
// started is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.httpServer, s.serveDone
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.monitor.RemoveStatusChangeListener(s.listenerID)
	s.hub.Stop()

	err := srv.Shutdown(ctx)
	<-done
	return err
}

func (s *Server) forwardStatusChange(change monitor.StatusChange) {
	if err := s.hub.Broadcast("status_change", newStatusChangeView(change)); err != nil {
		s.logger.Warnw("Failed to broadcast status change",
			"service", change.Service,
			"error", err)
	}
}
