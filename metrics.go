package rsvpd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/rsvpd/internal/core"
)

// serverMetrics aggregates the Prometheus instruments the daemon exposes
// when a metrics listener is configured.
type serverMetrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	connections prometheus.Gauge
	probeCycles prometheus.Counter
	saveErrors  prometheus.Counter
}

func newServerMetrics(svc *core.Service) *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rsvpd",
			Name:      "requests_total",
			Help:      "Requests handled, by command and outcome.",
		}, []string{"cmd", "outcome"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rsvpd",
			Name:      "connections",
			Help:      "Currently open client connections.",
		}),
		probeCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rsvpd",
			Name:      "probe_cycles_total",
			Help:      "Completed liveness probe cycles.",
		}),
		saveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rsvpd",
			Name:      "state_save_errors_total",
			Help:      "Failed state file writes.",
		}),
	}
	m.registry.MustRegister(m.requests, m.connections, m.probeCycles, m.saveErrors)
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rsvpd",
		Name:      "hosts",
		Help:      "Hosts in the model.",
	}, func() float64 { return float64(svc.Stats().Hosts) }))
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rsvpd",
		Name:      "hosts_reserved",
		Help:      "Hosts currently reserved by a user, dead hosts excluded.",
	}, func() float64 { return float64(svc.Stats().Reserved) }))
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rsvpd",
		Name:      "hosts_dead",
		Help:      "Hosts currently marked dead.",
	}, func() float64 { return float64(svc.Stats().Dead) }))
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rsvpd",
		Name:      "classes",
		Help:      "Classes in the model.",
	}, func() float64 { return float64(svc.Stats().Classes) }))
	return m
}

func (m *serverMetrics) observe(cmd string, isErr bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if isErr {
		outcome = "error"
	}
	m.requests.WithLabelValues(cmd, outcome).Inc()
}

func (m *serverMetrics) connOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *serverMetrics) connClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *serverMetrics) probeCycle() {
	if m != nil {
		m.probeCycles.Inc()
	}
}

func (m *serverMetrics) saveError() {
	if m != nil {
		m.saveErrors.Inc()
	}
}

// startMetricsListener serves /metrics on the configured address in the
// background. It returns an error when the address cannot be bound;
// stopMetricsListener shuts the listener down.
func (s *Server) startMetricsListener() error {
	if s.cfg.MetricsListen == "" || s.metrics == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.MetricsListen)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.metricsSrv = srv
	s.logger.Info("metrics.listening", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics.serve_error", "error", err)
		}
	}()
	return nil
}

func (s *Server) stopMetricsListener(ctx context.Context) {
	if s.metricsSrv == nil {
		return
	}
	_ = s.metricsSrv.Shutdown(ctx)
	s.metricsSrv = nil
}
