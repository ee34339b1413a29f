package rsvpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"
	"pkt.systems/pslog"

	"pkt.systems/rsvpd/internal/clock"
	"pkt.systems/rsvpd/internal/core"
	"pkt.systems/rsvpd/internal/dispatch"
	"pkt.systems/rsvpd/internal/notify"
	"pkt.systems/rsvpd/internal/probe"
	"pkt.systems/rsvpd/internal/state"
	"pkt.systems/rsvpd/internal/svcfields"
	"pkt.systems/rsvpd/internal/wire"
)

// Server owns the listener, the reservation engine, and the background
// liveness and expiry loops.
type Server struct {
	cfg        Config
	logger     pslog.Logger
	svc        *core.Service
	store      *state.Store
	dispatcher *dispatch.Dispatcher
	prober     probe.Prober
	notifier   notify.Notifier
	clk        clock.Clock
	metrics    *serverMetrics
	metricsSrv *http.Server

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	serveErr error

	readyCh   chan struct{}
	readyOnce sync.Once
	stopCh    chan struct{}
	stopOnce  sync.Once
	loopWg    sync.WaitGroup
	connWg    sync.WaitGroup
}

// Option adjusts server construction.
type Option func(*options)

type options struct {
	logger   pslog.Logger
	clk      clock.Clock
	prober   probe.Prober
	notifier notify.Notifier
}

// WithLogger overrides the server logger.
func WithLogger(l pslog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clk = c }
}

// WithProber overrides the liveness prober.
func WithProber(p probe.Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithNotifier overrides the expiry notification sink.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// NewServer loads the state file, restores the model, and prepares the
// listener config without binding it yet.
func NewServer(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	clk := o.clk
	if clk == nil {
		clk = clock.Real{}
	}
	notifier := o.notifier
	if notifier == nil {
		notifier = notify.NewLogger(logger)
	}
	prober := o.prober
	if prober == nil {
		p := probe.NewTCPProber(logger)
		p.Port = cfg.ProbePort
		p.Window = cfg.ProbeWindow
		prober = p
	}
	store := state.NewStore(cfg.StateFile, logger)
	snap, err := store.Load()
	if err != nil {
		return nil, err
	}
	svc := core.NewService(core.Options{
		Logger:         svcfields.WithSubsystem(logger, "rsvp"),
		Clock:          clk,
		Notifier:       notifier,
		Persist:        store.Save,
		NotifyInterval: cfg.NotifyInterval,
		MailFrom:       cfg.MailFrom,
	})
	svc.Restore(snap)
	if err := svc.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize model: %w", err)
	}
	s := &Server{
		cfg:        cfg,
		logger:     svcfields.WithSubsystem(logger, "server"),
		svc:        svc,
		store:      store,
		prober:     prober,
		notifier:   notifier,
		clk:        clk,
		readyCh:    make(chan struct{}),
		stopCh:     make(chan struct{}),
		dispatcher: dispatch.New(svc, logger),
	}
	s.metrics = newServerMetrics(svc)
	return s, nil
}

// Start binds the listener and blocks serving connections until the server
// is shut down or hits a fatal error.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen (tcp %s): %w", s.cfg.Listen, err)
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()
	if err := s.startMetricsListener(); err != nil {
		ln.Close()
		return fmt.Errorf("metrics listen (%s): %w", s.cfg.MetricsListen, err)
	}
	s.signalReady()
	s.logger.Info("listening", "address", ln.Addr().String(), "state_file", s.store.Path())
	s.startLoops()
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.stopLoops()
			s.connWg.Wait()
			if s.closing() {
				return s.fatalError()
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.connWg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn owns one client connection for its whole lifetime.
func (s *Server) handleConn(conn net.Conn) {
	defer s.connWg.Done()
	defer conn.Close()
	s.metrics.connOpened()
	defer s.metrics.connClosed()
	logger := s.logger.With("conn_id", xid.New().String(), "remote", conn.RemoteAddr().String())
	logger.Debug("conn.open")
	defer logger.Debug("conn.close")
	dec := &wire.Decoder{}
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			if !s.drainRequests(conn, dec, logger) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// drainRequests handles every complete request currently buffered. It
// returns false when the connection must be closed.
func (s *Server) drainRequests(conn net.Conn, dec *wire.Decoder, logger pslog.Logger) bool {
	for {
		req, err := dec.Next()
		if err != nil {
			var skip *wire.SkipError
			if errors.As(err, &skip) {
				logger.Warn("conn.dropped_request", "reason", skip.Reason)
				continue
			}
			logger.Warn("conn.framing_error", "error", err)
			return false
		}
		if req == nil {
			return true
		}
		resp := s.dispatcher.Dispatch(req.Cmd, req.Params)
		s.metrics.observe(req.Cmd, resp.IsError())
		out, err := wire.EncodeResponse(req.Cmd, req.Mode, resp)
		if err != nil {
			logger.Error("conn.encode_error", "cmd", req.Cmd, "error", err)
			return false
		}
		if err := s.writeResponse(conn, out); err != nil {
			logger.Warn("conn.write_error", "cmd", req.Cmd, "error", err)
			return false
		}
		if err := s.svc.FatalError(); err != nil {
			s.metrics.saveError()
			s.fail(fmt.Errorf("state persistence failed: %w", err))
			return false
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, out []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(out)
	return err
}

// startLoops launches the background loop. Every PingDelay it runs a probe
// cycle and then, when NotifyExpired is set, the expiry scan. The expiry scan
// has no schedule of its own: when PingDelay is zero neither probing nor the
// expiry scan runs.
func (s *Server) startLoops() {
	if s.cfg.PingDelay <= 0 {
		return
	}
	s.loopWg.Add(1)
	go func() {
		defer s.loopWg.Done()
		logger := svcfields.WithSubsystem(s.logger, "ping")
		for {
			select {
			case <-s.stopCh:
				return
			case <-s.clk.After(s.cfg.PingDelay):
			}
			s.runProbeCycle(logger)
			if s.cfg.NotifyExpired {
				s.svc.NotifyExpired()
			}
			if err := s.svc.FatalError(); err != nil {
				s.metrics.saveError()
				s.fail(fmt.Errorf("state persistence failed: %w", err))
				return
			}
		}
	}()
}

func (s *Server) runProbeCycle(logger pslog.Logger) {
	names := s.svc.PingableHosts()
	if len(names) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProbeWindow+time.Second)
	defer cancel()
	cycleStart := s.clk.Now()
	targets := names[:0:0]
	for _, name := range names {
		if !s.prober.Resolve(ctx, name) {
			logger.Warn("ping.unresolvable", "host", name)
			continue
		}
		targets = append(targets, name)
	}
	acked := s.prober.Probe(ctx, targets)
	s.svc.ApplyPingResults(acked, cycleStart, s.cfg.DeadTime)
	s.metrics.probeCycle()
	logger.Debug("ping.cycle", "probed", len(targets), "alive", len(acked))
}

func (s *Server) stopLoops() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.loopWg.Wait()
}

// fail records a fatal error and tears the listener down so Start returns.
func (s *Server) fail(err error) {
	s.mu.Lock()
	if s.serveErr == nil {
		s.serveErr = err
	}
	s.shutdown = true
	ln := s.listener
	s.mu.Unlock()
	s.logger.Error("fatal", "error", err)
	if ln != nil {
		ln.Close()
	}
}

func (s *Server) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func (s *Server) fatalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

// Shutdown stops accepting, waits for in-flight connections, and stops the
// background loops. It returns any recorded fatal error.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	already := s.shutdown
	s.shutdown = true
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	if already && ln == nil {
		return s.fatalError()
	}
	s.stopLoops()
	done := make(chan struct{})
	go func() {
		s.connWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.stopMetricsListener(ctx)
	return s.fatalError()
}

// Close shuts the server down with a background context.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}

func (s *Server) signalReady() {
	s.readyOnce.Do(func() { close(s.readyCh) })
}

// WaitUntilReady blocks until the listener is bound or the context ends.
func (s *Server) WaitUntilReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListenerAddr returns the bound listener address once available.
func (s *Server) ListenerAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// Stats exposes model counters for operational introspection.
func (s *Server) Stats() core.Stats {
	return s.svc.Stats()
}

// StartServer builds a server, starts it in the background, waits until it
// is ready, and returns it together with a shutdown function.
func StartServer(ctx context.Context, cfg Config, opts ...Option) (*Server, func(context.Context) error, error) {
	srv, err := NewServer(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	if err := srv.WaitUntilReady(ctx); err != nil {
		_ = srv.Close()
		<-errCh
		return nil, nil, err
	}
	shutdown := func(ctx context.Context) error {
		sdErr := srv.Shutdown(ctx)
		if err := <-errCh; err != nil && sdErr == nil {
			sdErr = err
		}
		return sdErr
	}
	return srv, shutdown, nil
}
