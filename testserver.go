package rsvpd

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/rsvpd/client"
	"pkt.systems/rsvpd/internal/clock"
	"pkt.systems/rsvpd/internal/notify"
	"pkt.systems/rsvpd/internal/probe"
)

// TestServer wraps a running Server with convenient handles for tests.
type TestServer struct {
	Server   *Server
	Listener net.Addr
	Config   Config

	stop func(context.Context) error
}

type testingWriter struct {
	t  testing.TB
	mu sync.Mutex
	// closed guards against writes after the associated test has finished.
	closed bool
}

func (w *testingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return len(p), nil
	}
	for _, line := range bytes.Split(p, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		w.t.Helper()
		func(entry string) {
			defer func() {
				if r := recover(); r != nil {
					if strings.Contains(fmt.Sprint(r), "Log in goroutine after") {
						return
					}
					panic(r)
				}
			}()
			w.t.Log(entry)
		}(string(line))
	}
	return len(p), nil
}

func (w *testingWriter) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// NewTestingLogger creates a logger that writes through testing.TB.
func NewTestingLogger(t testing.TB, level pslog.Level) pslog.Logger {
	writer := &testingWriter{t: t}
	t.Cleanup(writer.close)
	return pslog.NewStructured(writer).LogLevel(level).With("app", "testserver")
}

type testServerOptions struct {
	cfg      Config
	cfgSet   bool
	cfgFuncs []func(*Config)
	logger   pslog.Logger
	clk      clock.Clock
	prober   probe.Prober
	notifier notify.Notifier
}

// TestServerOption customises StartTestServer behaviour.
type TestServerOption func(*testServerOptions)

// WithTestConfig provides an explicit Config. Validation fills in the fields
// it normalizes (listen address, dead time, probe window, notify interval,
// mail sender, write timeout, log level); an empty state file or probe port
// still fails.
func WithTestConfig(cfg Config) TestServerOption {
	return func(o *testServerOptions) {
		o.cfg = cfg
		o.cfgSet = true
	}
}

// WithTestConfigFunc applies a mutation to the configuration before start.
func WithTestConfigFunc(fn func(*Config)) TestServerOption {
	return func(o *testServerOptions) { o.cfgFuncs = append(o.cfgFuncs, fn) }
}

// WithTestLogger supplies a custom logger.
func WithTestLogger(logger pslog.Logger) TestServerOption {
	return func(o *testServerOptions) { o.logger = logger }
}

// WithTestClock injects a fake clock.
func WithTestClock(c clock.Clock) TestServerOption {
	return func(o *testServerOptions) { o.clk = c }
}

// WithTestProber injects a fake prober.
func WithTestProber(p probe.Prober) TestServerOption {
	return func(o *testServerOptions) { o.prober = p }
}

// WithTestNotifier injects a notification sink the test can inspect.
func WithTestNotifier(n notify.Notifier) TestServerOption {
	return func(o *testServerOptions) { o.notifier = n }
}

// StartTestServer starts a server on a loopback port with a state file in
// the test temp dir. Probing and expiry notification are off unless the
// test configures them. The server is stopped in test cleanup.
func StartTestServer(t testing.TB, opts ...TestServerOption) *TestServer {
	t.Helper()
	var o testServerOptions
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg
	if !o.cfgSet {
		cfg = DefaultConfig()
		cfg.Listen = "127.0.0.1:0"
		cfg.StateFile = filepath.Join(t.TempDir(), "hosts.state")
		cfg.PingDelay = 0
		cfg.NotifyExpired = false
	}
	for _, fn := range o.cfgFuncs {
		fn(&cfg)
	}
	var srvOpts []Option
	if o.logger != nil {
		srvOpts = append(srvOpts, WithLogger(o.logger))
	}
	if o.clk != nil {
		srvOpts = append(srvOpts, WithClock(o.clk))
	}
	if o.prober != nil {
		srvOpts = append(srvOpts, WithProber(o.prober))
	}
	if o.notifier != nil {
		srvOpts = append(srvOpts, WithNotifier(o.notifier))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv, stop, err := StartServer(ctx, cfg, srvOpts...)
	if err != nil {
		t.Fatalf("start test server: %v", err)
	}
	ts := &TestServer{
		Server:   srv,
		Listener: srv.ListenerAddr(),
		Config:   cfg,
		stop:     stop,
	}
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := ts.Stop(stopCtx); err != nil {
			t.Errorf("stop test server: %v", err)
		}
	})
	return ts
}

// Stop shuts down the server using the provided context.
func (ts *TestServer) Stop(ctx context.Context) error {
	if ts == nil || ts.stop == nil {
		return nil
	}
	stop := ts.stop
	ts.stop = nil
	return stop(ctx)
}

// Addr returns the listener address as a dialable string.
func (ts *TestServer) Addr() string {
	if ts == nil || ts.Listener == nil {
		return ""
	}
	return ts.Listener.String()
}

// NewClient returns a client configured against the test server.
func (ts *TestServer) NewClient(opts ...client.Option) *Client {
	return client.New(ts.Addr(), opts...)
}

// Client aliases the client type so test callers rarely need the client
// package import.
type Client = client.Client
