// Package client implements the Go client for the reservation daemon. It
// speaks the JSON framing only; the legacy line encoding is left to the
// clients that still emit it.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"pkt.systems/rsvpd/api"
)

// DefaultDialTimeout bounds the initial connect.
const DefaultDialTimeout = 5 * time.Second

// DefaultRequestTimeout bounds one request/response round trip.
const DefaultRequestTimeout = 30 * time.Second

// Client is a connection to one daemon. Requests are serialized over the
// single connection; a Client is safe for concurrent use.
type Client struct {
	addr           string
	dialTimeout    time.Duration
	requestTimeout time.Duration
	logger         pslog.Logger

	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader
}

// Option adjusts client construction.
type Option func(*Client)

// WithLogger overrides the client logger.
func WithLogger(l pslog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithDialTimeout overrides the connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithRequestTimeout overrides the per-request timeout applied when the
// caller's context has no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// New returns a client for the daemon at addr. The connection is dialed
// lazily on the first request.
func New(addr string, opts ...Option) *Client {
	c := &Client{
		addr:           addr,
		dialTimeout:    DefaultDialTimeout,
		requestTimeout: DefaultRequestTimeout,
		logger:         pslog.NoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewKey returns a fresh reservation key.
func NewKey() string {
	return uuid.NewString()
}

// Close drops the connection. The client can be reused; the next request
// reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.rd = nil
	return err
}

// CommandError is a command-level failure reported by the daemon.
type CommandError struct {
	Message   string
	Temporary bool
}

func (e *CommandError) Error() string { return e.Message }

// IsTemporary reports whether err is a retryable CommandError.
func IsTemporary(err error) bool {
	ce, ok := err.(*CommandError)
	return ok && ce.Temporary
}

// Do sends one command and returns its response. Protocol and transport
// failures surface as errors; command failures are returned as a
// *CommandError alongside the error response.
func (c *Client) Do(ctx context.Context, cmd string, params map[string]any) (*api.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.roundTrip(ctx, cmd, params)
	if err != nil {
		c.closeLocked()
		return nil, err
	}
	if resp.IsError() {
		return resp, &CommandError{Message: resp.Message, Temporary: bool(resp.Temporary)}
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, cmd string, params map[string]any) (*api.Response, error) {
	if err := c.ensureConnLocked(ctx); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(api.Request{Cmd: cmd, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	deadline := time.Now().Add(c.requestTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(c.conn, "json %d\n", len(body)); err != nil {
		return nil, fmt.Errorf("write request header: %w", err)
	}
	if _, err := c.conn.Write(body); err != nil {
		return nil, fmt.Errorf("write request body: %w", err)
	}
	header, err := c.rd.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response header: %w", err)
	}
	fields := strings.Fields(strings.TrimSpace(header))
	if len(fields) != 2 {
		return nil, fmt.Errorf("malformed response header %q", strings.TrimSpace(header))
	}
	if fields[0] != cmd {
		return nil, fmt.Errorf("response command %q does not match request %q", fields[0], cmd)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("malformed response length %q", fields[1])
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.rd, payload); err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var resp api.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	c.logger.Debug("client.round_trip", "cmd", cmd, "type", resp.Type)
	return &resp, nil
}

func (c *Client) ensureConnLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	c.conn = conn
	c.rd = bufio.NewReader(conn)
	return nil
}
