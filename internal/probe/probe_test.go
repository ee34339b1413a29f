package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

type nopConn struct {
	net.Conn
}

func (nopConn) Close() error { return nil }

func fakeDial(alive map[string]bool) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if port != "37" {
			return nil, errors.New("unexpected port " + port)
		}
		if alive[host] {
			return nopConn{}, nil
		}
		return nil, errors.New("connection refused")
	}
}

func TestProbeReturnsAnsweringHosts(t *testing.T) {
	p := NewTCPProber(nil)
	p.Dial = fakeDial(map[string]bool{"build-1": true, "build-3": true})
	acked := p.Probe(context.Background(), []string{"build-1", "build-2", "build-3"})
	if len(acked) != 2 || !acked["build-1"] || !acked["build-3"] {
		t.Fatalf("unexpected acked set %v", acked)
	}
	if acked["build-2"] {
		t.Fatalf("dead host in acked set %v", acked)
	}
}

func TestProbeEmptyNameList(t *testing.T) {
	p := NewTCPProber(nil)
	p.Dial = fakeDial(nil)
	acked := p.Probe(context.Background(), nil)
	if len(acked) != 0 {
		t.Fatalf("unexpected acked set %v", acked)
	}
}

func TestProbeHonorsWindow(t *testing.T) {
	p := NewTCPProber(nil)
	p.Window = 50 * time.Millisecond
	p.Dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	start := time.Now()
	acked := p.Probe(context.Background(), []string{"stalled-1", "stalled-2"})
	if len(acked) != 0 {
		t.Fatalf("unexpected acked set %v", acked)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("probe did not respect the window: %v", elapsed)
	}
}

func TestResolve(t *testing.T) {
	p := NewTCPProber(nil)
	p.Lookup = func(ctx context.Context, name string) ([]string, error) {
		switch name {
		case "known":
			return []string{"192.0.2.1"}, nil
		case "empty":
			return nil, nil
		default:
			return nil, errors.New("no such host")
		}
	}
	if !p.Resolve(context.Background(), "known") {
		t.Fatal("known host should resolve")
	}
	if p.Resolve(context.Background(), "empty") {
		t.Fatal("empty answer should not resolve")
	}
	if p.Resolve(context.Background(), "unknown") {
		t.Fatal("lookup error should not resolve")
	}
}
