package rsvpd

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultListen is the default TCP endpoint the server binds to.
	DefaultListen = ":1752"
	// DefaultStateFile is where the full model snapshot is written after
	// every mutation.
	DefaultStateFile = "hosts.state"
	// DefaultPingDelay is the pause between liveness probe cycles.
	DefaultPingDelay = 60 * time.Second
	// DefaultDeadTime is how long a host may stay silent before it is
	// marked dead.
	DefaultDeadTime = 120 * time.Second
	// DefaultProbeWindow bounds how long one probe cycle waits for answers.
	DefaultProbeWindow = 5 * time.Second
	// DefaultProbePort is the TCP port dialed to decide liveness.
	DefaultProbePort = 37
	// DefaultNotifyInterval rate-limits repeat expiry notifications per host.
	DefaultNotifyInterval = 6 * time.Hour
	// DefaultMetricsListen is the metrics endpoint (Prometheus scrape).
	// Empty disables the metrics listener.
	DefaultMetricsListen = ""
	// DefaultWriteTimeout caps how long one response write may block.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultMailFrom is the sender address on first-expiry mail.
	DefaultMailFrom = "rsvpd"
	// DefaultLogLevel is the server log level when none is configured.
	DefaultLogLevel = "info"
)

// Config captures the daemon tunables. The zero value is not usable; start
// from DefaultConfig or fill every field.
type Config struct {
	// Listen is the TCP address clients connect to.
	Listen string
	// StateFile is the snapshot path. Its ".new" sibling is used for the
	// atomic rewrite.
	StateFile string
	// PingDelay is the pause between liveness cycles. Zero disables probing
	// and, with it, the expiry notification scan.
	PingDelay time.Duration
	// DeadTime is the silence threshold before a host is marked dead.
	DeadTime time.Duration
	// ProbeWindow bounds one probe cycle.
	ProbeWindow time.Duration
	// ProbePort is the TCP port dialed for liveness.
	ProbePort int
	// NotifyExpired enables the expiry notification scan, which runs after
	// each liveness cycle.
	NotifyExpired bool
	// NotifyInterval rate-limits repeat notifications per host.
	NotifyInterval time.Duration
	// MailFrom is the sender address used on first-expiry mail.
	MailFrom string
	// MetricsListen is the Prometheus scrape endpoint. Empty disables it.
	MetricsListen string
	// WriteTimeout caps one response write.
	WriteTimeout time.Duration
	// LogLevel selects the server log level (trace, debug, info, warn, error).
	LogLevel string
}

// DefaultConfig returns a config populated with every default.
func DefaultConfig() Config {
	return Config{
		Listen:         DefaultListen,
		StateFile:      DefaultStateFile,
		PingDelay:      DefaultPingDelay,
		DeadTime:       DefaultDeadTime,
		ProbeWindow:    DefaultProbeWindow,
		ProbePort:      DefaultProbePort,
		NotifyExpired:  true,
		NotifyInterval: DefaultNotifyInterval,
		MailFrom:       DefaultMailFrom,
		MetricsListen:  DefaultMetricsListen,
		WriteTimeout:   DefaultWriteTimeout,
		LogLevel:       DefaultLogLevel,
	}
}

// Validate normalizes the config and rejects unusable values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = DefaultListen
	}
	if strings.TrimSpace(c.StateFile) == "" {
		return fmt.Errorf("state file path must not be empty")
	}
	if c.PingDelay < 0 {
		return fmt.Errorf("ping delay must not be negative")
	}
	if c.DeadTime <= 0 {
		c.DeadTime = DefaultDeadTime
	}
	if c.ProbeWindow <= 0 {
		c.ProbeWindow = DefaultProbeWindow
	}
	if c.ProbePort <= 0 || c.ProbePort > 65535 {
		return fmt.Errorf("probe port %d out of range", c.ProbePort)
	}
	if c.NotifyInterval <= 0 {
		c.NotifyInterval = DefaultNotifyInterval
	}
	if strings.TrimSpace(c.MailFrom) == "" {
		c.MailFrom = DefaultMailFrom
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	return nil
}
