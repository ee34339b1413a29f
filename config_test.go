package rsvpd

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Listen != DefaultListen || cfg.StateFile != DefaultStateFile {
		t.Fatalf("defaults changed by validation: %+v", cfg)
	}
}

func TestValidateFillsMissingFields(t *testing.T) {
	cfg := Config{
		StateFile: "hosts.state",
		ProbePort: DefaultProbePort,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.DeadTime != DefaultDeadTime {
		t.Errorf("dead time = %v", cfg.DeadTime)
	}
	if cfg.ProbeWindow != DefaultProbeWindow {
		t.Errorf("probe window = %v", cfg.ProbeWindow)
	}
	if cfg.NotifyInterval != DefaultNotifyInterval {
		t.Errorf("notify interval = %v", cfg.NotifyInterval)
	}
	if cfg.MailFrom != DefaultMailFrom {
		t.Errorf("mail from = %q", cfg.MailFrom)
	}
	if cfg.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("write timeout = %v", cfg.WriteTimeout)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty state file":    func(c *Config) { c.StateFile = "  " },
		"negative ping delay": func(c *Config) { c.PingDelay = -time.Second },
		"probe port zero":     func(c *Config) { c.ProbePort = 0 },
		"probe port too high": func(c *Config) { c.ProbePort = 70000 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestZeroPingDelayDisablesProbing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingDelay = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.PingDelay != 0 {
		t.Fatalf("ping delay = %v, want 0", cfg.PingDelay)
	}
}
