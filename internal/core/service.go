package core

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/rsvpd/internal/clock"
	"pkt.systems/rsvpd/internal/notify"
)

// Result is the success payload of an engine operation. Message and Data map
// directly onto the wire response envelope.
type Result struct {
	Message string
	Data    any
}

// Snapshot is the full serializable model handed to the persistence layer
// after every mutation.
type Snapshot struct {
	Classes map[string]*Class `json:"classes"`
	Hosts   map[string]*Host  `json:"hosts"`
}

// Options configures a Service.
type Options struct {
	Logger   pslog.Logger
	Clock    clock.Clock
	Notifier notify.Notifier
	// Persist writes the snapshot durably. It is called with the service
	// mutex held so the on-disk state always matches the model a success
	// response was computed from.
	Persist func(Snapshot) error
	// NotifyInterval rate-limits expiry notifications per host.
	NotifyInterval time.Duration
	// MailFrom is the sender identity for first-notification mail.
	MailFrom string
}

// Service owns the class and host registries and implements every command
// that mutates or inspects them. A single mutex serializes request handling
// with the liveness and expiry passes, preserving the single-writer
// invariant the state file depends on.
type Service struct {
	mu      sync.Mutex
	classes map[string]*Class
	hosts   map[string]*Host

	logger         pslog.Logger
	clock          clock.Clock
	notifier       notify.Notifier
	persist        func(Snapshot) error
	notifyInterval time.Duration
	mailFrom       string

	fatalErr error
}

// NewService builds an empty service. Call Restore and Initialize before
// serving requests.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}
	interval := opts.NotifyInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	mailFrom := opts.MailFrom
	if mailFrom == "" {
		mailFrom = "rsvpd"
	}
	return &Service{
		classes:        make(map[string]*Class),
		hosts:          make(map[string]*Host),
		logger:         logger,
		clock:          clk,
		notifier:       notifier,
		persist:        opts.Persist,
		notifyInterval: interval,
		mailFrom:       mailFrom,
	}
}

// Restore replaces the model with a previously persisted snapshot.
func (s *Service) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Classes != nil {
		s.classes = snap.Classes
	}
	if snap.Hosts != nil {
		s.hosts = snap.Hosts
	}
}

// Initialize ensures the well-known default classes exist. It runs after
// Restore on every startup; an existing state file keeps its descriptions.
func (s *Service) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	if _, ok := s.classes[DefaultClass]; !ok {
		s.classes[DefaultClass] = &Class{Name: DefaultClass, Description: "default class"}
		changed = true
	}
	if _, ok := s.classes[DefaultReserveClass]; !ok {
		s.classes[DefaultReserveClass] = &Class{Name: DefaultReserveClass, Description: "default reserve class"}
		changed = true
	}
	if !changed {
		return nil
	}
	return s.saveLocked()
}

// Snapshot returns a deep copy of the model for persistence or inspection.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		Classes: make(map[string]*Class, len(s.classes)),
		Hosts:   make(map[string]*Host, len(s.hosts)),
	}
	for name, c := range s.classes {
		cc := *c
		cc.Members = append([]string(nil), c.Members...)
		snap.Classes[name] = &cc
	}
	for name, h := range s.hosts {
		hc := *h
		hc.Classes = append([]string(nil), h.Classes...)
		snap.Hosts[name] = &hc
	}
	return snap
}

// saveLocked persists the model. A persistence failure is unrecoverable:
// the error is recorded so the server can abort, and returned to the caller
// so no success response is emitted for the mutation.
func (s *Service) saveLocked() error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist(s.snapshotLocked()); err != nil {
		s.fatalErr = err
		s.logger.Error("state.save.failed", "error", err)
		return Failure{Code: CodeInternal, Detail: "state persistence failed"}
	}
	return nil
}

// FatalError reports an unrecoverable persistence failure, if any occurred.
func (s *Service) FatalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// Stats summarizes the model for metrics.
type Stats struct {
	Hosts    int
	Reserved int
	Dead     int
	Classes  int
}

// Stats returns current model counts.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Hosts: len(s.hosts), Classes: len(s.classes)}
	for _, h := range s.hosts {
		if h.Dead() {
			st.Dead++
		} else if h.Reserved() {
			st.Reserved++
		}
	}
	return st
}

func (s *Service) now() int64 {
	return s.clock.Now().Unix()
}

// checkUser enforces the reserving-user rules shared by every operation that
// attributes a reservation.
func checkUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return invalid("user must not be empty")
	}
	if user == "root" {
		return policy("user root may not reserve hosts")
	}
	return nil
}

// parseExpire validates an expire value: a non-negative integer epoch, with
// 0 meaning no expiry. Decimal strings are accepted for legacy clients.
func parseExpire(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int64:
		if t < 0 {
			return 0, invalid("expire must be non-negative")
		}
		return t, nil
	case int:
		if t < 0 {
			return 0, invalid("expire must be non-negative")
		}
		return int64(t), nil
	case float64:
		if t < 0 || t != float64(int64(t)) {
			return 0, invalid("expire must be a non-negative integer")
		}
		return int64(t), nil
	case string:
		if t == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil || n < 0 {
			return 0, invalid("expire must be a non-negative integer")
		}
		return n, nil
	default:
		return 0, invalid("expire must be a non-negative integer")
	}
}
