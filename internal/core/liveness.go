package core

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ReviveCommand restores a dead host, or every dead host when All is set.
type ReviveCommand struct {
	Host string
	All  bool
}

// Revive restores the reservation snapshot taken when a host was marked
// dead. Reviving a live host by name is an error; with All set, live hosts
// are silently skipped.
func (s *Service) Revive(cmd ReviveCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd.All {
		revived := 0
		for _, h := range s.hosts {
			if h.Dead() {
				s.reviveLocked(h)
				revived++
			}
		}
		if revived > 0 {
			if err := s.saveLocked(); err != nil {
				return nil, err
			}
		}
		s.logger.Info("host.revive_all", "revived", revived)
		return &Result{Message: fmt.Sprintf("revived %d hosts", revived)}, nil
	}
	h, ok := s.hosts[cmd.Host]
	if !ok {
		return nil, notFound("no such host: %s", cmd.Host)
	}
	if !h.Dead() {
		return nil, policy("host %s is not dead", cmd.Host)
	}
	s.reviveLocked(h)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("host.revive", "host", cmd.Host, "user", h.User)
	return &Result{Message: fmt.Sprintf("revived %s", cmd.Host)}, nil
}

func (s *Service) reviveLocked(h *Host) {
	h.User = h.OldUser
	h.Expiry = h.OldExpiry
	h.Msg = h.OldMsg
	h.OldUser = ""
	h.OldExpiry = 0
	h.OldMsg = ""
	h.LastPingTime = s.now()
}

// markDeadLocked snapshots the reservation record and installs the death
// sentinel so the host is never handed out.
func (s *Service) markDeadLocked(h *Host, at time.Time) {
	h.OldUser = h.User
	h.OldExpiry = h.Expiry
	h.OldMsg = h.Msg
	h.User = DeathUser
	h.Expiry = 0
	h.Msg = fmt.Sprintf("Lost contact at: %s", at.Local().Format(time.ANSIC))
	h.Key = ""
}

// PingableHosts returns the names of every non-resource host, the targets of
// a liveness pass.
func (s *Service) PingableHosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, h := range s.hosts {
		if !s.isResource(h) {
			names = append(names, h.Name)
		}
	}
	return names
}

// ApplyPingResults records acknowledgments from a probe pass that started at
// cycleStart. Acknowledged hosts get a fresh last-ping time; acknowledged
// dead hosts are revived. Unresponsive free hosts silent for longer than
// deadTime are marked dead. State is persisted once when anything changed.
func (s *Service) ApplyPingResults(acked map[string]bool, cycleStart time.Time, deadTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for name := range acked {
		h, ok := s.hosts[name]
		if !ok {
			continue
		}
		h.LastPingTime = cycleStart.Unix()
		if h.Dead() {
			s.reviveLocked(h)
			s.logger.Info("ping.revive", "host", name)
		}
		changed = true
	}
	now := s.clock.Now().Unix()
	for _, h := range s.hosts {
		if s.isResource(h) || h.Reserved() || h.LastPingTime <= 0 {
			continue
		}
		if now-h.LastPingTime > int64(deadTime.Seconds()) {
			s.markDeadLocked(h, s.clock.Now())
			s.logger.Warn("ping.dead", "host", h.Name, "silent_for", humanize.RelTime(time.Unix(h.LastPingTime, 0), s.clock.Now(), "", ""))
			changed = true
		}
	}
	if changed {
		if err := s.saveLocked(); err != nil {
			s.logger.Error("ping.persist.failed", "error", err)
		}
	}
}

// NotifyExpired scans reserved hosts whose expiry has passed and sends
// rate-limited best-effort notifications. The first notification for a
// reservation also sends mail. The scan never mutates the reservation
// itself.
func (s *Service) NotifyExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now().Unix()
	changed := false
	for _, h := range s.hosts {
		if !h.Reserved() || h.Expiry == 0 || h.Expiry > now {
			continue
		}
		if h.NextNotify > now {
			continue
		}
		first := h.NextNotify == 0
		h.NextNotify = now + int64(s.notifyInterval.Seconds())
		changed = true
		if h.Dead() {
			continue
		}
		age := humanize.RelTime(time.Unix(h.Expiry, 0), s.clock.Now(), "ago", "")
		subject := fmt.Sprintf("reservation of %s expired", h.Name)
		body := fmt.Sprintf("Your reservation of %s expired %s. Renew it or release it.", h.Name, age)
		if err := s.notifier.Chat(h.User, subject, body); err != nil {
			s.logger.Warn("notify.chat.failed", "host", h.Name, "user", h.User, "error", err)
		}
		if first {
			if err := s.notifier.Mail(s.mailFrom, h.User, subject, body); err != nil {
				s.logger.Warn("notify.mail.failed", "host", h.Name, "user", h.User, "error", err)
			}
		}
	}
	if changed {
		if err := s.saveLocked(); err != nil {
			s.logger.Error("expiry.persist.failed", "error", err)
		}
	}
}
