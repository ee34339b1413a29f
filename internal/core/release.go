package core

import "fmt"

// ReleaseCommand releases a reservation held on a host or resource.
type ReleaseCommand struct {
	Host     string
	User     string
	Msg      string
	Key      string
	Force    bool
	Resource bool
}

// Release ends a reservation. The caller must be the reserving user and
// present the original key; Force overrides both checks. When a next user is
// queued it inherits the host immediately and is notified best-effort.
func (s *Service) Release(cmd ReleaseCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[cmd.Host]
	if !ok {
		return nil, notFound("no such host: %s", cmd.Host)
	}
	if s.isResource(h) != cmd.Resource {
		if s.isResource(h) {
			return nil, policy("%s is a resource, release it with release_resource", cmd.Host)
		}
		return nil, policy("%s is not a resource", cmd.Host)
	}
	if !h.Reserved() {
		return nil, policy("host %s is not reserved", cmd.Host)
	}
	if !cmd.Force {
		if h.User != cmd.User {
			return nil, policy("not reserved by %s", cmd.User)
		}
		if h.Key != "" && h.Key != cmd.Key {
			return nil, Failure{
				Code:   CodeWrongKey,
				Detail: fmt.Sprintf("Wrong key provided to release host %s: expected '%s'", cmd.Host, h.Key),
			}
		}
	}
	if h.NextUser != "" {
		heir := h.NextUser
		h.User = heir
		h.Expiry = h.NextExpiry
		h.Msg = h.NextMsg
		h.Key = ""
		h.NextUser = ""
		h.NextExpiry = 0
		h.NextMsg = ""
		h.NextNotify = 0
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
		if err := s.notifier.Chat(heir, fmt.Sprintf("%s is yours", h.Name),
			fmt.Sprintf("Reserved %s for you after %s released it", h.Name, cmd.User)); err != nil {
			s.logger.Warn("notify.chat.failed", "host", h.Name, "user", heir, "error", err)
		}
		s.logger.Info("rsvp.release.handoff", "host", cmd.Host, "from", cmd.User, "to", heir)
		return &Result{Message: fmt.Sprintf("released %s and reserved it for %s", cmd.Host, heir)}, nil
	}
	h.User = ""
	h.Expiry = 0
	h.Msg = ""
	h.Key = ""
	h.NextNotify = 0
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("rsvp.release", "host", cmd.Host, "user", cmd.User)
	return &Result{Message: fmt.Sprintf("released %s", cmd.Host)}, nil
}

// RenewCommand extends a reservation held by its owner.
type RenewCommand struct {
	Host   string
	User   string
	Expire any
	Msg    string
}

// Renew updates the expiry of a reservation. The message changes only when a
// non-empty one is supplied.
func (s *Service) Renew(cmd RenewCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expire, err := parseExpire(cmd.Expire)
	if err != nil {
		return nil, err
	}
	h, ok := s.hosts[cmd.Host]
	if !ok {
		return nil, notFound("no such host: %s", cmd.Host)
	}
	if !h.Reserved() || h.User != cmd.User {
		return nil, policy("not reserved by %s", cmd.User)
	}
	h.Expiry = expire
	if cmd.Msg != "" {
		h.Msg = cmd.Msg
	}
	h.NextNotify = 0
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("rsvp.renew", "host", cmd.Host, "user", cmd.User, "expire", expire)
	return &Result{Message: fmt.Sprintf("renewed %s", cmd.Host)}, nil
}

// Verify succeeds iff the host exists and is reserved by the caller.
func (s *Service) Verify(host, user string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[host]
	if !ok {
		return nil, notFound("no such host: %s", host)
	}
	if !h.Reserved() || h.User != user {
		return nil, policy("not reserved by %s", user)
	}
	return &Result{Message: fmt.Sprintf("%s is reserved by %s", host, user)}, nil
}

// GetCurrentUser returns the reserving user of a host, or null data when the
// host is free.
func (s *Service) GetCurrentUser(host string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[host]
	if !ok {
		return nil, notFound("no such host: %s", host)
	}
	if !h.Reserved() {
		return &Result{Message: fmt.Sprintf("%s is not reserved", host)}, nil
	}
	return &Result{Message: fmt.Sprintf("%s is reserved by %s", host, h.User), Data: h.User}, nil
}
