package core

import "fmt"

// AddNextUserCommand queues a successor reservation on a reserved host.
type AddNextUserCommand struct {
	Host   string
	User   string
	Expire any
	Msg    string
}

// AddNextUser queues user to inherit the host when the current holder
// releases it. Anyone may queue themselves as long as no other next user is
// already waiting and they do not hold the host already.
func (s *Service) AddNextUser(cmd AddNextUserCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkUser(cmd.User); err != nil {
		return nil, err
	}
	expire, err := parseExpire(cmd.Expire)
	if err != nil {
		return nil, err
	}
	h, ok := s.hosts[cmd.Host]
	if !ok {
		return nil, notFound("no such host: %s", cmd.Host)
	}
	if !h.Reserved() {
		return nil, policy("host %s is not reserved, reserve it directly", cmd.Host)
	}
	if h.User == cmd.User {
		return nil, policy("%s already holds %s", cmd.User, cmd.Host)
	}
	if h.NextUser != "" {
		return nil, policy("host %s already has next user %s", cmd.Host, h.NextUser)
	}
	h.NextUser = cmd.User
	h.NextExpiry = expire
	h.NextMsg = cmd.Msg
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("rsvp.next.add", "host", cmd.Host, "user", cmd.User)
	return &Result{Message: fmt.Sprintf("added %s as next user of %s", cmd.User, cmd.Host)}, nil
}

// DelNextUser removes the queued next user. Either the queued user removes
// themselves or the reserving user clears the queue on their own
// reservation.
func (s *Service) DelNextUser(host, user string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[host]
	if !ok {
		return nil, notFound("no such host: %s", host)
	}
	if h.NextUser == "" {
		return nil, policy("host %s has no next user", host)
	}
	if user != h.NextUser && user != h.User {
		return nil, policy("next user of %s is %s, not %s", host, h.NextUser, user)
	}
	removed := h.NextUser
	h.NextUser = ""
	h.NextExpiry = 0
	h.NextMsg = ""
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("rsvp.next.del", "host", host, "user", removed, "by", user)
	return &Result{Message: fmt.Sprintf("removed next user %s from %s", removed, host)}, nil
}
