package core

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
)

var numhostsRe = regexp.MustCompile(`^\d+$`)

// ReserveHostCommand reserves a single host or resource by name.
type ReserveHostCommand struct {
	Host     string
	User     string
	Expire   any
	Msg      string
	Key      string
	Resource bool
}

// ReserveHost attributes a host to a user. Reserving an already-reserved
// host is a temporary error. The Resource flag must match the target's
// flavor: resources are only reserved through the resource path.
func (s *Service) ReserveHost(cmd ReserveHostCommand) (*Result, error) {
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
	if h.Reserved() {
		return nil, contention("host %s is already reserved by %s", cmd.Host, h.User)
	}
	if s.isResource(h) != cmd.Resource {
		if s.isResource(h) {
			return nil, policy("%s is a resource, reserve it with the resource flag", cmd.Host)
		}
		return nil, policy("%s is not a resource", cmd.Host)
	}
	s.reserveLocked(h, cmd.User, expire, cmd.Msg, cmd.Key)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("rsvp.reserve", "host", cmd.Host, "user", cmd.User, "expire", expire)
	return &Result{Message: fmt.Sprintf("reserved %s", cmd.Host)}, nil
}

// reserveLocked clears any prior record and installs the new reservation.
func (s *Service) reserveLocked(h *Host, user string, expire int64, msg, key string) {
	h.User = user
	h.Expiry = expire
	h.Msg = msg
	h.Key = key
	h.NextUser = ""
	h.NextExpiry = 0
	h.NextMsg = ""
	h.NextNotify = 0
}

// ReserveClassCommand reserves a number of free hosts from a class
// expression.
type ReserveClassCommand struct {
	Class     string
	NumHosts  string
	User      string
	Expire    any
	Msg       string
	Key       string
	Randomize bool
}

// ReserveClass reserves NumHosts free hosts matching the class expression,
// or fails with a temporary error when not enough are free. Candidates are
// taken in host order, so hosts outside the default reserve class and
// lower-numbered hosts go first; Randomize permutes the candidates instead.
// The reserved names are returned in reverse of the selection order. The
// operation never partially succeeds.
func (s *Service) ReserveClass(cmd ReserveClassCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkUser(cmd.User); err != nil {
		return nil, err
	}
	expire, err := parseExpire(cmd.Expire)
	if err != nil {
		return nil, err
	}
	if !numhostsRe.MatchString(cmd.NumHosts) {
		return nil, invalid("numhosts must be a positive integer")
	}
	n, err := strconv.Atoi(cmd.NumHosts)
	if err != nil || n <= 0 {
		return nil, invalid("numhosts must be a positive integer")
	}
	expr := cmd.Class
	if expr == "" {
		expr = DefaultReserveClass
	}
	class, err := s.parseClassExpr(expr)
	if err != nil {
		return nil, err
	}
	var candidates []*Host
	for _, h := range s.hosts {
		if h.Reserved() || s.isResource(h) {
			continue
		}
		if s.classContains(class, h) {
			candidates = append(candidates, h)
		}
	}
	if cmd.Randomize {
		rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	} else {
		sortHosts(candidates)
	}
	if len(candidates) < n {
		return nil, contention("not enough free hosts to get %d, have %d free", n, len(candidates))
	}
	names := make([]string, 0, n)
	for _, h := range candidates[:n] {
		s.reserveLocked(h, cmd.User, expire, cmd.Msg, cmd.Key)
		names = append(names, h.Name)
	}
	reverseStrings(names)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("rsvp.reserve_class", "class", expr, "user", cmd.User, "count", n)
	return &Result{
		Message: fmt.Sprintf("reserved %d hosts from %s", n, expr),
		Data:    names,
	}, nil
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
