package core

import (
	"regexp"
	"strings"
)

// ListHostsCommand filters and projects the host table.
type ListHostsCommand struct {
	Class      string
	User       string
	Verbose    bool
	Next       bool
	HostRegexp string
}

// ListHosts returns per-host rows sorted in host order. The projection
// depends on the flags: verbose rows carry the class list, next rows the
// queued successor, and plain rows the reservation. Without a class or user
// filter, resources are excluded.
func (s *Service) ListHosts(cmd ListHostsCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var class *Class
	if cmd.Class != "" {
		var err error
		class, err = s.parseClassExpr(cmd.Class)
		if err != nil {
			return nil, err
		}
	}
	var hostRe *regexp.Regexp
	if cmd.HostRegexp != "" {
		var err error
		hostRe, err = regexp.Compile(cmd.HostRegexp)
		if err != nil {
			return nil, invalid("invalid host regexp %q: %s", cmd.HostRegexp, err)
		}
	}
	defaultListing := cmd.Class == "" && cmd.User == ""
	var matched []*Host
	for _, h := range s.hosts {
		if class != nil && !s.classContains(class, h) {
			continue
		}
		if cmd.User != "" && h.User != cmd.User {
			continue
		}
		if hostRe != nil && !hostRe.MatchString(h.Name) {
			continue
		}
		if defaultListing && s.isResource(h) {
			continue
		}
		matched = append(matched, h)
	}
	sortHosts(matched)
	rows := make([]any, 0, len(matched))
	for _, h := range matched {
		switch {
		case cmd.Verbose:
			rows = append(rows, []any{h.Name, h.User, strings.Join(h.Classes, ", ")})
		case cmd.Next:
			rows = append(rows, []any{h.Name, h.User, h.NextUser, h.NextExpiry, h.NextMsg})
		default:
			rows = append(rows, []any{h.Name, h.User, h.Expiry, h.Msg})
		}
	}
	return &Result{Message: "host list", Data: rows}, nil
}

// ListClasses returns class rows ordered by member count then name. An
// empty filter lists every class; otherwise only the classes named in the
// comma-separated filter are listed.
func (s *Service) ListClasses(filter string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var selected []*Class
	if strings.TrimSpace(filter) == "" {
		for _, c := range s.classes {
			selected = append(selected, c)
		}
	} else {
		for _, name := range strings.Split(filter, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			c, ok := s.classes[name]
			if !ok {
				return nil, notFound("no such class: %s", name)
			}
			selected = append(selected, c)
		}
	}
	sortClasses(selected)
	rows := make([]any, 0, len(selected))
	for _, c := range selected {
		desc := c.Description
		if desc == "" {
			desc = " "
		}
		resource := 0
		if c.Resource {
			resource = 1
		}
		row := []any{c.Name, desc, resource}
		for _, m := range c.Members {
			row = append(row, m)
		}
		rows = append(rows, row)
	}
	return &Result{Message: "class list", Data: rows}, nil
}
