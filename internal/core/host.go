package core

import (
	"regexp"
	"sort"
	"strconv"
)

// DeathUser is the sentinel owner marking a host as dead. A dead host counts
// as reserved so it is never handed out.
const DeathUser = "DEATH"

var (
	hostNameRe   = regexp.MustCompile(`^[\w.-]+$`)
	numberedHost = regexp.MustCompile(`^(.*)-(\d+)$`)
)

// Host is a pingable machine or a non-pingable resource together with its
// reservation record. Classes hold registry names; all of them are resource
// flavored or none are.
type Host struct {
	Name    string   `json:"name"`
	Classes []string `json:"classes"`

	User   string `json:"user,omitempty"`
	Expiry int64  `json:"expiry,omitempty"`
	Msg    string `json:"msg,omitempty"`
	Key    string `json:"key,omitempty"`

	NextUser   string `json:"next_user,omitempty"`
	NextExpiry int64  `json:"next_expiry,omitempty"`
	NextMsg    string `json:"next_msg,omitempty"`

	OldUser   string `json:"old_user,omitempty"`
	OldExpiry int64  `json:"old_expiry,omitempty"`
	OldMsg    string `json:"old_msg,omitempty"`

	LastPingTime int64 `json:"last_ping_time"`
	NextNotify   int64 `json:"next_notify,omitempty"`
}

// Reserved reports whether the host has an owner. Dead hosts count as
// reserved.
func (h *Host) Reserved() bool {
	return h.User != ""
}

// Dead reports whether the host carries the death sentinel.
func (h *Host) Dead() bool {
	return h.User == DeathUser
}

// HasClass reports whether name appears in the host's class list.
func (h *Host) HasClass(name string) bool {
	for _, c := range h.Classes {
		if c == name {
			return true
		}
	}
	return false
}

// isResource reports whether the host was created through the resource path.
// The registry guarantees a resource host carries exactly one class and that
// class is resource flavored, so the flavor is derivable from the host's
// class list alone.
func (s *Service) isResource(h *Host) bool {
	for _, name := range h.Classes {
		if c, ok := s.classes[name]; ok && c.Resource {
			return true
		}
	}
	return false
}

// hostLess is the canonical host ordering: hosts in the default reserve
// class sort after hosts not in it; numbered hosts (prefix-N) with equal
// standing and the same prefix sort by numeric suffix; everything else by
// name. The same order
// drives listings and class-reservation candidate selection, so hosts
// outside the reserve pool and lower-numbered hosts are handed out first.
func hostLess(a, b *Host) bool {
	aFarm := a.HasClass(DefaultReserveClass)
	bFarm := b.HasClass(DefaultReserveClass)
	if aFarm != bFarm {
		return !aFarm
	}
	am := numberedHost.FindStringSubmatch(a.Name)
	bm := numberedHost.FindStringSubmatch(b.Name)
	if am != nil && bm != nil && am[1] == bm[1] {
		an, _ := strconv.Atoi(am[2])
		bn, _ := strconv.Atoi(bm[2])
		return an < bn
	}
	return a.Name < b.Name
}

func sortHosts(hosts []*Host) {
	sort.Slice(hosts, func(i, j int) bool { return hostLess(hosts[i], hosts[j]) })
}
