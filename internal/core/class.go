package core

import (
	"regexp"
	"sort"
	"strings"
)

// Well-known class names ensured by Initialize.
const (
	// DefaultClass is assigned to hosts added without an explicit class list.
	DefaultClass = "ALL"
	// DefaultReserveClass is used by rsvp_class when no class is supplied.
	DefaultReserveClass = "FARM"
)

var classNameRe = regexp.MustCompile(`^\w+$`)

// Class is a named group of hosts. An atomic class is a tag on hosts; a
// composite class holds member class names and its extension is the
// intersection of its members' extensions. Resource classes are a disjoint
// flavor: they tag non-pingable resources and never have members.
type Class struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Resource    bool     `json:"resource"`
	Members     []string `json:"members,omitempty"`
}

// Composite reports whether the class has members.
func (c *Class) Composite() bool {
	return len(c.Members) > 0
}

// classLess orders classes by member count ascending, then name ascending.
func classLess(a, b *Class) bool {
	if len(a.Members) != len(b.Members) {
		return len(a.Members) < len(b.Members)
	}
	return a.Name < b.Name
}

func sortClasses(classes []*Class) {
	sort.Slice(classes, func(i, j int) bool { return classLess(classes[i], classes[j]) })
}

// parseClassExpr splits a comma-separated class expression and resolves every
// name against the registry. A single name yields the registered class; more
// than one yields a transient composite whose extension is the intersection
// of the named classes. The composite is never stored in the registry.
func (s *Service) parseClassExpr(expr string) (*Class, error) {
	names := strings.Split(expr, ",")
	resolved := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := s.classes[name]; !ok {
			return nil, notFound("no such class: %s", name)
		}
		resolved = append(resolved, name)
	}
	if len(resolved) == 0 {
		return nil, invalid("empty class expression")
	}
	if len(resolved) == 1 {
		return s.classes[resolved[0]], nil
	}
	return &Class{Name: expr, Members: resolved}, nil
}

// classContains reports whether host belongs to class. A host matches an
// atomic class when the class name appears in its class list, and a
// composite class when every member matches. A non-matching atomic class is
// explicitly false.
func (s *Service) classContains(c *Class, h *Host) bool {
	for _, name := range h.Classes {
		if name == c.Name {
			return true
		}
	}
	if !c.Composite() {
		return false
	}
	for _, member := range c.Members {
		mc, ok := s.classes[member]
		if !ok {
			return false
		}
		if !s.classContains(mc, h) {
			return false
		}
	}
	return true
}
