package core

import (
	"fmt"
	"sort"
	"strings"
)

// AddClassCommand creates an atomic or composite non-resource class.
type AddClassCommand struct {
	Class       string
	Members     []string
	Description string
}

// AddClass registers a new class. Composite members must already exist, be
// atomic, and be non-resource.
func (s *Service) AddClass(cmd AddClassCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !classNameRe.MatchString(cmd.Class) {
		return nil, invalid("invalid class name %q", cmd.Class)
	}
	if _, ok := s.classes[cmd.Class]; ok {
		return nil, Failure{Code: CodeExists, Detail: fmt.Sprintf("class %s already exists", cmd.Class)}
	}
	members := make([]string, 0, len(cmd.Members))
	for _, name := range cmd.Members {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		member, ok := s.classes[name]
		if !ok {
			return nil, notFound("no such class: %s", name)
		}
		if member.Composite() {
			return nil, policy("member class %s is composite, members must be atomic", name)
		}
		if member.Resource {
			return nil, policy("member class %s is a resource class", name)
		}
		members = append(members, name)
	}
	s.classes[cmd.Class] = &Class{Name: cmd.Class, Description: cmd.Description, Members: members}
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("class.add", "class", cmd.Class, "members", len(members))
	return &Result{Message: fmt.Sprintf("added class %s", cmd.Class)}, nil
}

// AddResourceClassCommand creates a resource class.
type AddResourceClassCommand struct {
	Class       string
	Description string
}

// AddResourceClass registers a new resource class. Resource classes never
// have members.
func (s *Service) AddResourceClass(cmd AddResourceClassCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !classNameRe.MatchString(cmd.Class) {
		return nil, invalid("invalid class name %q", cmd.Class)
	}
	if _, ok := s.classes[cmd.Class]; ok {
		return nil, Failure{Code: CodeExists, Detail: fmt.Sprintf("class %s already exists", cmd.Class)}
	}
	s.classes[cmd.Class] = &Class{Name: cmd.Class, Description: cmd.Description, Resource: true}
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("class.add_resource", "class", cmd.Class)
	return &Result{Message: fmt.Sprintf("added resource class %s", cmd.Class)}, nil
}

// DelClass removes a class. The default class cannot be deleted. The class
// is removed from every host and from every composite's member list; when it
// is a resource class, its resources are deleted with it.
func (s *Service) DelClass(name string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == DefaultClass {
		return nil, policy("cannot delete class %s", DefaultClass)
	}
	class, ok := s.classes[name]
	if !ok {
		return nil, notFound("no such class: %s", name)
	}
	var deletedResources []string
	if class.Resource {
		for hostName, h := range s.hosts {
			if h.HasClass(name) {
				delete(s.hosts, hostName)
				deletedResources = append(deletedResources, hostName)
			}
		}
		sort.Strings(deletedResources)
	} else {
		for _, h := range s.hosts {
			h.Classes = removeString(h.Classes, name)
		}
	}
	for _, c := range s.classes {
		c.Members = removeString(c.Members, name)
	}
	delete(s.classes, name)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("class.del", "class", name, "deleted_resources", len(deletedResources))
	msg := fmt.Sprintf("deleted class %s", name)
	if len(deletedResources) > 0 {
		msg = fmt.Sprintf("%s and resources %s", msg, strings.Join(deletedResources, ", "))
	}
	return &Result{Message: msg}, nil
}

// AddHostCommand creates a pingable host.
type AddHostCommand struct {
	Host    string
	Classes []string
}

// AddHost registers a new host. With no classes supplied the host joins the
// default class. Every class must exist, be atomic, and be non-resource.
func (s *Service) AddHost(cmd AddHostCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	classes := cmd.Classes
	if len(classes) == 0 {
		classes = []string{DefaultClass}
	}
	if err := s.checkNewHostLocked(cmd.Host, classes, false); err != nil {
		return nil, err
	}
	s.hosts[cmd.Host] = &Host{Name: cmd.Host, Classes: classes, LastPingTime: s.now()}
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("host.add", "host", cmd.Host, "classes", strings.Join(classes, ","))
	return &Result{Message: fmt.Sprintf("added host %s", cmd.Host)}, nil
}

// AddResourceCommand creates a non-pingable resource in a resource class.
type AddResourceCommand struct {
	Resource string
	Class    string
}

// AddResource registers a new resource. The class must be a resource class.
func (s *Service) AddResource(cmd AddResourceCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNewHostLocked(cmd.Resource, []string{cmd.Class}, true); err != nil {
		return nil, err
	}
	s.hosts[cmd.Resource] = &Host{Name: cmd.Resource, Classes: []string{cmd.Class}, LastPingTime: s.now()}
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("resource.add", "resource", cmd.Resource, "class", cmd.Class)
	return &Result{Message: fmt.Sprintf("added resource %s", cmd.Resource)}, nil
}

func (s *Service) checkNewHostLocked(name string, classes []string, resource bool) error {
	if !hostNameRe.MatchString(name) {
		return invalid("invalid host name %q", name)
	}
	if _, ok := s.hosts[name]; ok {
		return Failure{Code: CodeExists, Detail: fmt.Sprintf("host %s already exists", name)}
	}
	for _, className := range classes {
		class, ok := s.classes[className]
		if !ok {
			return notFound("no such class: %s", className)
		}
		if class.Composite() {
			return policy("class %s is composite, hosts may only join atomic classes", className)
		}
		if class.Resource != resource {
			if resource {
				return policy("class %s is not a resource class", className)
			}
			return policy("class %s is a resource class", className)
		}
	}
	return nil
}

// DelHost removes a host or resource by name.
func (s *Service) DelHost(name string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hosts[name]; !ok {
		return nil, notFound("no such host: %s", name)
	}
	delete(s.hosts, name)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("host.del", "host", name)
	return &Result{Message: fmt.Sprintf("deleted host %s", name)}, nil
}

// ModifyHostCommand adjusts a host's class membership.
type ModifyHostCommand struct {
	Host       string
	User       string
	AddClasses []string
	DelClasses []string
}

// ModifyHost applies class deletions then additions. The resulting class set
// must not mix resource and non-resource classes and may contain at most one
// resource class. Composite classes cannot be added to hosts. A host left
// with no classes falls back to the default class.
func (s *Service) ModifyHost(cmd ModifyHostCommand) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[cmd.Host]
	if !ok {
		return nil, notFound("no such host: %s", cmd.Host)
	}
	next := append([]string(nil), h.Classes...)
	for _, name := range cmd.DelClasses {
		next = removeString(next, name)
	}
	for _, name := range cmd.AddClasses {
		class, ok := s.classes[name]
		if !ok {
			return nil, notFound("no such class: %s", name)
		}
		if class.Composite() {
			return nil, policy("class %s is composite, hosts may only join atomic classes", name)
		}
		if !containsString(next, name) {
			next = append(next, name)
		}
	}
	if len(next) == 0 {
		next = []string{DefaultClass}
	}
	resources := 0
	for _, name := range next {
		if class, ok := s.classes[name]; ok && class.Resource {
			resources++
		}
	}
	if resources > 1 {
		return nil, policy("host %s would belong to %d resource classes, at most one is allowed", cmd.Host, resources)
	}
	if resources == 1 && len(next) > 1 {
		return nil, policy("host %s would mix resource and non-resource classes", cmd.Host)
	}
	h.Classes = next
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("host.modify", "host", cmd.Host, "user", cmd.User, "classes", strings.Join(next, ","))
	return &Result{Message: fmt.Sprintf("modified host %s", cmd.Host)}, nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
