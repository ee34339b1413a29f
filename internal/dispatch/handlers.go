package dispatch

import "pkt.systems/rsvpd/internal/core"

func handleAddClass(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.AddClass(core.AddClassCommand{
		Class:       p.str("class"),
		Members:     p.strList("members"),
		Description: p.str("description"),
	})
}

func handleAddResourceClass(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.AddResourceClass(core.AddResourceClassCommand{
		Class:       p.str("class"),
		Description: p.str("description"),
	})
}

func handleAddHost(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.AddHost(core.AddHostCommand{
		Host:    p.str("host"),
		Classes: p.strList("classes"),
	})
}

func handleAddResource(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.AddResource(core.AddResourceCommand{
		Resource: p.str("resource"),
		Class:    p.str("class"),
	})
}

func handleAddNextUser(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.AddNextUser(core.AddNextUserCommand{
		Host:   p.str("host"),
		User:   p.str("user"),
		Expire: p["expire"],
		Msg:    p.str("msg"),
	})
}

func handleDelClass(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.DelClass(p.str("class"))
}

func handleDelHost(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.DelHost(p.str("host"))
}

func handleDelNextUser(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.DelNextUser(p.str("host"), p.str("user"))
}

func handleGetCurrentUser(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.GetCurrentUser(p.str("host"))
}

func handleListHosts(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.ListHosts(core.ListHostsCommand{
		Class:      p.str("class"),
		User:       p.str("user"),
		Verbose:    p.boolean("verbose"),
		Next:       p.boolean("next"),
		HostRegexp: p.str("hostRegexp"),
	})
}

func handleListClasses(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.ListClasses(p.str("class"))
}

func handleModifyHost(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.ModifyHost(core.ModifyHostCommand{
		Host:       p.str("host"),
		User:       p.str("user"),
		AddClasses: p.strList("addClasses"),
		DelClasses: p.strList("delClasses"),
	})
}

func handleReleaseRsvp(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.Release(core.ReleaseCommand{
		Host:  p.str("host"),
		User:  p.str("user"),
		Msg:   p.str("msg"),
		Key:   p.str("key"),
		Force: p.boolean("force"),
	})
}

func handleReleaseResource(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.Release(core.ReleaseCommand{
		Host:     p.str("resource"),
		User:     p.str("user"),
		Msg:      p.str("msg"),
		Key:      p.str("key"),
		Force:    p.boolean("force"),
		Resource: true,
	})
}

func handleRenewRsvp(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.Renew(core.RenewCommand{
		Host:   p.str("host"),
		User:   p.str("user"),
		Expire: p["expire"],
		Msg:    p.str("msg"),
	})
}

func handleReviveHost(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.Revive(core.ReviveCommand{
		Host: p.str("host"),
		All:  p.boolean("all"),
	})
}

func handleRsvpClass(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.ReserveClass(core.ReserveClassCommand{
		Class:     p.str("class"),
		NumHosts:  p.str("numhosts"),
		User:      p.str("user"),
		Expire:    p["expire"],
		Msg:       p.str("msg"),
		Key:       p.str("key"),
		Randomize: p.boolean("randomize"),
	})
}

func handleRsvpHost(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.ReserveHost(core.ReserveHostCommand{
		Host:     p.str("host"),
		User:     p.str("user"),
		Expire:   p["expire"],
		Msg:      p.str("msg"),
		Key:      p.str("key"),
		Resource: p.boolean("resource"),
	})
}

func handleVerifyRsvp(d *Dispatcher, p params) (*core.Result, error) {
	return d.svc.Verify(p.str("host"), p.str("user"))
}
