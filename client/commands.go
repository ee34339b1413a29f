package client

import (
	"context"
	"fmt"

	"pkt.systems/rsvpd/api"
)

// ReserveOptions carries the optional reserve parameters.
type ReserveOptions struct {
	// Expire is a unix timestamp; zero means no expiry.
	Expire int64
	// Msg is stored with the reservation.
	Msg string
	// Key must be presented again on release unless force is used.
	Key string
}

// ReserveHost reserves a single host for user.
func (c *Client) ReserveHost(ctx context.Context, host, user string, opts ReserveOptions) (*api.Response, error) {
	return c.Do(ctx, api.CmdRsvpHost, map[string]any{
		"host":   host,
		"user":   user,
		"expire": opts.Expire,
		"msg":    opts.Msg,
		"key":    opts.Key,
	})
}

// ReserveResource reserves a single resource for user.
func (c *Client) ReserveResource(ctx context.Context, resource, user string, opts ReserveOptions) (*api.Response, error) {
	return c.Do(ctx, api.CmdRsvpHost, map[string]any{
		"host":     resource,
		"user":     user,
		"expire":   opts.Expire,
		"msg":      opts.Msg,
		"key":      opts.Key,
		"resource": true,
	})
}

// ReserveClass reserves n free hosts from a class. The reserved host names
// come back in the response data.
func (c *Client) ReserveClass(ctx context.Context, class string, n int, user string, randomize bool, opts ReserveOptions) ([]string, error) {
	resp, err := c.Do(ctx, api.CmdRsvpClass, map[string]any{
		"class":     class,
		"numhosts":  fmt.Sprintf("%d", n),
		"user":      user,
		"expire":    opts.Expire,
		"msg":       opts.Msg,
		"key":       opts.Key,
		"randomize": randomize,
	})
	if err != nil {
		return nil, err
	}
	items, ok := resp.Data.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected reserve data %T", resp.Data)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, fmt.Sprintf("%v", item))
	}
	return names, nil
}

// Release releases a host reservation.
func (c *Client) Release(ctx context.Context, host, user, msg, key string, force bool) (*api.Response, error) {
	return c.Do(ctx, api.CmdReleaseRsvp, map[string]any{
		"host":  host,
		"user":  user,
		"msg":   msg,
		"key":   key,
		"force": force,
	})
}

// ReleaseResource releases a resource reservation.
func (c *Client) ReleaseResource(ctx context.Context, resource, user, msg, key string, force bool) (*api.Response, error) {
	return c.Do(ctx, api.CmdReleaseResource, map[string]any{
		"resource": resource,
		"user":     user,
		"msg":      msg,
		"key":      key,
		"force":    force,
	})
}

// Renew extends a reservation held by user.
func (c *Client) Renew(ctx context.Context, host, user string, expire int64, msg string) (*api.Response, error) {
	return c.Do(ctx, api.CmdRenewRsvp, map[string]any{
		"host":   host,
		"user":   user,
		"expire": expire,
		"msg":    msg,
	})
}

// Verify reports whether user holds host.
func (c *Client) Verify(ctx context.Context, host, user string) error {
	_, err := c.Do(ctx, api.CmdVerifyRsvp, map[string]any{"host": host, "user": user})
	return err
}

// CurrentUser returns the holder of host, or "" when the host is free.
func (c *Client) CurrentUser(ctx context.Context, host string) (string, error) {
	resp, err := c.Do(ctx, api.CmdGetCurrentUser, map[string]any{"host": host})
	if err != nil {
		return "", err
	}
	if resp.Data == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", resp.Data), nil
}

// AddNextUser queues user to inherit host when its holder releases.
func (c *Client) AddNextUser(ctx context.Context, host, user string, expire int64, msg string) (*api.Response, error) {
	return c.Do(ctx, api.CmdAddNextUser, map[string]any{
		"host":   host,
		"user":   user,
		"expire": expire,
		"msg":    msg,
	})
}

// DelNextUser removes the queued successor from host.
func (c *Client) DelNextUser(ctx context.Context, host, user string) (*api.Response, error) {
	return c.Do(ctx, api.CmdDelNextUser, map[string]any{"host": host, "user": user})
}

// AddHost registers a host in the given classes. With no classes the daemon
// puts the host in its default class.
func (c *Client) AddHost(ctx context.Context, host string, classes []string) (*api.Response, error) {
	if classes == nil {
		// classes is a required parameter; a nil slice would travel as null.
		classes = []string{}
	}
	return c.Do(ctx, api.CmdAddHost, map[string]any{"host": host, "classes": classes})
}

// AddResource registers a resource in a resource class.
func (c *Client) AddResource(ctx context.Context, resource, class string) (*api.Response, error) {
	return c.Do(ctx, api.CmdAddResource, map[string]any{"resource": resource, "class": class})
}

// DelHost removes a host.
func (c *Client) DelHost(ctx context.Context, host string) (*api.Response, error) {
	return c.Do(ctx, api.CmdDelHost, map[string]any{"host": host})
}

// AddClass registers a class with the given members.
func (c *Client) AddClass(ctx context.Context, class string, members []string, description string) (*api.Response, error) {
	return c.Do(ctx, api.CmdAddClass, map[string]any{
		"class":       class,
		"members":     members,
		"description": description,
	})
}

// AddResourceClass registers a class that holds resources.
func (c *Client) AddResourceClass(ctx context.Context, class, description string) (*api.Response, error) {
	return c.Do(ctx, api.CmdAddResourceClass, map[string]any{
		"class":       class,
		"description": description,
	})
}

// DelClass removes a class.
func (c *Client) DelClass(ctx context.Context, class string) (*api.Response, error) {
	return c.Do(ctx, api.CmdDelClass, map[string]any{"class": class})
}

// ModifyHost changes host's user and class membership.
func (c *Client) ModifyHost(ctx context.Context, host, user string, addClasses, delClasses []string) (*api.Response, error) {
	return c.Do(ctx, api.CmdModifyHost, map[string]any{
		"host":       host,
		"user":       user,
		"addClasses": addClasses,
		"delClasses": delClasses,
	})
}

// Revive restores a dead host. With all set, every dead host is revived and
// host is ignored.
func (c *Client) Revive(ctx context.Context, host string, all bool) (*api.Response, error) {
	return c.Do(ctx, api.CmdReviveHost, map[string]any{"host": host, "all": all})
}

// ListHostsOptions selects the listing filters and projection.
type ListHostsOptions struct {
	Class      string
	User       string
	Verbose    bool
	Next       bool
	HostRegexp string
}

// ListHosts returns host rows as returned by the daemon.
func (c *Client) ListHosts(ctx context.Context, opts ListHostsOptions) ([]any, error) {
	params := map[string]any{
		"class":   opts.Class,
		"user":    opts.User,
		"verbose": opts.Verbose,
	}
	if opts.Next {
		params["next"] = true
	}
	if opts.HostRegexp != "" {
		params["hostRegexp"] = opts.HostRegexp
	}
	resp, err := c.Do(ctx, api.CmdListHosts, params)
	if err != nil {
		return nil, err
	}
	rows, _ := resp.Data.([]any)
	return rows, nil
}

// ListClasses returns class rows. An empty filter lists everything.
func (c *Client) ListClasses(ctx context.Context, filter string) ([]any, error) {
	resp, err := c.Do(ctx, api.CmdListClasses, map[string]any{"class": filter})
	if err != nil {
		return nil, err
	}
	rows, _ := resp.Data.([]any)
	return rows, nil
}
