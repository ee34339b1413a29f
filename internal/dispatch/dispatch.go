// Package dispatch maps command names onto reservation engine handlers and
// validates request parameters before any handler runs.
package dispatch

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"pkt.systems/rsvpd/api"
	"pkt.systems/rsvpd/internal/core"
)

type handler func(d *Dispatcher, p params) (*core.Result, error)

type entry struct {
	handler  handler
	required []string
	optional []string
}

// Dispatcher validates and routes requests to the reservation engine.
type Dispatcher struct {
	svc    *core.Service
	logger pslog.Logger
	table  map[string]entry
}

// New builds a dispatcher bound to a service.
func New(svc *core.Service, logger pslog.Logger) *Dispatcher {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	d := &Dispatcher{svc: svc, logger: logger}
	d.table = map[string]entry{
		api.CmdAddClass:         {handleAddClass, []string{"class", "members", "description"}, nil},
		api.CmdAddHost:          {handleAddHost, []string{"host", "classes"}, nil},
		api.CmdAddResource:      {handleAddResource, []string{"resource", "class"}, nil},
		api.CmdAddResourceClass: {handleAddResourceClass, []string{"class", "description"}, nil},
		api.CmdAddNextUser:      {handleAddNextUser, []string{"host", "user", "expire", "msg"}, nil},
		api.CmdDelClass:         {handleDelClass, []string{"class"}, nil},
		api.CmdDelHost:          {handleDelHost, []string{"host"}, nil},
		api.CmdDelNextUser:      {handleDelNextUser, []string{"host", "user"}, nil},
		api.CmdGetCurrentUser:   {handleGetCurrentUser, []string{"host"}, nil},
		api.CmdListHosts:        {handleListHosts, []string{"class", "user", "verbose"}, []string{"next", "hostRegexp"}},
		api.CmdListClasses:      {handleListClasses, []string{"class"}, nil},
		api.CmdModifyHost:       {handleModifyHost, []string{"host", "user", "addClasses", "delClasses"}, nil},
		api.CmdReleaseResource:  {handleReleaseResource, []string{"resource", "user", "msg"}, []string{"key", "force"}},
		api.CmdReleaseRsvp:      {handleReleaseRsvp, []string{"host", "user", "msg"}, []string{"key", "force"}},
		api.CmdRenewRsvp:        {handleRenewRsvp, []string{"host", "user", "expire", "msg"}, nil},
		api.CmdReviveHost:       {handleReviveHost, []string{"host", "all"}, nil},
		api.CmdRsvpClass:        {handleRsvpClass, []string{"class", "numhosts", "user", "expire", "msg"}, []string{"key", "randomize"}},
		api.CmdRsvpHost:         {handleRsvpHost, []string{"host", "user", "expire", "msg"}, []string{"key", "resource"}},
		api.CmdVerifyRsvp:       {handleVerifyRsvp, []string{"host", "user"}, nil},
	}
	return d
}

// Dispatch validates the request and runs its handler. Every request
// produces exactly one response; validation failures and unknown commands
// never reach a handler.
func (d *Dispatcher) Dispatch(cmd string, rawParams map[string]any) *api.Response {
	correlationID := uuid.NewString()
	logger := d.logger.With("cmd", cmd, "correlation_id", correlationID)
	ent, ok := d.table[cmd]
	if !ok {
		logger.Warn("dispatch.unknown_command")
		return api.Error(fmt.Sprintf("unknown command %s", cmd), false)
	}
	if err := validate(cmd, rawParams, ent); err != nil {
		logger.Warn("dispatch.invalid_params", "error", err)
		return api.Error(err.Error(), false)
	}
	result, err := ent.handler(d, params(rawParams))
	if err != nil {
		var failure core.Failure
		if errors.As(err, &failure) {
			logger.Info("dispatch.failed", "code", failure.Code, "temporary", failure.Temporary)
			return api.Error(failure.Detail, failure.Temporary)
		}
		logger.Error("dispatch.error", "error", err)
		return api.Error(err.Error(), false)
	}
	logger.Debug("dispatch.ok")
	return api.Success(result.Message, result.Data)
}

func validate(cmd string, p map[string]any, ent entry) error {
	for _, key := range ent.required {
		v, ok := p[key]
		if !ok || v == nil {
			return fmt.Errorf("command %s is missing parameter %s", cmd, key)
		}
	}
	known := make(map[string]bool, len(ent.required)+len(ent.optional))
	for _, key := range ent.required {
		known[key] = true
	}
	for _, key := range ent.optional {
		known[key] = true
	}
	var unknown []string
	for key := range p {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("command %s does not accept parameter %s", cmd, unknown[0])
	}
	return nil
}
