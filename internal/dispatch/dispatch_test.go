package dispatch

import (
	"reflect"
	"testing"

	"pkt.systems/rsvpd/api"
	"pkt.systems/rsvpd/internal/core"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	svc := core.NewService(core.Options{})
	if err := svc.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return New(svc, nil)
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch("bogus", nil)
	if !resp.IsError() {
		t.Fatalf("expected error, got %+v", resp)
	}
	if resp.Message != "unknown command bogus" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if bool(resp.Temporary) {
		t.Fatalf("unknown command must not be temporary")
	}
}

func TestDispatchMissingRequiredParameter(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(api.CmdRsvpHost, map[string]any{
		"host": "build-1", "expire": "0", "msg": "",
	})
	if !resp.IsError() {
		t.Fatalf("expected error, got %+v", resp)
	}
	if resp.Message != "command rsvp_host is missing parameter user" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestDispatchNilRequiredParameterCountsAsMissing(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(api.CmdVerifyRsvp, map[string]any{
		"host": "build-1", "user": nil,
	})
	if !resp.IsError() {
		t.Fatalf("expected error, got %+v", resp)
	}
	if resp.Message != "command verify_rsvp is missing parameter user" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestDispatchRejectsUnknownParameter(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(api.CmdVerifyRsvp, map[string]any{
		"host": "build-1", "user": "alice", "zulu": 1, "bogus": 1,
	})
	if !resp.IsError() {
		t.Fatalf("expected error, got %+v", resp)
	}
	// The first unknown parameter in sorted order is reported.
	if resp.Message != "command verify_rsvp does not accept parameter bogus" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestDispatchOptionalParametersAreAccepted(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(api.CmdListHosts, map[string]any{
		"class": "", "user": "", "verbose": false,
		"next": true, "hostRegexp": "^build-",
	})
	if resp.IsError() {
		t.Fatalf("unexpected error: %s", resp.Message)
	}
}

func TestDispatchRunsHandlerAndMapsSuccess(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(api.CmdAddHost, map[string]any{
		"host": "build-1", "classes": "",
	})
	if resp.IsError() {
		t.Fatalf("add_host failed: %s", resp.Message)
	}
	if resp.Type != api.TypeSuccess {
		t.Fatalf("unexpected type %q", resp.Type)
	}
	if resp.Message != "added host build-1" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestDispatchMapsContentionToTemporaryError(t *testing.T) {
	d := newTestDispatcher(t)
	for _, params := range []map[string]any{
		{"host": "build-1", "classes": ""},
	} {
		if resp := d.Dispatch(api.CmdAddHost, params); resp.IsError() {
			t.Fatalf("setup failed: %s", resp.Message)
		}
	}
	reserve := map[string]any{
		"host": "build-1", "user": "alice", "expire": "0", "msg": "",
	}
	if resp := d.Dispatch(api.CmdRsvpHost, reserve); resp.IsError() {
		t.Fatalf("first reservation failed: %s", resp.Message)
	}
	reserve["user"] = "bob"
	resp := d.Dispatch(api.CmdRsvpHost, reserve)
	if !resp.IsError() {
		t.Fatalf("expected contention error, got %+v", resp)
	}
	if !bool(resp.Temporary) {
		t.Fatalf("contention must be temporary: %+v", resp)
	}
	if resp.Message != "host build-1 is already reserved by alice" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestDispatchMapsFailureToPermanentError(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(api.CmdDelHost, map[string]any{"host": "absent"})
	if !resp.IsError() {
		t.Fatalf("expected error, got %+v", resp)
	}
	if bool(resp.Temporary) {
		t.Fatalf("not-found must not be temporary")
	}
}

func TestParamsStr(t *testing.T) {
	p := params{
		"s":     "value",
		"int":   float64(42),
		"frac":  1.5,
		"true":  true,
		"false": false,
	}
	cases := map[string]string{
		"s": "value", "int": "42", "frac": "1.5",
		"true": "1", "false": "0", "absent": "",
	}
	for key, want := range cases {
		if got := p.str(key); got != want {
			t.Errorf("str(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestParamsBoolean(t *testing.T) {
	p := params{
		"true": true, "one": float64(1), "zero": float64(0),
		"yes": "yes", "no": "no", "empty": "", "word": "force",
	}
	cases := map[string]bool{
		"true": true, "one": true, "zero": false,
		"yes": true, "no": false, "empty": false,
		"word": true, "absent": false,
	}
	for key, want := range cases {
		if got := p.boolean(key); got != want {
			t.Errorf("boolean(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestParamsStrList(t *testing.T) {
	p := params{
		"csv":   " a, b ,,c ",
		"array": []any{"x", float64(7), " y "},
		"empty": "",
	}
	if got := p.strList("csv"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("csv = %v", got)
	}
	if got := p.strList("array"); !reflect.DeepEqual(got, []string{"x", "7", "y"}) {
		t.Errorf("array = %v", got)
	}
	if got := p.strList("empty"); got != nil {
		t.Errorf("empty = %v, want nil", got)
	}
	if got := p.strList("absent"); got != nil {
		t.Errorf("absent = %v, want nil", got)
	}
}
