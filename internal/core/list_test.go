package core

import (
	"reflect"
	"testing"
)

func rowNames(t *testing.T, result *Result) []string {
	t.Helper()
	rows, ok := result.Data.([]any)
	if !ok {
		t.Fatalf("unexpected data %T", result.Data)
	}
	names := make([]string, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.([]any)
		if !ok || len(row) == 0 {
			t.Fatalf("unexpected row %v", raw)
		}
		names = append(names, row[0].(string))
	}
	return names
}

func TestListHostsOrdersAndExcludesResources(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-10")
	h.addHost(t, "web-2")
	h.addHost(t, "zebra")
	h.addHost(t, "farm-1", "FARM")
	if _, err := h.svc.AddResourceClass(AddResourceClassCommand{Class: "licenses"}); err != nil {
		t.Fatalf("add resource class: %v", err)
	}
	if _, err := h.svc.AddResource(AddResourceCommand{Resource: "lic-1", Class: "licenses"}); err != nil {
		t.Fatalf("add resource: %v", err)
	}

	result, err := h.svc.ListHosts(ListHostsCommand{})
	if err != nil {
		t.Fatalf("list hosts: %v", err)
	}
	// Numeric suffixes sort numerically, hosts in the reserve class sort
	// last, and resources stay out of the unfiltered listing.
	want := []string{"web-2", "web-10", "zebra", "farm-1"}
	if got := rowNames(t, result); !reflect.DeepEqual(got, want) {
		t.Fatalf("host order = %v, want %v", got, want)
	}
}

func TestListHostsClassFilterIncludesResources(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-1")
	if _, err := h.svc.AddResourceClass(AddResourceClassCommand{Class: "licenses"}); err != nil {
		t.Fatalf("add resource class: %v", err)
	}
	if _, err := h.svc.AddResource(AddResourceCommand{Resource: "lic-1", Class: "licenses"}); err != nil {
		t.Fatalf("add resource: %v", err)
	}
	result, err := h.svc.ListHosts(ListHostsCommand{Class: "licenses"})
	if err != nil {
		t.Fatalf("list hosts: %v", err)
	}
	if got := rowNames(t, result); !reflect.DeepEqual(got, []string{"lic-1"}) {
		t.Fatalf("filtered hosts = %v", got)
	}
}

func TestListHostsUserAndRegexpFilters(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-1")
	h.addHost(t, "web-2")
	h.addHost(t, "db-1")
	h.reserve(t, "web-1", "alice")
	h.reserve(t, "db-1", "alice")

	result, err := h.svc.ListHosts(ListHostsCommand{User: "alice"})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if got := rowNames(t, result); !reflect.DeepEqual(got, []string{"db-1", "web-1"}) {
		t.Fatalf("user filter = %v", got)
	}

	result, err = h.svc.ListHosts(ListHostsCommand{User: "alice", HostRegexp: "^web-"})
	if err != nil {
		t.Fatalf("list by regexp: %v", err)
	}
	if got := rowNames(t, result); !reflect.DeepEqual(got, []string{"web-1"}) {
		t.Fatalf("regexp filter = %v", got)
	}

	if _, err := h.svc.ListHosts(ListHostsCommand{HostRegexp: "("}); err == nil {
		t.Fatal("invalid regexp should fail")
	}
}

func TestListHostsCompositeClassIntersection(t *testing.T) {
	h := newTestService(t)
	h.addClass(t, "gpu")
	h.addClass(t, "fast")
	h.addHost(t, "both-1", "gpu", "fast")
	h.addHost(t, "gpu-1", "gpu")
	h.addHost(t, "fast-1", "fast")

	result, err := h.svc.ListHosts(ListHostsCommand{Class: "gpu,fast"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := rowNames(t, result); !reflect.DeepEqual(got, []string{"both-1"}) {
		t.Fatalf("intersection = %v", got)
	}
}

func TestListHostsProjections(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-1")
	if _, err := h.svc.ReserveHost(ReserveHostCommand{Host: "web-1", User: "alice", Expire: int64(1750000000), Msg: "ci"}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	result, err := h.svc.ListHosts(ListHostsCommand{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	rows := result.Data.([]any)
	if row := rows[0].([]any); !reflect.DeepEqual(row, []any{"web-1", "alice", int64(1750000000), "ci"}) {
		t.Fatalf("plain row = %v", row)
	}

	result, err = h.svc.ListHosts(ListHostsCommand{Verbose: true})
	if err != nil {
		t.Fatalf("list verbose: %v", err)
	}
	rows = result.Data.([]any)
	if row := rows[0].([]any); !reflect.DeepEqual(row, []any{"web-1", "alice", "ALL"}) {
		t.Fatalf("verbose row = %v", row)
	}

	if _, err := h.svc.AddNextUser(AddNextUserCommand{Host: "web-1", User: "bob", Expire: int64(0), Msg: "after alice"}); err != nil {
		t.Fatalf("add next user: %v", err)
	}
	result, err = h.svc.ListHosts(ListHostsCommand{Next: true})
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	rows = result.Data.([]any)
	if row := rows[0].([]any); !reflect.DeepEqual(row, []any{"web-1", "alice", "bob", int64(0), "after alice"}) {
		t.Fatalf("next row = %v", row)
	}
}

func TestListClassesAllAndFiltered(t *testing.T) {
	h := newTestService(t)
	h.addClass(t, "gpu")
	h.addClass(t, "pool", "gpu", "ALL")

	result, err := h.svc.ListClasses("")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if got := rowNames(t, result); !reflect.DeepEqual(got, []string{"ALL", "FARM", "gpu", "pool"}) {
		t.Fatalf("all classes = %v", got)
	}

	result, err = h.svc.ListClasses("pool")
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	rows := result.Data.([]any)
	if len(rows) != 1 {
		t.Fatalf("filtered rows = %v", rows)
	}
	row := rows[0].([]any)
	if !reflect.DeepEqual(row, []any{"pool", " ", 0, "gpu", "ALL"}) {
		t.Fatalf("pool row = %v", row)
	}

	if _, err := h.svc.ListClasses("nope"); err == nil {
		t.Fatal("unknown class should fail")
	}
}

func TestListClassesMarksResourceClasses(t *testing.T) {
	h := newTestService(t)
	if _, err := h.svc.AddResourceClass(AddResourceClassCommand{Class: "licenses", Description: "flexlm seats"}); err != nil {
		t.Fatalf("add resource class: %v", err)
	}
	result, err := h.svc.ListClasses("licenses")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	row := result.Data.([]any)[0].([]any)
	if !reflect.DeepEqual(row, []any{"licenses", "flexlm seats", 1}) {
		t.Fatalf("licenses row = %v", row)
	}
}
