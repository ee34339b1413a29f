package core

import (
	"testing"
	"time"
)

func TestApplyPingResultsMarksDeadAndRevives(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-1")
	deadTime := 2 * time.Minute

	h.clk.Advance(10 * time.Minute)
	h.svc.ApplyPingResults(map[string]bool{}, h.clk.Now(), deadTime)
	result, err := h.svc.GetCurrentUser("web-1")
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if result.Data != DeathUser {
		t.Fatalf("silent host holder = %v, want %s", result.Data, DeathUser)
	}

	// An acknowledgment revives the host and clears the sentinel.
	h.svc.ApplyPingResults(map[string]bool{"web-1": true}, h.clk.Now(), deadTime)
	result, err = h.svc.GetCurrentUser("web-1")
	if err != nil {
		t.Fatalf("current user after revive: %v", err)
	}
	if result.Data != nil {
		t.Fatalf("revived host still held: %v", result.Data)
	}
}

func TestApplyPingResultsSparesReservedHosts(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-1")
	h.reserve(t, "web-1", "alice")
	h.clk.Advance(time.Hour)
	h.svc.ApplyPingResults(map[string]bool{}, h.clk.Now(), 2*time.Minute)
	result, err := h.svc.GetCurrentUser("web-1")
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if result.Data != "alice" {
		t.Fatalf("reserved host holder = %v, want alice", result.Data)
	}
}

func TestDeathSnapshotRestoredOnRevive(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-1")
	if _, err := h.svc.ReserveHost(ReserveHostCommand{Host: "web-1", User: "alice", Expire: int64(0), Msg: "ci"}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// A host that is released, reserved again by someone else, and then dies
	// gets the reservation held at death back on revive.
	if _, err := h.svc.Release(ReleaseCommand{Host: "web-1", User: "alice", Force: true}); err != nil {
		t.Fatalf("release: %v", err)
	}
	h.reserve(t, "web-1", "bob")
	h.svc.markDeadLocked(h.svc.hosts["web-1"], h.clk.Now())
	if !h.svc.hosts["web-1"].Dead() {
		t.Fatal("host should be dead")
	}
	if _, err := h.svc.Revive(ReviveCommand{Host: "web-1"}); err != nil {
		t.Fatalf("revive: %v", err)
	}
	if got := h.svc.hosts["web-1"].User; got != "bob" {
		t.Fatalf("restored holder = %q, want bob", got)
	}
}

func TestReviveAllSkipsLiveHosts(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "dead-1")
	h.addHost(t, "dead-2")
	h.addHost(t, "live-1")
	h.clk.Advance(time.Hour)
	h.svc.ApplyPingResults(map[string]bool{"live-1": true}, h.clk.Now(), 2*time.Minute)
	if stats := h.svc.Stats(); stats.Dead != 2 {
		t.Fatalf("stats = %+v, want 2 dead", stats)
	}
	result, err := h.svc.Revive(ReviveCommand{All: true})
	if err != nil {
		t.Fatalf("revive all: %v", err)
	}
	if result.Message != "revived 2 hosts" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if stats := h.svc.Stats(); stats.Dead != 0 {
		t.Fatalf("stats after revive = %+v", stats)
	}
}

func TestReviveLiveHostFails(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-1")
	_, err := h.svc.Revive(ReviveCommand{Host: "web-1"})
	if code := failureCode(t, err); code != CodePolicy {
		t.Fatalf("revive live host code = %s, want %s", code, CodePolicy)
	}
}

func TestPingableHostsExcludeResources(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-1")
	if _, err := h.svc.AddResourceClass(AddResourceClassCommand{Class: "licenses"}); err != nil {
		t.Fatalf("add resource class: %v", err)
	}
	if _, err := h.svc.AddResource(AddResourceCommand{Resource: "lic-1", Class: "licenses"}); err != nil {
		t.Fatalf("add resource: %v", err)
	}
	names := h.svc.PingableHosts()
	if len(names) != 1 || names[0] != "web-1" {
		t.Fatalf("pingable hosts = %v", names)
	}
}

func TestNotifyExpiredRateLimitsAndMailsOnce(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "web-1")
	expire := h.clk.Now().Add(time.Minute).Unix()
	if _, err := h.svc.ReserveHost(ReserveHostCommand{Host: "web-1", User: "alice", Expire: expire}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	h.svc.NotifyExpired()
	if h.notifier.count("chat") != 0 {
		t.Fatal("notified before expiry")
	}

	h.clk.Advance(2 * time.Minute)
	h.svc.NotifyExpired()
	if got := h.notifier.count("chat"); got != 1 {
		t.Fatalf("chat count = %d, want 1", got)
	}
	if got := h.notifier.count("mail"); got != 1 {
		t.Fatalf("mail count = %d, want 1", got)
	}

	// Within the rate-limit window nothing more is sent.
	h.clk.Advance(time.Hour)
	h.svc.NotifyExpired()
	if got := h.notifier.count("chat"); got != 1 {
		t.Fatalf("chat count inside window = %d, want 1", got)
	}

	// Past the window a repeat chat goes out, but mail only accompanies the
	// first notification.
	h.clk.Advance(6 * time.Hour)
	h.svc.NotifyExpired()
	if got := h.notifier.count("chat"); got != 2 {
		t.Fatalf("chat count after window = %d, want 2", got)
	}
	if got := h.notifier.count("mail"); got != 1 {
		t.Fatalf("mail count after window = %d, want 1", got)
	}
}

func TestNotifyExpiredSkipsUnexpiredAndUnlimited(t *testing.T) {
	h := newTestService(t)
	h.addHost(t, "forever-1")
	h.addHost(t, "later-1")
	if _, err := h.svc.ReserveHost(ReserveHostCommand{Host: "forever-1", User: "alice"}); err != nil {
		t.Fatalf("reserve forever: %v", err)
	}
	future := h.clk.Now().Add(24 * time.Hour).Unix()
	if _, err := h.svc.ReserveHost(ReserveHostCommand{Host: "later-1", User: "bob", Expire: future}); err != nil {
		t.Fatalf("reserve later: %v", err)
	}
	h.clk.Advance(time.Hour)
	h.svc.NotifyExpired()
	if got := h.notifier.count("chat"); got != 0 {
		t.Fatalf("chat count = %d, want 0", got)
	}
}
