package layer

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/openprocon/layerd/internal/battlemap"
	"github.com/openprocon/layerd/internal/event"
	"github.com/openprocon/layerd/internal/plugin"
	"github.com/openprocon/layerd/internal/protocol"
)

// notifications filters the server-originated event packets out of a
// transport's write log.
func notifications(ft *fakeTransport) []protocol.Packet {
	var out []protocol.Packet
	for _, p := range ft.sent() {
		if !p.Response {
			out = append(out, p)
		}
	}
	return out
}

func subscribedSession(env *testEnv, t *testing.T, name string, privs Privileges) (*Session, *fakeTransport) {
	t.Helper()
	s, ft := env.authedSession(name, privs)
	s.Handle(context.Background(), req(1, "admin.eventsEnabled", "true"))
	wantResponse(t, ft, StatusOK)
	return s, ft
}

func relayEnv(t *testing.T) (*testEnv, *Relay) {
	t.Helper()
	env := newTestEnv(t)
	relay := NewRelay(env.registry, FullPrivileges)
	relay.Attach(env.bus)
	t.Cleanup(func() { relay.Detach(env.bus) })
	return env, relay
}

func TestRelayGating(t *testing.T) {
	env, _ := relayEnv(t)
	ctx := context.Background()

	s, ft := env.authedSession("watcher", CanLogin)

	if err := env.accounts.Create(ctx, "first", "pw"); err != nil {
		t.Fatal(err)
	}
	if len(notifications(ft)) != 0 {
		t.Fatal("unsubscribed session received an event")
	}

	s.Handle(ctx, req(1, "admin.eventsEnabled", "true"))
	wantResponse(t, ft, StatusOK)

	if err := env.accounts.Create(ctx, "second", "pw"); err != nil {
		t.Fatal(err)
	}
	got := notifications(ft)
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if got[0].Words[0] != "procon.account.onCreated" || got[0].Words[1] != "second" {
		t.Errorf("notification = %v", got[0].Words)
	}
	if !got[0].OriginServer || got[0].Response {
		t.Error("notification not a server-originated request")
	}

	// Unauthenticated sessions never receive events, subscribed or not.
	_, idleFT := env.newSession()
	if err := env.accounts.Create(ctx, "third", "pw"); err != nil {
		t.Fatal(err)
	}
	if len(notifications(idleFT)) != 0 {
		t.Error("unauthenticated session received an event")
	}
}

func TestRelayPrivilegeChangeRenarrows(t *testing.T) {
	env, _ := relayEnv(t)
	ctx := context.Background()
	env.createAccount(t, "bob", "pw", FullPrivileges)

	bob, bobFT := subscribedSession(env, t, "bob", FullPrivileges)
	other, otherFT := subscribedSession(env, t, "alice", CanLogin)

	newFlags := CanLogin | CanKickPlayers
	if err := env.accounts.SetPrivileges(ctx, "bob", newFlags.Flags()); err != nil {
		t.Fatal(err)
	}

	if got := bob.Privileges(); got != newFlags {
		t.Errorf("subject privileges = %#x, want %#x", got.Flags(), newFlags.Flags())
	}
	if got := other.Privileges(); got != CanLogin {
		t.Errorf("bystander privileges changed: %#x", got.Flags())
	}

	want := []string{"procon.account.onAltered", "bob", strconv.FormatUint(uint64(newFlags.Flags()), 10)}
	for name, ft := range map[string]*fakeTransport{"bob": bobFT, "alice": otherFT} {
		got := notifications(ft)
		if len(got) != 1 {
			t.Fatalf("%s notifications = %d, want 1", name, len(got))
		}
		for i, w := range want {
			if got[0].Words[i] != w {
				t.Errorf("%s notification = %v, want %v", name, got[0].Words, want)
			}
		}
	}
}

func TestRelayLogoutSkipsSubject(t *testing.T) {
	env, _ := relayEnv(t)
	env.createAccount(t, "alice", "pw", FullPrivileges)

	// Two controllers on the same account plus a bystander.
	leaving, leavingFT := subscribedSession(env, t, "alice", FullPrivileges)
	_, twinFT := subscribedSession(env, t, "alice", FullPrivileges)
	_, bystanderFT := subscribedSession(env, t, "bob", CanLogin)

	leaving.Handle(context.Background(), req(5, "logout"))

	if n := len(notifications(bystanderFT)); n != 1 {
		t.Fatalf("bystander notifications = %d, want 1", n)
	}
	got := notifications(bystanderFT)[0]
	if got.Words[0] != "procon.account.onLogout" || got.Words[1] != "alice" {
		t.Errorf("notification = %v", got.Words)
	}
	if len(notifications(twinFT)) != 0 {
		t.Error("same-account session notified of its own account's logout")
	}
	if len(notifications(leavingFT)) != 0 {
		t.Error("subject notified of its own logout")
	}
}

func TestRelayLoginAndUIDEvents(t *testing.T) {
	env, _ := relayEnv(t)
	ctx := context.Background()
	env.createAccount(t, "carol", "pw", CanLogin|CanKickPlayers)

	_, watcherFT := subscribedSession(env, t, "watcher", CanLogin)

	s, ft := env.newSession()
	s.Handle(ctx, req(1, "procon.login.username", "carol"))
	s.Handle(ctx, req(2, "login.plainText", "pw"))
	wantResponse(t, ft, StatusOK)

	got := notifications(watcherFT)
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	wantFlags := strconv.FormatUint(uint64((CanLogin | CanKickPlayers).Flags()), 10)
	if got[0].Words[0] != "procon.account.onLogin" || got[0].Words[1] != "carol" || got[0].Words[2] != wantFlags {
		t.Errorf("onLogin = %v", got[0].Words)
	}

	s.Handle(ctx, req(3, "procon.registerUid", "true", "uid-c"))
	wantResponse(t, ft, StatusOK)
	got = notifications(watcherFT)
	if len(got) != 2 {
		t.Fatalf("notifications = %d, want 2", len(got))
	}
	if got[1].Words[0] != "procon.account.onUidRegistered" || got[1].Words[1] != "uid-c" || got[1].Words[2] != "carol" {
		t.Errorf("onUidRegistered = %v", got[1].Words)
	}
}

func TestRelayDomainEvents(t *testing.T) {
	env, _ := relayEnv(t)
	_, ft := subscribedSession(env, t, "watcher", CanLogin)

	env.vars.Set("BANNER", "hi")
	zone := env.zones.Create("mp_harbor", []battlemap.Point3D{{X: 1, Y: 2, Z: 3}})
	env.plugins.Register(plugin.Details{ClassName: "CThing", Name: "Thing", Version: "1.0"})
	env.plugins.SetEnabled("CThing", true)
	chat := event.NewConsoleSource(env.bus, event.ChatConsole)
	at := time.Unix(1700000000, 0).UTC()
	chat.WriteAt(at, "player: hello")

	got := notifications(ft)
	if len(got) != 7 {
		t.Fatalf("notifications = %d, want 7", len(got))
	}

	if got[0].Words[0] != "procon.vars.onAltered" || got[0].Words[1] != "BANNER" || got[0].Words[2] != "hi" {
		t.Errorf("vars event = %v", got[0].Words)
	}
	zoneWords := got[1].Words
	if zoneWords[0] != "procon.battlemap.onZoneCreated" || zoneWords[1] != zone.UID ||
		zoneWords[2] != "mp_harbor" || zoneWords[3] != "1" || zoneWords[4] != "1" {
		t.Errorf("zone event = %v", zoneWords)
	}
	if got[2].Words[0] != "procon.plugin.onLoaded" || got[2].Words[1] != "CThing" {
		t.Errorf("plugin loaded event = %v", got[2].Words)
	}
	if got[3].Words[0] != "procon.plugin.onConsole" || got[3].Words[2] != "Loaded Thing 1.0" {
		t.Errorf("plugin console event = %v", got[3].Words)
	}
	if got[4].Words[0] != "procon.plugin.onEnabled" || got[4].Words[2] != "True" {
		t.Errorf("plugin enabled event = %v", got[4].Words)
	}
	if got[5].Words[0] != "procon.plugin.onConsole" || got[5].Words[2] != "Enabled CThing" {
		t.Errorf("plugin console event = %v", got[5].Words)
	}
	chatWords := got[6].Words
	if chatWords[0] != "procon.chat.onConsole" ||
		chatWords[1] != strconv.FormatInt(at.UnixMilli(), 10) || chatWords[2] != "player: hello" {
		t.Errorf("chat event = %v", chatWords)
	}
}

func TestRelayShutdownNotice(t *testing.T) {
	env, relay := relayEnv(t)
	_, ft := subscribedSession(env, t, "watcher", CanLogin)

	relay.NotifyShutdown()
	got := notifications(ft)
	if len(got) != 1 || got[0].Words[0] != "procon.shutdown" {
		t.Errorf("shutdown notice = %v", got)
	}
}

func TestRelayDetachStopsDelivery(t *testing.T) {
	env, relay := relayEnv(t)
	_, ft := subscribedSession(env, t, "watcher", CanLogin)

	relay.Detach(env.bus)
	env.vars.Set("BANNER", "hi")
	if len(notifications(ft)) != 0 {
		t.Error("detached relay still delivering")
	}

	// Re-attaching twice keeps a single subscription.
	relay.Attach(env.bus)
	relay.Attach(env.bus)
	env.vars.Set("BANNER", "again")
	if n := len(notifications(ft)); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}
