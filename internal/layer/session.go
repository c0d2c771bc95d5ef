// Package layer is the session core of the server: it authenticates
// controllers, authorizes every command against the account's
// capability set, answers procon.* administration commands locally,
// forwards everything else to the game server, and relays domain
// events to subscribed sessions.
package layer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/openprocon/layerd/internal/accounts"
	"github.com/openprocon/layerd/internal/battlemap"
	"github.com/openprocon/layerd/internal/event"
	"github.com/openprocon/layerd/internal/plugin"
	"github.com/openprocon/layerd/internal/protocol"
	"github.com/openprocon/layerd/internal/vars"
)

// Transport delivers packets to the connected controller. WritePacket
// must be safe for concurrent use: event notifications are pushed from
// the relay goroutine while the session may be writing a response.
type Transport interface {
	WritePacket(p protocol.Packet) error
	Close() error
	RemoteAddr() string
}

// Upstream is the live connection to the game server.
type Upstream interface {
	// Request forwards a request and waits for the matching response.
	Request(ctx context.Context, p protocol.Packet) (protocol.Packet, error)
	// Send forwards a request without waiting for its response.
	Send(p protocol.Packet) error
}

// Executor runs an administrative command inside the hosting
// application (procon.exec).
type Executor interface {
	Exec(words []string)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Accounts *accounts.Registry
	Vars     *vars.Store
	Plugins  *plugin.Manager
	Zones    *battlemap.Store
	Bus      *event.Bus
	Registry *Registry
	Upstream Upstream
	Exec     Executor
	Shutdown func() // invoked by procon.application.shutdown, may be nil
	Log      *slog.Logger

	Version       string
	NameFormat    string
	MaxPrivileges Privileges
}

// Session is the per-connection state machine. Packets are handled
// strictly sequentially by the owning connection goroutine; the mutex
// guards the fields the relay reads and mutates concurrently.
type Session struct {
	deps      Deps
	transport Transport
	log       *slog.Logger

	mu            sync.Mutex
	state         AuthState
	username      string
	privileges    Privileges
	eventsEnabled bool
	compression   bool
	uid           string
	salt          string
	serverInfoSeq uint32
	hasInfoSeq    bool
	eventSeq      uint32

	teardownOnce sync.Once
}

// NewSession wraps a fresh controller connection. The caller registers
// the session with the registry and must arrange Teardown exactly once
// when the connection ends.
func NewSession(t Transport, deps Deps) *Session {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		deps:      deps,
		transport: t,
		log:       log.With("client", t.RemoteAddr()),
	}
}

// State returns the current authentication state.
func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Username returns the declared username, which may be set before
// authentication succeeds.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// UID returns the registered subscriber id, or "".
func (s *Session) UID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid
}

// Privileges returns the effective capability set.
func (s *Session) Privileges() Privileges {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.privileges
}

func (s *Session) setUID(uid string) {
	s.mu.Lock()
	s.uid = uid
	s.mu.Unlock()
}

// authenticated reports whether the session may issue privileged
// commands right now.
func (s *Session) authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Authenticated
}

// snapshot returns the fields a handler needs without holding the lock
// across the handler body.
func (s *Session) snapshot() (AuthState, string, Privileges) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.username, s.privileges
}

// respond sends the response to p. Send failures are logged and
// swallowed: the connection goroutine will observe the broken transport
// on its next read.
func (s *Session) respond(p protocol.Packet, words ...string) {
	if err := s.transport.WritePacket(p.Respond(words...)); err != nil {
		s.log.Warn("response send failed", "command", p.Command(), "error", err)
	}
}

// Notify pushes an event notification if the session is authenticated
// and subscribed. Best effort: a dead transport drops the packet.
func (s *Session) Notify(words ...string) {
	s.mu.Lock()
	eligible := s.state == Authenticated && s.eventsEnabled
	seq := s.eventSeq
	if eligible {
		s.eventSeq = (s.eventSeq + 1) % (1 << 30)
	}
	s.mu.Unlock()

	if !eligible {
		return
	}
	if err := s.transport.WritePacket(protocol.NewServerRequest(seq, words...)); err != nil {
		s.log.Debug("event notification dropped", "event", words[0], "error", err)
	}
}

// ApplyPrivilegeChange renarrows the session's own capability set when
// the privileges of its account change mid-session.
func (s *Session) ApplyPrivilegeChange(name string, flags Privileges) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Authenticated && s.username == name {
		s.privileges = flags.Lowest(s.deps.MaxPrivileges)
	}
}

// markServerInfo records the sequence of a server-info request so the
// matching response gets the name rewrite.
func (s *Session) markServerInfo(seq uint32) {
	s.mu.Lock()
	s.serverInfoSeq = seq
	s.hasInfoSeq = true
	s.mu.Unlock()
}

// HandleUpstreamResponse relays a response from the game server to the
// controller, substituting the configured name template into the
// server-info response body.
func (s *Session) HandleUpstreamResponse(p protocol.Packet) {
	s.mu.Lock()
	rewrite := s.hasInfoSeq && s.serverInfoSeq == p.Sequence && len(p.Words) >= 2
	format := s.deps.NameFormat
	s.mu.Unlock()

	if rewrite {
		words := make([]string, len(p.Words))
		copy(words, p.Words)
		words[1] = replaceServerName(format, words[1])
		p.Words = words
	}
	if err := s.transport.WritePacket(p); err != nil {
		s.log.Warn("forwarded response send failed", "error", err)
	}
}

// Teardown releases everything the session holds: its registry slot
// (and with it all event delivery), its subscriber id, and the
// transport. Idempotent; safe to call from the quit handler and the
// connection goroutine's defer.
func (s *Session) Teardown() {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		wasAuthenticated := s.state == Authenticated
		username := s.username
		s.state = Disconnected
		s.uid = ""
		s.mu.Unlock()

		if s.deps.Registry != nil {
			s.deps.Registry.Remove(s)
		}
		if wasAuthenticated && s.deps.Bus != nil {
			s.deps.Bus.Publish(event.Event{
				Type:    event.AccountLoggedOut,
				Payload: event.Account{Name: username},
			})
		}
		if err := s.transport.Close(); err != nil {
			s.log.Debug("transport close", "error", err)
		}
		s.log.Info("session closed", "account", username)
	})
}
