package layer

import (
	"context"
	"strconv"

	"github.com/openprocon/layerd/internal/event"
	"github.com/openprocon/layerd/internal/protocol"
	"github.com/openprocon/layerd/internal/vars"
)

// resolveCredentials looks up the stored password and capability flags
// for a declared username. The empty username is the guest account,
// enabled only while GUEST_PASSWORD is non-empty.
func (s *Session) resolveCredentials(username string) (password string, flags Privileges, known bool) {
	if s.deps.Accounts.Contains(username) {
		password, _ = s.deps.Accounts.Password(username)
		raw, _ := s.deps.Accounts.Privileges(username)
		return password, Privileges(raw), true
	}
	if username == "" {
		guest := s.deps.Vars.GetString(vars.GuestPassword, "")
		if guest == "" {
			return "", 0, false
		}
		return guest, Privileges(s.deps.Vars.GetUint32(vars.GuestPrivileges, 0)), true
	}
	return "", 0, false
}

// completeLogin installs the narrowed capability set and announces the
// login. The caller already validated the credentials.
func (s *Session) completeLogin(p protocol.Packet, username string, flags Privileges) {
	effective := flags.Lowest(s.deps.MaxPrivileges)
	if !effective.Has(CanLogin) {
		s.respond(p, StatusInsufficientPrivileges)
		return
	}

	s.mu.Lock()
	s.state = Authenticated
	s.privileges = effective
	s.salt = ""
	s.mu.Unlock()

	s.respond(p, StatusOK)
	s.log.Info("controller logged in", "account", username)
	s.deps.Bus.Publish(event.Event{
		Type:    event.AccountLoggedIn,
		Payload: event.Privileges{Name: username, Flags: effective.Flags()},
	})
}

// handleLoginHashed answers both shapes of the hashed login exchange:
// without arguments it issues a fresh salt challenge, with one argument
// it verifies the submitted digest against the outstanding challenge.
func handleLoginHashed(_ context.Context, s *Session, p protocol.Packet) {
	if len(p.Words) < 2 {
		salt, err := generateSalt()
		if err != nil {
			// Server-side failure, not a protocol error. Drop the
			// connection rather than return a misleading status.
			s.log.Error("salt generation failed", "error", err)
			s.Teardown()
			return
		}
		s.mu.Lock()
		s.salt = salt
		s.state = SaltIssued
		s.privileges = 0
		s.mu.Unlock()
		s.respond(p, StatusOK, salt)
		return
	}

	s.mu.Lock()
	salt := s.salt
	username := s.username
	s.mu.Unlock()

	password, flags, known := s.resolveCredentials(username)
	if !known {
		s.respond(p, StatusInvalidUsername)
		return
	}
	if salt == "" || password == "" || !verifyHash(salt, password, p.Words[1]) {
		s.respond(p, StatusInvalidPasswordHash)
		return
	}
	s.completeLogin(p, username, flags)
}

func handleLoginPlainText(_ context.Context, s *Session, p protocol.Packet) {
	if len(p.Words) < 2 {
		s.respond(p, StatusInvalidArguments)
		return
	}

	username := s.Username()
	password, flags, known := s.resolveCredentials(username)
	if !known {
		s.respond(p, StatusInvalidUsername)
		return
	}
	if password == "" || password != p.Words[1] {
		s.respond(p, StatusInvalidPassword)
		return
	}
	s.completeLogin(p, username, flags)
}

func handleLogout(_ context.Context, s *Session, p protocol.Packet) {
	s.mu.Lock()
	wasAuthenticated := s.state == Authenticated
	username := s.username
	s.state = Unauthenticated
	s.privileges = 0
	s.salt = ""
	s.mu.Unlock()

	s.respond(p, StatusOK)
	if wasAuthenticated {
		s.deps.Bus.Publish(event.Event{
			Type:    event.AccountLoggedOut,
			Payload: event.Account{Name: username},
		})
	}
}

func handleQuit(_ context.Context, s *Session, p protocol.Packet) {
	s.respond(p, StatusOK)
	s.Teardown()
}

func handleEventsEnabled(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) {
		return
	}
	if len(p.Words) < 2 {
		s.respond(p, StatusInvalidArguments)
		return
	}
	enabled, err := strconv.ParseBool(p.Words[1])
	if err != nil {
		s.respond(p, StatusInvalidArguments)
		return
	}
	s.mu.Lock()
	s.eventsEnabled = enabled
	s.mu.Unlock()
	s.respond(p, StatusOK)
}

func handleVersion(_ context.Context, s *Session, p protocol.Packet) {
	s.respond(p, StatusOK, s.deps.Version)
}

// handleLoginUsername records the declared username ahead of the
// credential exchange. Errors in the lookup are reported immediately so
// controllers can prompt again before sending a password.
func handleLoginUsername(_ context.Context, s *Session, p protocol.Packet) {
	if len(p.Words) < 2 {
		s.respond(p, StatusInvalidArguments)
		return
	}
	username := p.Words[1]

	s.mu.Lock()
	s.username = username
	s.mu.Unlock()

	_, flags, known := s.resolveCredentials(username)
	if !known {
		s.respond(p, StatusInvalidUsername)
		return
	}
	if !flags.Lowest(s.deps.MaxPrivileges).Has(CanLogin) {
		s.respond(p, StatusInsufficientPrivileges)
		return
	}
	s.respond(p, StatusOK)
}

func handleRegisterUID(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) {
		return
	}
	if len(p.Words) < 2 {
		s.respond(p, StatusInvalidArguments)
		return
	}
	enabled, err := strconv.ParseBool(p.Words[1])
	if err != nil {
		s.respond(p, StatusInvalidArguments)
		return
	}

	if !enabled {
		s.setUID("")
		s.respond(p, StatusOK)
		return
	}
	if len(p.Words) < 3 {
		s.respond(p, StatusInvalidArguments)
		return
	}

	uid := p.Words[2]
	if !s.deps.Registry.ClaimUID(s, uid) {
		s.respond(p, StatusProconUidConflict)
		return
	}
	s.respond(p, StatusOK)
	s.deps.Bus.Publish(event.Event{
		Type:    event.AccountRegistered,
		Payload: event.UID{UID: uid, Name: s.Username()},
	})
}

// handleVars reads a layer variable with two words, writes it with
// three. Reads are open to any authenticated session; writes need the
// limited-administration capability.
func handleVars(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) {
		return
	}
	switch {
	case len(p.Words) == 2:
		s.respond(p, StatusOK, p.Words[1], s.deps.Vars.GetString(p.Words[1], ""))
	case len(p.Words) > 2:
		if !s.requireCap(p, CanIssueLimitedProconCommands) {
			return
		}
		s.deps.Vars.Set(p.Words[1], p.Words[2])
		s.respond(p, StatusOK, p.Words[1], s.deps.Vars.GetString(p.Words[1], ""))
	default:
		s.respond(p, StatusInvalidArguments)
	}
}

func handlePrivileges(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) {
		return
	}
	s.respond(p, StatusOK, strconv.FormatUint(uint64(s.Privileges().Flags()), 10))
}

func handleCompression(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconCommands) {
		return
	}
	if len(p.Words) != 2 {
		s.respond(p, StatusInvalidArguments)
		return
	}
	enabled, err := strconv.ParseBool(p.Words[1])
	if err != nil {
		s.respond(p, StatusInvalidArguments)
		return
	}
	s.mu.Lock()
	s.compression = enabled
	s.mu.Unlock()
	s.respond(p, StatusOK)
}

func handleExec(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueAllProconCommands) {
		return
	}
	s.respond(p, StatusOK)
	if s.deps.Exec != nil {
		s.deps.Exec.Exec(p.Words[1:])
	}
}

func handleApplicationShutdown(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanShutdownServer) {
		return
	}
	s.respond(p, StatusOK)
	s.log.Warn("shutdown requested", "account", s.Username())
	if s.deps.Shutdown != nil {
		s.deps.Shutdown()
	}
}

// broadcastWithSender rewrites the target-selector word to carry the
// issuing account, pipe-delimited after any existing selector, then
// passes the packet to the game connection.
func broadcastWithSender(_ context.Context, s *Session, p protocol.Packet, minWords int) {
	if !s.requireAuth(p) {
		return
	}
	if len(p.Words) < minWords {
		s.respond(p, StatusInvalidArguments)
		return
	}

	words := make([]string, len(p.Words))
	copy(words, p.Words)
	sender := protocol.EncodeValue(s.Username())
	if words[1] != "" {
		words[1] = words[1] + "|" + sender
	} else {
		words[1] = sender
	}

	s.respond(p, StatusOK)
	out := p
	out.Words = words
	if err := s.deps.Upstream.Send(out); err != nil {
		s.log.Warn("broadcast forward failed", "command", p.Command(), "error", err)
	}
}

func handleAdminSay(ctx context.Context, s *Session, p protocol.Packet) {
	broadcastWithSender(ctx, s, p, 4)
}

func handleAdminYell(ctx context.Context, s *Session, p protocol.Packet) {
	broadcastWithSender(ctx, s, p, 5)
}
