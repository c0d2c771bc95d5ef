package layer

import (
	"context"
	"strings"

	"github.com/openprocon/layerd/internal/protocol"
	"github.com/openprocon/layerd/internal/vars"
)

// mapFunctionCommands are round-control commands gated by the
// use-map-functions capability rather than edit-map-list. Checked
// before the mapList. prefix so mapList.runNextRound lands here.
var mapFunctionCommands = map[string]struct{}{
	"admin.runnextround":   {},
	"admin.restartround":   {},
	"admin.endround":       {},
	"admin.runnextlevel":   {},
	"admin.restartlevel":   {},
	"maplist.runnextround": {},
	"maplist.restartround": {},
	"maplist.endround":     {},
}

// forward authorizes a non-local command and passes it to the game
// connection. Command names are matched case-insensitively, the packet
// itself travels unmodified.
func (s *Session) forward(ctx context.Context, p protocol.Packet) {
	cmd := strings.ToLower(p.Command())

	switch {
	case cmd == "punkbuster.pb_sv_command":
		s.forwardPunkbuster(ctx, p)

	case cmd == "banlist.add":
		s.forwardBanAdd(ctx, p)

	case strings.HasPrefix(cmd, "banlist."):
		s.forwardGated(ctx, p, CanEditBanList)

	case mapFunctionMatch(cmd):
		s.forwardGated(ctx, p, CanUseMapFunctions)

	case strings.HasPrefix(cmd, "maplist."):
		s.forwardGated(ctx, p, CanEditMapList)

	case cmd == "admin.kickplayer":
		s.forwardGated(ctx, p, CanKickPlayers)

	case cmd == "admin.killplayer":
		s.forwardGated(ctx, p, CanKillPlayers)

	case cmd == "admin.moveplayer" || strings.HasPrefix(cmd, "squad."):
		s.forwardGated(ctx, p, CanMovePlayers)

	case strings.HasPrefix(cmd, "reservedslots"):
		s.forwardGated(ctx, p, CanEditReservedSlotsList)

	case strings.HasPrefix(cmd, "textchatmoderationlist."):
		s.forwardGated(ctx, p, CanEditTextChatModerationList)

	case strings.HasPrefix(cmd, "vars."):
		s.forwardGated(ctx, p, CanAlterServerSettings)

	case cmd == "admin.shutdown":
		s.forwardGated(ctx, p, CanShutdownServer)

	default:
		// Safelisted informational commands and anything unrecognized:
		// authentication only, no capability gate.
		if !s.requireAuth(p) {
			return
		}
		if cmd == "serverinfo" {
			s.markServerInfo(p.Sequence)
		}
		s.forwardUpstream(ctx, p)
	}
}

// replaceServerName expands the configured name template around the
// game server's reported name.
func replaceServerName(format, name string) string {
	return strings.ReplaceAll(format, "%servername%", name)
}

func mapFunctionMatch(cmd string) bool {
	_, ok := mapFunctionCommands[cmd]
	return ok
}

func (s *Session) forwardGated(ctx context.Context, p protocol.Packet, flag Privileges) {
	if !s.requireAuth(p) || !s.requireCap(p, flag) {
		return
	}
	s.forwardUpstream(ctx, p)
}

func (s *Session) forwardPunkbuster(ctx context.Context, p protocol.Packet) {
	if !s.requireAuth(p) {
		return
	}
	if len(p.Words) < 2 {
		s.respond(p, StatusInvalidArguments)
		return
	}

	ceiling := s.deps.Vars.GetInt(vars.TempBanCeiling, vars.DefaultTempBanCeiling)
	switch punkbusterDecision(s.Privileges(), p.Words[1], ceiling) {
	case decisionInsufficient:
		s.respond(p, StatusInsufficientPrivileges)
	case decisionInvalidArgs:
		s.respond(p, StatusInvalidArguments)
	default:
		s.forwardUpstream(ctx, p)
	}
}

// forwardBanAdd parses banList.add <idType> <id> <timeout...> and
// applies the tiered ban policy. A malformed timeout is rejected, not
// defaulted.
func (s *Session) forwardBanAdd(ctx context.Context, p protocol.Packet) {
	if !s.requireAuth(p) {
		return
	}
	if len(p.Words) < 4 {
		s.respond(p, StatusInvalidArguments)
		return
	}
	timeout, seconds, ok := parseBanTimeout(p.Words[3:])
	if !ok {
		s.respond(p, StatusInvalidArguments)
		return
	}

	ceiling := s.deps.Vars.GetInt(vars.TempBanCeiling, vars.DefaultTempBanCeiling)
	switch banAddDecision(s.Privileges(), timeout, seconds, ceiling) {
	case decisionInsufficient:
		s.respond(p, StatusInsufficientPrivileges)
	default:
		s.forwardUpstream(ctx, p)
	}
}

// forwardUpstream hands the packet to the game connection and relays
// its response. Upstream failures drop the response; the controller's
// own timeout handling deals with it, as it would with a dead game
// server.
func (s *Session) forwardUpstream(ctx context.Context, p protocol.Packet) {
	if s.deps.Upstream == nil {
		s.respond(p, StatusUnknownCommand)
		return
	}
	resp, err := s.deps.Upstream.Request(ctx, p)
	if err != nil {
		s.log.Warn("upstream request failed", "command", p.Command(), "error", err)
		return
	}
	s.HandleUpstreamResponse(resp)
}
