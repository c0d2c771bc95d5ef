package layer

import (
	"context"
	"strings"

	"github.com/openprocon/layerd/internal/protocol"
)

// handlerFunc answers one local command. Handlers own the full
// validate-authorize-effect-respond cycle and emit exactly one
// response.
type handlerFunc func(ctx context.Context, s *Session, p protocol.Packet)

// localCommands routes administration commands answered by the layer
// itself. Anything absent falls through to the forward policy, except
// unknown procon-prefixed names which are rejected outright.
var localCommands = map[string]handlerFunc{
	// Authentication primitives.
	"login.hashed":    handleLoginHashed,
	"login.plainText": handleLoginPlainText,
	"logout":          handleLogout,
	"quit":            handleQuit,

	"admin.eventsEnabled": handleEventsEnabled,

	// Layer administration.
	"procon.application.shutdown": handleApplicationShutdown,
	"procon.login.username":       handleLoginUsername,
	"procon.registerUid":          handleRegisterUID,
	"procon.version":              handleVersion,
	"procon.vars":                 handleVars,
	"procon.privileges":           handlePrivileges,
	"procon.compression":          handleCompression,
	"procon.exec":                 handleExec,

	"procon.account.listAccounts": handleAccountListAccounts,
	"procon.account.listLoggedIn": handleAccountListLoggedIn,
	"procon.account.create":       handleAccountCreate,
	"procon.account.delete":       handleAccountDelete,
	"procon.account.setPassword":  handleAccountSetPassword,

	"procon.layer.setPrivileges": handleLayerSetPrivileges,

	"procon.battlemap.createZone":       handleZoneCreate,
	"procon.battlemap.deleteZone":       handleZoneDelete,
	"procon.battlemap.modifyZoneTags":   handleZoneModifyTags,
	"procon.battlemap.modifyZonePoints": handleZoneModifyPoints,
	"procon.battlemap.listZones":        handleZoneList,

	"procon.plugin.listLoaded":  handlePluginListLoaded,
	"procon.plugin.listEnabled": handlePluginListEnabled,
	"procon.plugin.enable":      handlePluginEnable,
	"procon.plugin.setVariable": handlePluginSetVariable,

	"procon.admin.say":  handleAdminSay,
	"procon.admin.yell": handleAdminYell,
}

// Handle dispatches one inbound packet. Called sequentially by the
// connection goroutine; the response (or forward) completes before the
// next packet is read.
func (s *Session) Handle(ctx context.Context, p protocol.Packet) {
	if len(p.Words) == 0 {
		return
	}
	if h, ok := localCommands[p.Command()]; ok {
		h(ctx, s, p)
		return
	}
	if strings.HasPrefix(strings.ToLower(p.Command()), "procon.") {
		s.respond(p, StatusUnknownCommand)
		return
	}
	s.forward(ctx, p)
}

// requireAuth rejects with LogInRequired unless the session is
// authenticated.
func (s *Session) requireAuth(p protocol.Packet) bool {
	if !s.authenticated() {
		s.respond(p, StatusLogInRequired)
		return false
	}
	return true
}

// requireCap rejects with InsufficientPrivileges unless the session
// holds every flag in f. Evaluated per packet: privileges can change
// mid-session.
func (s *Session) requireCap(p protocol.Packet, f Privileges) bool {
	if !s.Privileges().Has(f) {
		s.respond(p, StatusInsufficientPrivileges)
		return false
	}
	return true
}
