package layer

// Privileges is the capability set of an account: a bitmask of named
// permissions. The value travels on the wire as a decimal uint32
// (procon.privileges, procon.account.listAccounts,
// procon.layer.setPrivileges), so the bit layout is part of the
// protocol surface.
type Privileges uint32

const (
	CanLogin Privileges = 1 << iota
	CanShutdownServer
	CanIssueAllProconCommands
	CanIssueLimitedProconCommands
	CanEditMapZones
	CanIssueLimitedProconPluginCommands
	CanKickPlayers
	CanKillPlayers
	CanMovePlayers
	CanEditMapList
	CanUseMapFunctions
	CanEditBanList
	CanEditTextChatModerationList
	CanEditReservedSlotsList
	CanAlterServerSettings
	CanPermanentlyBanPlayers
	CanTemporaryBanPlayers
	CannotPunishPlayers
	CanIssueAllPunkbusterCommands
	CannotIssuePunkbusterCommands
)

// FullPrivileges grants every positive capability without the two
// restriction flags.
const FullPrivileges = CanLogin |
	CanShutdownServer |
	CanIssueAllProconCommands |
	CanIssueLimitedProconCommands |
	CanEditMapZones |
	CanIssueLimitedProconPluginCommands |
	CanKickPlayers |
	CanKillPlayers |
	CanMovePlayers |
	CanEditMapList |
	CanUseMapFunctions |
	CanEditBanList |
	CanEditTextChatModerationList |
	CanEditReservedSlotsList |
	CanAlterServerSettings |
	CanPermanentlyBanPlayers |
	CanTemporaryBanPlayers |
	CanIssueAllPunkbusterCommands

// Has reports whether every flag in f is set.
func (p Privileges) Has(f Privileges) bool {
	return p&f == f
}

// Lowest narrows p by o: the result holds only capabilities present in
// both sets. A session's effective privileges are the account's flags
// narrowed by the connection-wide ceiling.
func (p Privileges) Lowest(o Privileges) Privileges {
	return p & o
}

// Flags returns the raw bitmask in its wire form.
func (p Privileges) Flags() uint32 {
	return uint32(p)
}
