package layer

import (
	"regexp"
	"strconv"
	"strings"
)

// policyDecision is the outcome of a forward-policy check.
type policyDecision int

const (
	decisionForward policyDecision = iota
	decisionInsufficient
	decisionInvalidArgs
)

// Known punkbuster sub-commands, longest prefix first so pb_sv_banguid
// never matches as pb_sv_ban and pb_sv_unbanguid never as pb_sv_unban.
var pbSubcommands = []string{
	"pb_sv_unbanguid",
	"pb_sv_banguid",
	"pb_sv_banlist",
	"pb_sv_getss",
	"pb_sv_plist",
	"pb_sv_reban",
	"pb_sv_unban",
	"pb_sv_kick",
	"pb_sv_ban",
}

// pbKickMinutes extracts the ban-length argument of pb_sv_kick. The
// reported unit is minutes, not seconds.
var pbKickMinutes = regexp.MustCompile(`(?i)^pb_sv_kick\s+?.*?\s+?([0-9]+)\s+`)

// matchPBSubcommand returns the whitelisted sub-command the argument
// starts with, or "".
func matchPBSubcommand(arg string) string {
	lower := strings.ToLower(arg)
	for _, sub := range pbSubcommands {
		if strings.HasPrefix(lower, sub) {
			return sub
		}
	}
	return ""
}

// punkbusterDecision applies the tiered punkbuster policy to the raw
// pb_sv command string. ceiling is the temp-ban ceiling in seconds.
//
// Order matters: the hard cannot-issue flag wins, then the whitelist
// (bypassed by full punkbuster access), then the per-sub-command ban
// and kick tiers. The kick tiers exist so temporary authority never
// amounts to a permanent effect.
func punkbusterDecision(privs Privileges, arg string, ceiling int) policyDecision {
	if privs.Has(CannotIssuePunkbusterCommands) {
		return decisionInsufficient
	}

	sub := matchPBSubcommand(arg)
	if sub == "" && !privs.Has(CanIssueAllPunkbusterCommands) {
		return decisionInsufficient
	}

	switch sub {
	case "pb_sv_ban", "pb_sv_banguid", "pb_sv_reban":
		if !privs.Has(CanPermanentlyBanPlayers) {
			return decisionInsufficient
		}
	case "pb_sv_unban", "pb_sv_unbanguid":
		if !privs.Has(CanEditBanList) {
			return decisionInsufficient
		}
	case "pb_sv_kick":
		m := pbKickMinutes.FindStringSubmatch(arg)
		if m == nil {
			return decisionInvalidArgs
		}
		minutes, err := strconv.Atoi(m[1])
		if err != nil {
			return decisionInvalidArgs
		}
		switch {
		case privs.Has(CannotPunishPlayers):
			return decisionInsufficient
		case privs.Has(CanTemporaryBanPlayers) && !privs.Has(CanPermanentlyBanPlayers) &&
			minutes*60 > ceiling:
			return decisionInsufficient
		case privs.Has(CanKickPlayers) && !privs.Has(CanTemporaryBanPlayers) &&
			!privs.Has(CanPermanentlyBanPlayers) && minutes > 0:
			return decisionInsufficient
		}
	}
	return decisionForward
}

// banTimeout is the parsed duration subset of a ban-list add request.
type banTimeout int

const (
	banPermanent banTimeout = iota
	banRound
	banSeconds
)

// parseBanTimeout reads the timeout portion of a banList.add request:
// "perm", "round", or "seconds <n>".
func parseBanTimeout(words []string) (banTimeout, uint32, bool) {
	if len(words) == 0 {
		return 0, 0, false
	}
	switch strings.ToLower(words[0]) {
	case "perm":
		return banPermanent, 0, true
	case "round":
		return banRound, 0, true
	case "seconds":
		if len(words) < 2 {
			return 0, 0, false
		}
		n, err := strconv.ParseUint(words[1], 10, 32)
		if err != nil {
			return 0, 0, false
		}
		return banSeconds, uint32(n), true
	default:
		return 0, 0, false
	}
}

// banAddDecision applies the tiered ban policy. Permanent-capable
// accounts may ban for any duration; temp-only accounts are limited to
// round bans and second counts within the ceiling.
func banAddDecision(privs Privileges, timeout banTimeout, seconds uint32, ceiling int) policyDecision {
	switch {
	case timeout == banPermanent && privs.Has(CanPermanentlyBanPlayers):
		return decisionForward
	case timeout == banRound && privs.Has(CanTemporaryBanPlayers):
		return decisionForward
	case timeout == banSeconds && privs.Has(CanPermanentlyBanPlayers):
		return decisionForward
	case timeout == banSeconds && privs.Has(CanTemporaryBanPlayers):
		if ceiling >= 0 && seconds <= uint32(ceiling) {
			return decisionForward
		}
		return decisionInsufficient
	default:
		return decisionInsufficient
	}
}
