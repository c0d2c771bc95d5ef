package layer

import (
	"context"
	"errors"
	"strconv"

	"github.com/openprocon/layerd/internal/accounts"
	"github.com/openprocon/layerd/internal/protocol"
)

func handleAccountListAccounts(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconCommands) {
		return
	}

	words := []string{StatusOK}
	for _, name := range s.deps.Accounts.Names() {
		flags, _ := s.deps.Accounts.Privileges(name)
		words = append(words, name, strconv.FormatUint(uint64(flags), 10))
	}
	s.respond(p, words...)
}

func handleAccountListLoggedIn(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconCommands) {
		return
	}

	includeUIDs := len(p.Words) >= 2 && p.Words[1] == "uids"
	words := append([]string{StatusOK}, s.deps.Registry.LoggedIn(includeUIDs)...)
	s.respond(p, words...)
}

func handleAccountCreate(ctx context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconCommands) {
		return
	}
	if len(p.Words) < 3 || p.Words[2] == "" {
		s.respond(p, StatusInvalidArguments)
		return
	}

	err := s.deps.Accounts.Create(ctx, p.Words[1], p.Words[2])
	switch {
	case errors.Is(err, accounts.ErrExists):
		s.respond(p, StatusAccountAlreadyExists)
	case err != nil:
		s.respond(p, StatusInvalidArguments)
	default:
		s.respond(p, StatusOK)
	}
}

func handleAccountDelete(ctx context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconCommands) {
		return
	}
	if len(p.Words) < 2 {
		s.respond(p, StatusInvalidArguments)
		return
	}

	if err := s.deps.Accounts.Delete(ctx, p.Words[1]); err != nil {
		s.respond(p, StatusAccountDoesNotExists)
		return
	}
	s.respond(p, StatusOK)
}

func handleAccountSetPassword(ctx context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconCommands) {
		return
	}
	if len(p.Words) < 3 || p.Words[2] == "" {
		s.respond(p, StatusInvalidArguments)
		return
	}

	if err := s.deps.Accounts.SetPassword(ctx, p.Words[1], p.Words[2]); err != nil {
		s.respond(p, StatusAccountDoesNotExists)
		return
	}
	s.respond(p, StatusOK)
}

// handleLayerSetPrivileges rewrites an account's capability flags. The
// privilege-change event this publishes renarrows any live session of
// that account (see Relay).
func handleLayerSetPrivileges(ctx context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconCommands) {
		return
	}
	if len(p.Words) < 3 {
		s.respond(p, StatusInvalidArguments)
		return
	}
	flags, err := strconv.ParseUint(p.Words[2], 10, 32)
	if err != nil {
		s.respond(p, StatusInvalidArguments)
		return
	}

	if err := s.deps.Accounts.SetPrivileges(ctx, p.Words[1], uint32(flags)); err != nil {
		s.respond(p, StatusAccountDoesNotExists)
		return
	}
	s.respond(p, StatusOK)
}
