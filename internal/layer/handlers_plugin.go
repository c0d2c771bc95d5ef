package layer

import (
	"context"
	"strconv"

	"github.com/openprocon/layerd/internal/protocol"
)

func handlePluginListLoaded(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconPluginCommands) {
		return
	}
	if len(p.Words) != 1 {
		s.respond(p, StatusInvalidArguments)
		return
	}

	s.mu.Lock()
	compress := s.compression
	s.mu.Unlock()

	words := []string{StatusOK}
	for _, className := range s.deps.Plugins.LoadedClassNames() {
		d, ok := s.deps.Plugins.Details(className)
		if !ok {
			continue
		}

		description := d.Description
		if compress {
			if c, err := protocol.CompressWord(d.Description); err == nil {
				description = c
			} else {
				s.log.Warn("plugin description compression failed", "plugin", className, "error", err)
			}
		}

		words = append(words, d.ClassName, d.Name, d.Author, d.Website, d.Version, description,
			strconv.Itoa(len(d.Variables)))
		for _, v := range d.Variables {
			words = append(words, v.Name, v.Type, v.Value)
		}
	}
	s.respond(p, words...)
}

func handlePluginListEnabled(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconPluginCommands) {
		return
	}
	words := append([]string{StatusOK}, s.deps.Plugins.EnabledClassNames()...)
	s.respond(p, words...)
}

func handlePluginEnable(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconPluginCommands) {
		return
	}
	if len(p.Words) < 3 {
		s.respond(p, StatusInvalidArguments)
		return
	}
	enabled, err := strconv.ParseBool(p.Words[2])
	if err != nil {
		s.respond(p, StatusInvalidArguments)
		return
	}

	s.respond(p, StatusOK)
	s.deps.Plugins.SetEnabled(p.Words[1], enabled)
}

func handlePluginSetVariable(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanIssueLimitedProconPluginCommands) {
		return
	}
	if len(p.Words) < 4 {
		s.respond(p, StatusInvalidArguments)
		return
	}

	s.respond(p, StatusOK)
	s.deps.Plugins.SetVariable(p.Words[1], p.Words[2], p.Words[3])
}
