package layer

import (
	"context"
	"strconv"

	"github.com/openprocon/layerd/internal/battlemap"
	"github.com/openprocon/layerd/internal/protocol"
)

// parsePolygon reads a point-count word followed by X Y Z triplets.
// Malformed counts or coordinates are a hard failure so a half-parsed
// polygon never reaches the store.
func parsePolygon(words []string) ([]battlemap.Point3D, bool) {
	if len(words) == 0 {
		return nil, false
	}
	count, err := strconv.Atoi(words[0])
	if err != nil || count < 0 || len(words) < 1+count*3 {
		return nil, false
	}

	polygon := make([]battlemap.Point3D, 0, count)
	for i := 0; i < count; i++ {
		pt, err := battlemap.ParsePoint3D(words[1+i*3], words[2+i*3], words[3+i*3])
		if err != nil {
			return nil, false
		}
		polygon = append(polygon, pt)
	}
	return polygon, true
}

func handleZoneCreate(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanEditMapZones) {
		return
	}
	if len(p.Words) < 3 {
		s.respond(p, StatusInvalidArguments)
		return
	}
	polygon, ok := parsePolygon(p.Words[2:])
	if !ok {
		s.respond(p, StatusInvalidArguments)
		return
	}

	s.deps.Zones.Create(p.Words[1], polygon)
	s.respond(p, StatusOK)
}

func handleZoneDelete(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanEditMapZones) {
		return
	}
	if len(p.Words) < 2 {
		s.respond(p, StatusInvalidArguments)
		return
	}

	s.deps.Zones.Delete(p.Words[1])
	s.respond(p, StatusOK)
}

func handleZoneModifyTags(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanEditMapZones) {
		return
	}
	if len(p.Words) < 3 {
		s.respond(p, StatusInvalidArguments)
		return
	}

	s.deps.Zones.SetTags(p.Words[1], battlemap.ParseTags(p.Words[2]))
	s.respond(p, StatusOK)
}

func handleZoneModifyPoints(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) || !s.requireCap(p, CanEditMapZones) {
		return
	}
	if len(p.Words) < 3 {
		s.respond(p, StatusInvalidArguments)
		return
	}
	polygon, ok := parsePolygon(p.Words[2:])
	if !ok {
		s.respond(p, StatusInvalidArguments)
		return
	}

	s.deps.Zones.SetPolygon(p.Words[1], polygon)
	s.respond(p, StatusOK)
}

func handleZoneList(_ context.Context, s *Session, p protocol.Packet) {
	if !s.requireAuth(p) {
		return
	}

	zones := s.deps.Zones.List()
	words := []string{StatusOK, strconv.Itoa(len(zones))}
	for _, z := range zones {
		words = append(words, z.UID, z.LevelFileName, z.TagsString(), strconv.Itoa(len(z.Polygon)))
		for _, pt := range z.Polygon {
			x, y, zc := pt.Words()
			words = append(words, x, y, zc)
		}
	}
	s.respond(p, words...)
}
