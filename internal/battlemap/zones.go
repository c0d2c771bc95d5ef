// Package battlemap stores the map-zone drawings controllers edit: a
// tagged 3-D polygon per zone, keyed by an opaque uid. Mutations are
// published on the event bus.
package battlemap

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/openprocon/layerd/internal/event"
)

// Point3D is one polygon vertex.
type Point3D struct {
	X, Y, Z float64
}

// ParsePoint3D parses the three wire words of a vertex.
func ParsePoint3D(x, y, z string) (Point3D, error) {
	var p Point3D
	var err error
	if p.X, err = strconv.ParseFloat(x, 64); err != nil {
		return Point3D{}, err
	}
	if p.Y, err = strconv.ParseFloat(y, 64); err != nil {
		return Point3D{}, err
	}
	if p.Z, err = strconv.ParseFloat(z, 64); err != nil {
		return Point3D{}, err
	}
	return p, nil
}

// Words returns the vertex in wire form.
func (p Point3D) Words() (x, y, z string) {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(p.X), f(p.Y), f(p.Z)
}

// Zone is one map-zone drawing.
type Zone struct {
	UID           string
	LevelFileName string
	Tags          []string
	Polygon       []Point3D
}

// TagsString renders the tag set in its wire form.
func (z Zone) TagsString() string {
	return strings.Join(z.Tags, ",")
}

// ParseTags splits a wire tag string into the stored tag set.
func ParseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Store holds the zones. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	zones map[string]Zone
	bus   *event.Bus
}

// NewStore creates an empty zone store publishing on bus.
func NewStore(bus *event.Bus) *Store {
	return &Store{
		zones: make(map[string]Zone),
		bus:   bus,
	}
}

// Create adds a zone for the given level and polygon, returning its uid.
func (s *Store) Create(levelFileName string, polygon []Point3D) Zone {
	zone := Zone{
		UID:           newUID(),
		LevelFileName: levelFileName,
		Polygon:       polygon,
	}

	s.mu.Lock()
	s.zones[zone.UID] = zone
	s.mu.Unlock()

	s.bus.Publish(event.Event{Type: event.ZoneCreated, Payload: payload(zone)})
	return zone
}

// Delete removes the zone with uid. Unknown uids are ignored.
func (s *Store) Delete(uid string) {
	s.mu.Lock()
	zone, ok := s.zones[uid]
	if ok {
		delete(s.zones, uid)
	}
	s.mu.Unlock()

	if ok {
		s.bus.Publish(event.Event{Type: event.ZoneRemoved, Payload: payload(zone)})
	}
}

// Contains reports whether uid names a stored zone.
func (s *Store) Contains(uid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.zones[uid]
	return ok
}

// SetTags replaces the tag set of the zone with uid.
func (s *Store) SetTags(uid string, tags []string) {
	s.modify(uid, func(z *Zone) { z.Tags = tags })
}

// SetPolygon replaces the polygon of the zone with uid.
func (s *Store) SetPolygon(uid string, polygon []Point3D) {
	s.modify(uid, func(z *Zone) { z.Polygon = polygon })
}

func (s *Store) modify(uid string, fn func(*Zone)) {
	s.mu.Lock()
	zone, ok := s.zones[uid]
	if ok {
		fn(&zone)
		s.zones[uid] = zone
	}
	s.mu.Unlock()

	if ok {
		s.bus.Publish(event.Event{Type: event.ZoneModified, Payload: payload(zone)})
	}
}

// List returns all zones ordered by uid.
func (s *Store) List() []Zone {
	s.mu.RLock()
	zones := make([]Zone, 0, len(s.zones))
	for _, z := range s.zones {
		zones = append(zones, z)
	}
	s.mu.RUnlock()

	sort.Slice(zones, func(i, j int) bool { return zones[i].UID < zones[j].UID })
	return zones
}

// Count returns the number of stored zones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones)
}

func payload(z Zone) event.Zone {
	pts := make([]event.Point, 0, len(z.Polygon))
	for _, p := range z.Polygon {
		x, y, zz := p.Words()
		pts = append(pts, event.Point{X: x, Y: y, Z: zz})
	}
	return event.Zone{
		UID:           z.UID,
		LevelFileName: z.LevelFileName,
		Tags:          z.TagsString(),
		Polygon:       pts,
	}
}

func newUID() string {
	var raw [8]byte
	rand.Read(raw[:])
	return hex.EncodeToString(raw[:])
}
