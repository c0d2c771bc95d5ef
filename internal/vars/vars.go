// Package vars is the layer's named variable store. Variables are kept
// as strings (their wire form) with typed accessors, and every write is
// published on the event bus.
package vars

import (
	"strconv"
	"sync"

	"github.com/openprocon/layerd/internal/event"
)

// Well-known variable names.
const (
	TempBanCeiling  = "TEMP_BAN_CEILING"
	GuestPassword   = "GUEST_PASSWORD"
	GuestPrivileges = "GUEST_PRIVILEGES"
)

// DefaultTempBanCeiling is the ceiling, in seconds, applied to
// temporary-ban-only accounts when TEMP_BAN_CEILING is unset.
const DefaultTempBanCeiling = 3600

// Store holds the variables. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	vars map[string]string
	bus  *event.Bus
}

// NewStore creates an empty store publishing on bus.
func NewStore(bus *event.Bus) *Store {
	return &Store{
		vars: make(map[string]string),
		bus:  bus,
	}
}

// Set stores value under name and publishes VariableAdded or
// VariableUpdated depending on whether the name existed.
func (s *Store) Set(name, value string) {
	s.mu.Lock()
	_, existed := s.vars[name]
	s.vars[name] = value
	s.mu.Unlock()

	typ := event.VariableAdded
	if existed {
		typ = event.VariableUpdated
	}
	s.bus.Publish(event.Event{Type: typ, Payload: event.Variable{Name: name, Value: value}})
}

// GetString returns the variable value, or def when unset.
func (s *Store) GetString(name, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.vars[name]; ok {
		return v
	}
	return def
}

// GetInt returns the variable parsed as int, or def when unset or
// unparseable.
func (s *Store) GetInt(name string, def int) int {
	s.mu.RLock()
	v, ok := s.vars[name]
	s.mu.RUnlock()
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetUint32 returns the variable parsed as uint32, or def when unset or
// unparseable.
func (s *Store) GetUint32(name string, def uint32) uint32 {
	s.mu.RLock()
	v, ok := s.vars[name]
	s.mu.RUnlock()
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}

// IsEmpty reports whether the variable is unset or blank.
func (s *Store) IsEmpty(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vars[name] == ""
}
