// Package accounts holds the layer's account registry: usernames, their
// stored passwords, and the privilege flags granted to each account.
// Mutations are published on the event bus and mirrored to an optional
// persister.
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/openprocon/layerd/internal/event"
)

var (
	// ErrExists is returned when creating an account that already exists.
	ErrExists = errors.New("account already exists")
	// ErrNotFound is returned for operations on an unknown account.
	ErrNotFound = errors.New("account does not exist")
)

// Record is one stored account. The password is kept in clear because
// the challenge-response login computes MD5(salt ‖ password) over it.
type Record struct {
	Name       string
	Password   string
	Privileges uint32
}

// Persister stores accounts durably. Registry treats persistence as
// best-effort: a failed write is logged, the in-memory state stays
// authoritative for the running process.
type Persister interface {
	LoadAll(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, name string) error
}

// Registry is the in-memory account registry. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	accounts  map[string]Record
	bus       *event.Bus
	persister Persister // nil when running without a database
}

// NewRegistry creates an empty registry publishing on bus. persister
// may be nil.
func NewRegistry(bus *event.Bus, persister Persister) *Registry {
	return &Registry{
		accounts:  make(map[string]Record),
		bus:       bus,
		persister: persister,
	}
}

// Load replaces the in-memory state with the persisted accounts.
func (r *Registry) Load(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	records, err := r.persister.LoadAll(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = make(map[string]Record, len(records))
	for _, rec := range records {
		r.accounts[rec.Name] = rec
	}
	return nil
}

// Contains reports whether name is a known account.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.accounts[name]
	return ok
}

// Password returns the stored password for name.
func (r *Registry) Password(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.accounts[name]
	return rec.Password, ok
}

// Privileges returns the privilege flags stored for name.
func (r *Registry) Privileges(name string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.accounts[name]
	return rec.Privileges, ok
}

// Names returns all account names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.accounts))
	for name := range r.accounts {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Create adds a new account and publishes AccountCreated.
func (r *Registry) Create(ctx context.Context, name, password string) error {
	r.mu.Lock()
	if _, ok := r.accounts[name]; ok {
		r.mu.Unlock()
		return ErrExists
	}
	rec := Record{Name: name, Password: password}
	r.accounts[name] = rec
	r.mu.Unlock()

	r.persist(ctx, rec)
	r.bus.Publish(event.Event{Type: event.AccountCreated, Payload: event.Account{Name: name}})
	return nil
}

// Delete removes an account and publishes AccountDeleted.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	if _, ok := r.accounts[name]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.accounts, name)
	r.mu.Unlock()

	if r.persister != nil {
		if err := r.persister.Delete(ctx, name); err != nil {
			slog.Error("failed to delete persisted account", "account", name, "err", err)
		}
	}
	r.bus.Publish(event.Event{Type: event.AccountDeleted, Payload: event.Account{Name: name}})
	return nil
}

// SetPassword replaces the stored password for name.
func (r *Registry) SetPassword(ctx context.Context, name, password string) error {
	r.mu.Lock()
	rec, ok := r.accounts[name]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	rec.Password = password
	r.accounts[name] = rec
	r.mu.Unlock()

	r.persist(ctx, rec)
	return nil
}

// SetPrivileges replaces the privilege flags for name and publishes
// PrivilegesChanged.
func (r *Registry) SetPrivileges(ctx context.Context, name string, flags uint32) error {
	r.mu.Lock()
	rec, ok := r.accounts[name]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	rec.Privileges = flags
	r.accounts[name] = rec
	r.mu.Unlock()

	r.persist(ctx, rec)
	r.bus.Publish(event.Event{Type: event.PrivilegesChanged, Payload: event.Privileges{Name: name, Flags: flags}})
	return nil
}

func (r *Registry) persist(ctx context.Context, rec Record) {
	if r.persister == nil {
		return
	}
	if err := r.persister.Save(ctx, rec); err != nil {
		slog.Error("failed to persist account", "account", rec.Name, "err", err)
	}
}
