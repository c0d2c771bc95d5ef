package layer

import (
	"strconv"

	"github.com/openprocon/layerd/internal/event"
)

// relayHandlerName keys the relay's bus subscription. Subscribing is
// idempotent under a fixed name, so re-attaching can never double
// deliveries.
const relayHandlerName = "layer.relay"

// Relay turns bus events into procon.<domain>.on<Event> notifications
// and pushes them to every authenticated, subscribed session. Delivery
// is best-effort over a registry snapshot.
type Relay struct {
	registry *Registry
	ceiling  Privileges
}

// NewRelay creates a relay broadcasting over registry. ceiling is the
// connection-wide privilege maximum applied when a privilege change
// renarrows a live session.
func NewRelay(registry *Registry, ceiling Privileges) *Relay {
	return &Relay{registry: registry, ceiling: ceiling}
}

// Attach subscribes the relay to the bus.
func (r *Relay) Attach(bus *event.Bus) {
	bus.Subscribe(relayHandlerName, r.handle)
}

// Detach unsubscribes the relay. Safe to call repeatedly.
func (r *Relay) Detach(bus *event.Bus) {
	bus.Unsubscribe(relayHandlerName)
}

func (r *Relay) handle(e event.Event) {
	switch e.Type {
	case event.AccountCreated:
		if a, ok := e.Payload.(event.Account); ok {
			r.broadcast("procon.account.onCreated", a.Name)
		}
	case event.AccountDeleted:
		if a, ok := e.Payload.(event.Account); ok {
			r.broadcast("procon.account.onDeleted", a.Name)
		}
	case event.PrivilegesChanged:
		if pr, ok := e.Payload.(event.Privileges); ok {
			narrowed := Privileges(pr.Flags).Lowest(r.ceiling)
			for _, s := range r.registry.Snapshot() {
				s.ApplyPrivilegeChange(pr.Name, Privileges(pr.Flags))
			}
			r.broadcast("procon.account.onAltered", pr.Name, formatFlags(narrowed))
		}
	case event.AccountLoggedIn:
		if pr, ok := e.Payload.(event.Privileges); ok {
			r.broadcast("procon.account.onLogin", pr.Name, formatFlags(Privileges(pr.Flags)))
		}
	case event.AccountLoggedOut:
		if a, ok := e.Payload.(event.Account); ok {
			// The account logging out already knows; tell everyone else.
			r.broadcastExcept(a.Name, "procon.account.onLogout", a.Name)
		}
	case event.AccountRegistered:
		if u, ok := e.Payload.(event.UID); ok {
			r.broadcast("procon.account.onUidRegistered", u.UID, u.Name)
		}
	case event.PluginLoaded:
		if pl, ok := e.Payload.(event.Plugin); ok {
			words := append([]string{
				"procon.plugin.onLoaded",
				pl.ClassName, pl.Name, pl.Author, pl.Website, pl.Version, pl.Description,
			}, pluginVariableWords(pl.Variables)...)
			r.broadcast(words...)
		}
	case event.PluginEnabled:
		if st, ok := e.Payload.(event.PluginState); ok {
			r.broadcast("procon.plugin.onEnabled", st.ClassName, boolWord(st.Enabled))
		}
	case event.PluginVariablesChanged:
		if pl, ok := e.Payload.(event.Plugin); ok {
			words := append([]string{"procon.plugin.onVariablesAltered", pl.ClassName},
				pluginVariableWords(pl.Variables)...)
			r.broadcast(words...)
		}
	case event.PluginConsole:
		if c, ok := e.Payload.(event.Console); ok {
			r.broadcast("procon.plugin.onConsole", consoleTimestamp(c), c.Text)
		}
	case event.ChatConsole:
		if c, ok := e.Payload.(event.Console); ok {
			r.broadcast("procon.chat.onConsole", consoleTimestamp(c), c.Text)
		}
	case event.ZoneCreated:
		if z, ok := e.Payload.(event.Zone); ok {
			words := append([]string{
				"procon.battlemap.onZoneCreated", z.UID, z.LevelFileName,
			}, polygonWords(z.Polygon)...)
			r.broadcast(words...)
		}
	case event.ZoneModified:
		if z, ok := e.Payload.(event.Zone); ok {
			words := append([]string{
				"procon.battlemap.onZoneModified", z.UID, z.Tags,
			}, polygonWords(z.Polygon)...)
			r.broadcast(words...)
		}
	case event.ZoneRemoved:
		if z, ok := e.Payload.(event.Zone); ok {
			r.broadcast("procon.battlemap.onZoneRemoved", z.UID)
		}
	case event.VariableAdded, event.VariableUpdated:
		if v, ok := e.Payload.(event.Variable); ok {
			r.broadcast("procon.vars.onAltered", v.Name, v.Value)
		}
	}
}

// NotifyShutdown announces the layer going away.
func (r *Relay) NotifyShutdown() {
	r.broadcast("procon.shutdown")
}

func (r *Relay) broadcast(words ...string) {
	for _, s := range r.registry.Snapshot() {
		s.Notify(words...)
	}
}

func (r *Relay) broadcastExcept(username string, words ...string) {
	for _, s := range r.registry.Snapshot() {
		if s.Username() == username {
			continue
		}
		s.Notify(words...)
	}
}

func formatFlags(p Privileges) string {
	return strconv.FormatUint(uint64(p.Flags()), 10)
}

// boolWord renders booleans the way existing controllers parse them.
func boolWord(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func consoleTimestamp(c event.Console) string {
	return strconv.FormatInt(c.At.UTC().UnixMilli(), 10)
}

func pluginVariableWords(vs []event.PluginVariable) []string {
	words := []string{strconv.Itoa(len(vs))}
	for _, v := range vs {
		words = append(words, v.Name, v.Type, v.Value)
	}
	return words
}

func polygonWords(points []event.Point) []string {
	words := []string{strconv.Itoa(len(points))}
	for _, pt := range points {
		words = append(words, pt.X, pt.Y, pt.Z)
	}
	return words
}
