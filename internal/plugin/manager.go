// Package plugin tracks the host application's loaded plugins: their
// display metadata, enabled state and displayed variables. The layer
// core only reads and toggles this state; plugin execution itself
// happens in the host.
package plugin

import (
	"sync"

	"github.com/openprocon/layerd/internal/event"
)

// Variable is one displayed plugin variable.
type Variable struct {
	Name  string
	Type  string
	Value string
}

// Details is the display metadata of one plugin.
type Details struct {
	ClassName   string
	Name        string
	Author      string
	Website     string
	Version     string
	Description string
	Variables   []Variable
}

type pluginState struct {
	details Details
	enabled bool
}

// Manager holds the plugin registry. Safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	plugins map[string]*pluginState
	order   []string // class names in load order
	bus     *event.Bus
	console *event.ConsoleSource
}

// NewManager creates an empty manager publishing on bus. Lifecycle
// changes are echoed on the plugin console.
func NewManager(bus *event.Bus) *Manager {
	return &Manager{
		plugins: make(map[string]*pluginState),
		bus:     bus,
		console: event.NewConsoleSource(bus, event.PluginConsole),
	}
}

// Console is the plugin console feed. The host routes its plugins'
// output here.
func (m *Manager) Console() *event.ConsoleSource {
	return m.console
}

// Register records a loaded plugin and publishes PluginLoaded.
// Registering an already-known class name replaces its metadata.
func (m *Manager) Register(d Details) {
	m.mu.Lock()
	if _, known := m.plugins[d.ClassName]; !known {
		m.order = append(m.order, d.ClassName)
	}
	m.plugins[d.ClassName] = &pluginState{details: d}
	m.mu.Unlock()

	m.bus.Publish(event.Event{Type: event.PluginLoaded, Payload: payload(d)})
	m.console.Write("Loaded " + d.Name + " " + d.Version)
}

// LoadedClassNames returns all loaded plugin class names in load order.
func (m *Manager) LoadedClassNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// EnabledClassNames returns the enabled plugin class names in load order.
func (m *Manager) EnabledClassNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, name := range m.order {
		if m.plugins[name].enabled {
			out = append(out, name)
		}
	}
	return out
}

// Details returns the metadata of one plugin.
func (m *Manager) Details(className string) (Details, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.plugins[className]
	if !ok {
		return Details{}, false
	}
	return st.details, true
}

// SetEnabled toggles a plugin and publishes PluginEnabled. Unknown
// class names are ignored.
func (m *Manager) SetEnabled(className string, enabled bool) {
	m.mu.Lock()
	st, ok := m.plugins[className]
	if ok {
		st.enabled = enabled
	}
	m.mu.Unlock()

	if ok {
		m.bus.Publish(event.Event{
			Type:    event.PluginEnabled,
			Payload: event.PluginState{ClassName: className, Enabled: enabled},
		})
		if enabled {
			m.console.Write("Enabled " + className)
		} else {
			m.console.Write("Disabled " + className)
		}
	}
}

// SetVariable sets one displayed variable of a plugin and publishes
// PluginVariablesChanged with the full variable list. A variable not
// already displayed is appended.
func (m *Manager) SetVariable(className, name, value string) {
	m.mu.Lock()
	st, ok := m.plugins[className]
	var d Details
	if ok {
		found := false
		for i := range st.details.Variables {
			if st.details.Variables[i].Name == name {
				st.details.Variables[i].Value = value
				found = true
				break
			}
		}
		if !found {
			st.details.Variables = append(st.details.Variables, Variable{
				Name: name, Type: "string", Value: value,
			})
		}
		d = st.details
	}
	m.mu.Unlock()

	if ok {
		m.bus.Publish(event.Event{Type: event.PluginVariablesChanged, Payload: payload(d)})
	}
}

func payload(d Details) event.Plugin {
	vars := make([]event.PluginVariable, 0, len(d.Variables))
	for _, v := range d.Variables {
		vars = append(vars, event.PluginVariable{Name: v.Name, Type: v.Type, Value: v.Value})
	}
	return event.Plugin{
		ClassName:   d.ClassName,
		Name:        d.Name,
		Author:      d.Author,
		Website:     d.Website,
		Version:     d.Version,
		Description: d.Description,
		Variables:   vars,
	}
}
