// Package event is the in-process publish-subscribe backbone between
// the layer subsystems (accounts, plugins, map zones, variables,
// consoles) and the sessions relaying their changes to controllers.
package event

import "time"

// Type identifies an event category on the bus.
type Type string

const (
	// Account events
	AccountCreated    Type = "account_created"
	AccountDeleted    Type = "account_deleted"
	PrivilegesChanged Type = "privileges_changed"
	AccountLoggedIn   Type = "account_logged_in"
	AccountLoggedOut  Type = "account_logged_out"
	AccountRegistered Type = "account_uid_registered"

	// Plugin events
	PluginLoaded           Type = "plugin_loaded"
	PluginEnabled          Type = "plugin_enabled"
	PluginVariablesChanged Type = "plugin_variables_changed"
	PluginConsole          Type = "plugin_console"

	// Chat events
	ChatConsole Type = "chat_console"

	// Map zone events
	ZoneCreated  Type = "zone_created"
	ZoneModified Type = "zone_modified"
	ZoneRemoved  Type = "zone_removed"

	// Variable events
	VariableAdded   Type = "variable_added"
	VariableUpdated Type = "variable_updated"
)

// Event is one published occurrence. Payload holds one of the payload
// structs below, matching Type.
type Event struct {
	Type    Type
	Payload any
}

// Account is the payload for AccountCreated, AccountDeleted and
// AccountLoggedOut.
type Account struct {
	Name string
}

// Privileges is the payload for PrivilegesChanged and AccountLoggedIn.
type Privileges struct {
	Name  string
	Flags uint32
}

// UID is the payload for AccountRegistered.
type UID struct {
	UID  string
	Name string
}

// PluginVariable is one displayed plugin variable.
type PluginVariable struct {
	Name  string
	Type  string
	Value string
}

// Plugin is the payload for PluginLoaded and PluginVariablesChanged.
type Plugin struct {
	ClassName   string
	Name        string
	Author      string
	Website     string
	Version     string
	Description string
	Variables   []PluginVariable
}

// PluginState is the payload for PluginEnabled.
type PluginState struct {
	ClassName string
	Enabled   bool
}

// Console is the payload for PluginConsole and ChatConsole.
type Console struct {
	At   time.Time
	Text string
}

// Point is one 3-D map-zone vertex, in wire form.
type Point struct {
	X, Y, Z string
}

// Zone is the payload for the map-zone events.
type Zone struct {
	UID           string
	LevelFileName string
	Tags          string
	Polygon       []Point
}

// Variable is the payload for VariableAdded and VariableUpdated.
type Variable struct {
	Name  string
	Value string
}
