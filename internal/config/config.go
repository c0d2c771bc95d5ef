// Package config loads the layer server configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LayerServer holds all configuration for the layer server.
type LayerServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// NameFormat rewrites the server name reported to controllers;
	// %servername% is replaced with the upstream value.
	NameFormat string `yaml:"name_format"`

	// MaxPrivileges caps every session's effective privilege flags.
	// An account's stored flags are narrowed (bitwise AND) by this
	// connection-wide ceiling.
	MaxPrivileges uint32 `yaml:"max_privileges"`

	// Upstream game server connection
	Game GameConfig `yaml:"game"`

	// Database persistence for accounts; disabled when Host is empty.
	Database DatabaseConfig `yaml:"database"`

	// Variables seeds the variable store at startup
	// (TEMP_BAN_CEILING, GUEST_PASSWORD, GUEST_PRIVILEGES, ...).
	Variables map[string]string `yaml:"variables"`
}

// GameConfig describes the upstream game server.
type GameConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether account persistence is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultLayerServer returns LayerServer config with sensible defaults.
func DefaultLayerServer() LayerServer {
	return LayerServer{
		BindAddress:   "0.0.0.0",
		Port:          27260,
		NameFormat:    "%servername%",
		MaxPrivileges: 0xFFFFFFFF,
		Game: GameConfig{
			Host: "127.0.0.1",
			Port: 47200,
		},
		Database: DatabaseConfig{
			Port:    5432,
			User:    "layerd",
			DBName:  "layerd",
			SSLMode: "disable",
		},
	}
}

// LoadLayerServer loads layer server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadLayerServer(path string) (LayerServer, error) {
	cfg := DefaultLayerServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
