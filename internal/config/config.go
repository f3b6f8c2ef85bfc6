// ABOUTME: TOML file configuration for the controller
// ABOUTME: Defaults first, file values override only when present
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Transport kinds accepted in the config file
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// Config is the resolved controller configuration
type Config struct {
	Server    ServerConfig
	Reconnect ReconnectConfig
	Zones     []ZoneMapping
}

// ServerConfig locates the audio server and shapes calls to it
type ServerConfig struct {
	Address     string
	Transport   string
	CallTimeout time.Duration
}

// ReconnectConfig bounds the reconnect backoff schedule
type ReconnectConfig struct {
	Initial time.Duration
	Max     time.Duration
}

// ZoneMapping binds one configured zone name to one server group
type ZoneMapping struct {
	Name  string `toml:"name"`
	Group string `toml:"group"`
}

type fileConfig struct {
	Server struct {
		Address     string `toml:"address"`
		Transport   string `toml:"transport"`
		CallTimeout string `toml:"call_timeout"`
	} `toml:"server"`
	Reconnect struct {
		Initial string `toml:"initial"`
		Max     string `toml:"max"`
	} `toml:"reconnect"`
	Zones []ZoneMapping `toml:"zone"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Transport:   TransportTCP,
			CallTimeout: 10 * time.Second,
		},
		Reconnect: ReconnectConfig{
			Initial: time.Second,
			Max:     30 * time.Second,
		},
	}
}

// Load reads a config file over the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("server", "address") {
		cfg.Server.Address = strings.TrimSpace(raw.Server.Address)
	}
	if meta.IsDefined("server", "transport") {
		cfg.Server.Transport = strings.TrimSpace(raw.Server.Transport)
	}
	if meta.IsDefined("server", "call_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Server.CallTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse call_timeout: %w", err)
		}
		cfg.Server.CallTimeout = d
	}

	if meta.IsDefined("reconnect", "initial") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Reconnect.Initial))
		if err != nil {
			return Config{}, fmt.Errorf("parse reconnect initial: %w", err)
		}
		cfg.Reconnect.Initial = d
	}
	if meta.IsDefined("reconnect", "max") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Reconnect.Max))
		if err != nil {
			return Config{}, fmt.Errorf("parse reconnect max: %w", err)
		}
		cfg.Reconnect.Max = d
	}

	cfg.Zones = raw.Zones

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the controller cannot act on
func (c Config) Validate() error {
	if c.Server.Transport != TransportTCP && c.Server.Transport != TransportWebSocket {
		return fmt.Errorf("unknown transport %q", c.Server.Transport)
	}
	if c.Reconnect.Initial <= 0 || c.Reconnect.Max < c.Reconnect.Initial {
		return fmt.Errorf("invalid reconnect bounds: initial %s, max %s", c.Reconnect.Initial, c.Reconnect.Max)
	}

	seenZone := make(map[string]bool)
	seenGroup := make(map[string]bool)
	for _, z := range c.Zones {
		if z.Name == "" || z.Group == "" {
			return fmt.Errorf("zone mapping needs both name and group: %+v", z)
		}
		if seenZone[z.Name] {
			return fmt.Errorf("zone %q mapped twice", z.Name)
		}
		if seenGroup[z.Group] {
			return fmt.Errorf("group %q mapped to two zones", z.Group)
		}
		seenZone[z.Name] = true
		seenGroup[z.Group] = true
	}

	return nil
}

// ZoneGroups returns the zone-name-to-group-id mapping
func (c Config) ZoneGroups() map[string]string {
	m := make(map[string]string, len(c.Zones))
	for _, z := range c.Zones {
		m[z.Name] = z.Group
	}
	return m
}
