package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the default location of the agent configuration file.
const DefaultPath = "/etc/stationd/config.yaml"

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// Config is the root agent configuration.
type Config struct {
	// Version is the config schema version (currently 1).
	Version int `yaml:"version"`

	// DeviceName is the name advertised over the secondary transport and
	// mDNS. Changeable at runtime with the ble_name command; runtime changes
	// are not written back here.
	DeviceName string `yaml:"device_name"`

	Wireless  Wireless  `yaml:"wireless"`
	Transport Transport `yaml:"transport"`
	Relays    []Relay   `yaml:"relays"`
	Announce  Announce  `yaml:"announce"`
}

// Wireless configures the Wi-Fi station interface.
type Wireless struct {
	// Interface is the wireless network interface name (e.g. "wlan0").
	Interface string `yaml:"interface"`
}

// Transport configures the BLE command transport.
type Transport struct {
	// Enabled controls whether the BLE GATT service is registered at startup.
	Enabled bool `yaml:"enabled"`

	// FragmentSize is the maximum outbound notification payload in bytes.
	// Responses longer than this are split into sequential fragments.
	FragmentSize int `yaml:"fragment_size"`
}

// Relay maps a logical relay channel to a GPIO pin.
type Relay struct {
	ID  int `yaml:"id"`
	Pin int `yaml:"pin"`
}

// Announce configures mDNS presence announcement after a successful
// connection.
type Announce struct {
	Enabled bool `yaml:"enabled"`

	// Port is the advertised service port. The agent does not listen on it;
	// mDNS requires a port in the service record.
	Port int `yaml:"port"`
}

// Default returns a configuration with working defaults for a dual-relay
// board on a standard wireless interface.
func Default() *Config {
	return &Config{
		Version:    1,
		DeviceName: "stationd",
		Wireless: Wireless{
			Interface: "wlan0",
		},
		Transport: Transport{
			Enabled:      true,
			FragmentSize: 512,
		},
		Relays: []Relay{
			{ID: 1, Pin: 17},
			{ID: 2, Pin: 27},
		},
		Announce: Announce{
			Enabled: false,
			Port:    8417,
		},
	}
}

// Load reads the configuration file at path. A missing file is not an
// error: defaults are returned. A present but malformed file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}
	if c.Wireless.Interface == "" {
		return fmt.Errorf("wireless.interface must not be empty")
	}
	if c.Transport.FragmentSize < 1 {
		return fmt.Errorf("transport.fragment_size must be positive, got %d", c.Transport.FragmentSize)
	}
	if len(c.Relays) == 0 {
		return fmt.Errorf("at least one relay channel must be configured")
	}
	seen := make(map[int]bool, len(c.Relays))
	for _, r := range c.Relays {
		if r.ID <= 0 {
			return fmt.Errorf("relay id must be positive, got %d", r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate relay id %d", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// Save writes the configuration to path.
// Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		path = DefaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# stationd configuration file
#
# Security note: Wi-Fi credentials are NEVER stored in this file. They are
# supplied per connection attempt through the command interface.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	// Write to temporary file first (atomic write)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	// Atomic rename (this is atomic on all platforms)
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
