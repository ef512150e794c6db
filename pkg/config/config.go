// Package config loads the YAML configuration of a simulated bus.
//
// A configuration names the bus adapter, its geometry and store budget,
// the device ID table of the dummy client driver, and the clients to
// attach at startup together with their initial register contents.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/regfs"
)

// DefaultBusName is the adapter name used when none is configured.
const DefaultBusName = "I2C Dummy Adapter"

// Configuration errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the top-level configuration file.
type Config struct {
	// Bus is the adapter name reported by the bus instance.
	Bus string `yaml:"bus"`

	// Geometry is the store shape. Zero fields take the defaults.
	Geometry bus.Geometry `yaml:"geometry"`

	// MaxStoreBytes caps the store allocation. Zero takes the default.
	MaxStoreBytes int64 `yaml:"max_store_bytes"`

	// DeviceIDs is the client driver's ID table. Empty takes the default.
	DeviceIDs []string `yaml:"device_ids"`

	// Clients are attached after the bus comes up.
	Clients []Client `yaml:"clients"`

	// TraceFile is the CBOR trace output path (optional).
	TraceFile string `yaml:"trace_file"`

	// SnapshotFile is loaded at startup and written at shutdown (optional).
	SnapshotFile string `yaml:"snapshot_file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Client describes one client device to attach.
type Client struct {
	Name    string `yaml:"name"`
	Address uint16 `yaml:"address"`

	// Registers holds initial values keyed by register offset.
	Registers map[uint16]uint8 `yaml:"registers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Bus:           DefaultBusName,
		Geometry:      bus.DefaultGeometry(),
		MaxStoreBytes: bus.DefaultMaxStoreBytes,
		DeviceIDs:     append([]string(nil), regfs.DefaultDeviceIDs...),
		LogLevel:      "info",
	}
}

// Load reads a YAML configuration file. Missing fields take their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	var raw Config
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	cfg.merge(&raw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(o *Config) {
	if o.Bus != "" {
		c.Bus = o.Bus
	}
	if o.Geometry.MaxDev != 0 {
		c.Geometry.MaxDev = o.Geometry.MaxDev
	}
	if o.Geometry.MaxReg != 0 {
		c.Geometry.MaxReg = o.Geometry.MaxReg
	}
	if o.MaxStoreBytes != 0 {
		c.MaxStoreBytes = o.MaxStoreBytes
	}
	if len(o.DeviceIDs) > 0 {
		c.DeviceIDs = o.DeviceIDs
	}
	c.Clients = o.Clients
	c.TraceFile = o.TraceFile
	c.SnapshotFile = o.SnapshotFile
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

// Validate checks the configuration for consistency. Store budget overruns
// are left to bus.Host.Attach, which reports them as out of memory.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bus) == "" {
		return fmt.Errorf("%w: bus name is required", ErrInvalidConfig)
	}
	if err := c.Geometry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.MaxStoreBytes < 0 {
		return fmt.Errorf("%w: max_store_bytes must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	ids := make(map[string]bool, len(c.DeviceIDs))
	for _, id := range c.DeviceIDs {
		ids[id] = true
	}

	seen := make(map[string]bool, len(c.Clients))
	for i, cl := range c.Clients {
		if !ids[cl.Name] {
			return fmt.Errorf("%w: clients[%d]: %q is not in device_ids", ErrInvalidConfig, i, cl.Name)
		}
		if int(cl.Address) >= c.Geometry.MaxDev {
			return fmt.Errorf("%w: clients[%d]: address 0x%02x out of range", ErrInvalidConfig, i, cl.Address)
		}
		dir := regfs.DirName(cl.Name, cl.Address)
		if seen[dir] {
			return fmt.Errorf("%w: clients[%d]: duplicate client %s", ErrInvalidConfig, i, dir)
		}
		seen[dir] = true

		for off := range cl.Registers {
			// The last register is outside every transfer window.
			if int(off) >= c.Geometry.MaxReg-1 {
				return fmt.Errorf("%w: clients[%d]: register 0x%02x not writable", ErrInvalidConfig, i, off)
			}
		}
	}
	return nil
}

// BusConfig returns the bus.Config for this configuration.
func (c *Config) BusConfig(logger *slog.Logger) bus.Config {
	return bus.Config{
		Geometry:      c.Geometry,
		MaxStoreBytes: c.MaxStoreBytes,
		Logger:        logger,
	}
}

// TreeConfig returns the regfs.Config for this configuration.
func (c *Config) TreeConfig(logger *slog.Logger) regfs.Config {
	return regfs.Config{
		DeviceIDs: c.DeviceIDs,
		Logger:    logger,
	}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
	}
}
