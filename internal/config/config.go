// Package config holds the bridge settings and loads them from a TOML file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendUSB    = "usb"
	BackendVendor = "vendor"
	BackendSerial = "serial"
)

// Config is the complete set of settings for one bridge session.
type Config struct {
	VendorID  uint16
	ProductID uint16

	// Timeout bounds every blocking transport call.
	Timeout      time.Duration
	PollInterval time.Duration
	// ChunkSize splits frame writes; 0 writes each frame at once.
	ChunkSize int

	USBConfig    int
	USBInterface int

	BaudRate          int
	SerialReadTimeout time.Duration

	Backends      []string
	HandleSignals bool

	LogLevel string
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		VendorID:          0xCAFE,
		ProductID:         0x4011,
		Timeout:           5 * time.Second,
		PollInterval:      10 * time.Millisecond,
		ChunkSize:         0,
		USBConfig:         1,
		USBInterface:      2,
		BaudRate:          115200,
		SerialReadTimeout: 50 * time.Millisecond,
		Backends:          []string{BackendUSB, BackendVendor, BackendSerial},
		HandleSignals:     true,
		LogLevel:          "info",
	}
}

type fileConfig struct {
	VendorID          string   `toml:"vendor_id"`
	ProductID         string   `toml:"product_id"`
	Timeout           string   `toml:"timeout"`
	PollInterval      string   `toml:"poll_interval"`
	ChunkSize         int      `toml:"chunk_size"`
	USBConfig         int      `toml:"usb_config"`
	USBInterface      int      `toml:"usb_interface"`
	BaudRate          int      `toml:"baud_rate"`
	SerialReadTimeout string   `toml:"serial_read_timeout"`
	Backends          []string `toml:"backends"`
	HandleSignals     bool     `toml:"handle_signals"`
	LogLevel          string   `toml:"log_level"`
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("vendor_id") {
		v, err := ParseID(raw.VendorID)
		if err != nil {
			return Config{}, fmt.Errorf("parse vendor_id: %w", err)
		}
		cfg.VendorID = v
	}
	if meta.IsDefined("product_id") {
		v, err := ParseID(raw.ProductID)
		if err != nil {
			return Config{}, fmt.Errorf("parse product_id: %w", err)
		}
		cfg.ProductID = v
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return Config{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if meta.IsDefined("serial_read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SerialReadTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse serial_read_timeout: %w", err)
		}
		cfg.SerialReadTimeout = d
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("usb_config") {
		cfg.USBConfig = raw.USBConfig
	}
	if meta.IsDefined("usb_interface") {
		cfg.USBInterface = raw.USBInterface
	}
	if meta.IsDefined("baud_rate") {
		cfg.BaudRate = raw.BaudRate
	}
	if meta.IsDefined("backends") {
		cfg.Backends = NormalizeBackends(raw.Backends)
	}
	if meta.IsDefined("handle_signals") {
		cfg.HandleSignals = raw.HandleSignals
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the bridge cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.PollInterval < 0 {
		errs = append(errs, errors.New("poll_interval must not be negative"))
	}
	if c.ChunkSize < 0 {
		errs = append(errs, errors.New("chunk_size must not be negative"))
	}
	if c.BaudRate <= 0 {
		errs = append(errs, errors.New("baud_rate must be positive"))
	}
	if len(c.Backends) == 0 {
		errs = append(errs, errors.New("no backend enabled"))
	}
	for _, b := range c.Backends {
		switch b {
		case BackendUSB, BackendVendor, BackendSerial:
		default:
			errs = append(errs, fmt.Errorf("unknown backend %q", b))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseID parses a USB vendor or product id, hex with or without 0x.
func ParseID(raw string) (uint16, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	v, err := strconv.ParseUint(raw, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// NormalizeBackends lowercases backend names and drops blanks and repeats,
// keeping the first occurrence order.
func NormalizeBackends(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, b := range in {
		v := strings.ToLower(strings.TrimSpace(b))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
