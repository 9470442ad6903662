package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scheme selects which coding scheme a Config describes.
type Scheme string

const (
	SchemeDoubleParity Scheme = "double_parity"
	SchemeReedSolomon  Scheme = "reed_solomon"
)

// Config holds everything needed to open a stripe file (spec §1, §3): the
// coding scheme and its parameters, the per-block checksum granularity, the
// recovered-block write-back policy, a booking-size hint passed through to
// the checksum map, and a target size that is loaded but not read by any
// package in this module.
type Config struct {
	Scheme        Scheme `yaml:"scheme"`
	StripeWidth   int    `yaml:"stripe_width"`
	NumData       int    `yaml:"num_data"`
	NumParity     int    `yaml:"num_parity"`
	HeaderSize    int64  `yaml:"header_size"`
	BlockSize     int    `yaml:"block_size"`
	StoreRecovery bool   `yaml:"store_recovery"`
	BookingSize   int64  `yaml:"booking_size"`
	TargetSize    int64  `yaml:"target_size"`
}

// Validate checks the structural invariants a Config must satisfy before an
// engine can be built from it.
func (c *Config) Validate() error {
	if c.StripeWidth <= 0 {
		return fmt.Errorf("config: stripe_width must be positive, got %d", c.StripeWidth)
	}
	if c.NumData < 2 {
		return fmt.Errorf("config: num_data must be >= 2, got %d", c.NumData)
	}
	switch c.Scheme {
	case SchemeDoubleParity:
		if c.NumParity != 2 {
			return fmt.Errorf("config: double_parity requires num_parity=2, got %d", c.NumParity)
		}
	case SchemeReedSolomon:
		if c.NumParity < 1 {
			return fmt.Errorf("config: reed_solomon requires num_parity >= 1, got %d", c.NumParity)
		}
	default:
		return fmt.Errorf("config: unknown scheme %q", c.Scheme)
	}
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	return nil
}

// Load reads and validates a Config from a YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
