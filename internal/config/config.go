// Package config loads engine configuration from TOML. The vendor command
// codes live here rather than in code: they are placeholder values with no
// certified protocol behind them, so deployments override them per scanner
// family.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mcuadros/go-defaults"
)

type Config struct {
	Device  Device  `toml:"device"`
	Capture Capture `toml:"capture"`
	Match   Match   `toml:"match"`
	Log     Log     `toml:"log"`
}

// Device identifies the scanner and its command set.
type Device struct {
	VendorID  uint16 `toml:"vendor_id" default:"5265"`  // 0x1491
	ProductID uint16 `toml:"product_id" default:"32"`   // 0x0020
	Backend   string `toml:"backend" default:"auto"`    // auto | rawusb | vendorhid | simulated
	ReportID  byte   `toml:"report_id" default:"1"`     // HID report carrying command frames
	Commands  Commands `toml:"commands"`
}

// Commands is the abstract vendor request set. These are unverified
// placeholder codes, not a certified hardware specification.
type Commands struct {
	Init         byte `toml:"init" default:"1"`
	LED          byte `toml:"led" default:"2"`
	DetectFinger byte `toml:"detect_finger" default:"3"`
	StartCapture byte `toml:"start_capture" default:"4"`
	ReadImage    byte `toml:"read_image" default:"5"`
}

type Capture struct {
	Width           int `toml:"width" default:"260"`
	Height          int `toml:"height" default:"300"`
	DPI             int `toml:"dpi" default:"500"`
	TimeoutMs       int `toml:"timeout_ms" default:"10000"`
	PollIntervalMs  int `toml:"poll_interval_ms" default:"100"`
	MinQuality      int `toml:"min_quality" default:"40"`
	MaxReadAttempts int `toml:"max_read_attempts" default:"3"`
	ChunkSize       int `toml:"chunk_size" default:"4096"`
}

func (c Capture) Timeout() time.Duration      { return time.Duration(c.TimeoutMs) * time.Millisecond }
func (c Capture) PollInterval() time.Duration { return time.Duration(c.PollIntervalMs) * time.Millisecond }

// ImageSize is the expected raw frame byte count.
func (c Capture) ImageSize() int { return c.Width * c.Height }

type Match struct {
	DistanceThreshold int  `toml:"distance_threshold" default:"20"`
	AngleThreshold    int  `toml:"angle_threshold" default:"30"`
	ScoreThreshold    int  `toml:"score_threshold" default:"60"`
	StrictPairing     bool `toml:"strict_pairing" default:"false"`
}

type Log struct {
	Level string `toml:"level" default:"info"`
	File  string `toml:"file"` // empty logs to stderr
}

// Default returns a config with every field at its default value.
func Default() *Config {
	cfg := new(Config)
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a TOML file over the defaults. A missing path is not an error
// for the caller to special-case; pass "" to get Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("config: image dimensions must be positive, got %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.MinQuality < 0 || c.Capture.MinQuality > 100 {
		return fmt.Errorf("config: min_quality must be in [0,100], got %d", c.Capture.MinQuality)
	}
	if c.Capture.MaxReadAttempts < 1 {
		return fmt.Errorf("config: max_read_attempts must be at least 1, got %d", c.Capture.MaxReadAttempts)
	}
	switch c.Device.Backend {
	case "auto", "rawusb", "vendorhid", "simulated":
	default:
		return fmt.Errorf("config: unknown backend %q", c.Device.Backend)
	}
	return nil
}
