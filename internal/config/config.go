package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Fan    FanConfig    `yaml:"fan"`
	Sensor SensorConfig `yaml:"sensor"`
	Web    WebConfig    `yaml:"web"`
	Daemon DaemonConfig `yaml:"daemon"`
}

type FanConfig struct {
	// Backend is "pwm" (hwmon duty + enable files) or "gpio" (on/off
	// line for 2-wire fans).
	Backend  string        `yaml:"backend"`
	PWMPath  string        `yaml:"pwm_path"`
	GPIOChip string        `yaml:"gpio_chip"`
	GPIOLine int           `yaml:"gpio_line"`
	Interval time.Duration `yaml:"interval"`
}

type SensorConfig struct {
	// Backend is "nvidia-smi" or "hwmon".
	Backend string `yaml:"backend"`
	// Index selects the GPU (nvidia-smi) or the tempN input ordinal
	// (hwmon).
	Index int `yaml:"index"`
	// HwmonChip matches the /sys/class/hwmon name file; HwmonInput is an
	// explicit input file path and wins over the chip match.
	HwmonChip  string `yaml:"hwmon_chip"`
	HwmonInput string `yaml:"hwmon_input"`
}

type WebConfig struct {
	// Listen enables the read-only status API, e.g. "127.0.0.1:8011".
	// Empty disables it.
	Listen string `yaml:"listen"`
}

type DaemonConfig struct {
	// LockFile, when set, is flocked so two daemons never fight over one
	// fan. Empty disables the lock.
	LockFile string `yaml:"lock_file"`
	// WatchConfig restarts the control loop when the config file changes.
	WatchConfig bool `yaml:"watch_config"`
}

const (
	DefaultInterval = 2 * time.Second
	// MinInterval is the poll-interval floor; anything lower busy-loops
	// against sysfs for no control benefit.
	MinInterval = 100 * time.Millisecond
)

// Default returns the config used when no file is given.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads a YAML config, applies defaults, and checks the static
// fields. Unknown keys are rejected. Required fields are checked later by
// Validate, after CLI flags have been merged in.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)

	switch cfg.Fan.Backend {
	case "pwm", "gpio":
	default:
		return Config{}, fmt.Errorf("fan.backend must be \"pwm\" or \"gpio\"")
	}
	switch cfg.Sensor.Backend {
	case "nvidia-smi", "hwmon":
	default:
		return Config{}, fmt.Errorf("sensor.backend must be \"nvidia-smi\" or \"hwmon\"")
	}
	if cfg.Fan.GPIOLine < 0 {
		return Config{}, fmt.Errorf("fan.gpio_line must be >= 0")
	}
	if cfg.Sensor.Index < 0 {
		return Config{}, fmt.Errorf("sensor.index must be >= 0")
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Fan.Backend == "" {
		cfg.Fan.Backend = "pwm"
	}
	if cfg.Fan.GPIOChip == "" {
		cfg.Fan.GPIOChip = "gpiochip0"
	}
	if cfg.Fan.Interval == 0 {
		cfg.Fan.Interval = DefaultInterval
	}
	if cfg.Sensor.Backend == "" {
		cfg.Sensor.Backend = "nvidia-smi"
	}
}

// Validate checks the fields that CLI flags may still fill in after Load.
func (c Config) Validate() error {
	if c.Fan.Backend == "pwm" && c.Fan.PWMPath == "" {
		return fmt.Errorf("fan.pwm_path is required")
	}
	if c.Fan.Interval <= 0 {
		return fmt.Errorf("fan.interval must be > 0")
	}
	if c.Sensor.Backend == "hwmon" && c.Sensor.HwmonChip == "" && c.Sensor.HwmonInput == "" {
		return fmt.Errorf("sensor.hwmon_chip or sensor.hwmon_input is required when sensor.backend is \"hwmon\"")
	}
	return nil
}
