package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

var ErrInvalid = errors.New("invalid configuration")

// KeysConfig overrides the keyboard layout. Each row string lists the keys
// for one instrument's steps in order.
type KeysConfig struct {
	Rows       []string `json:"rows,omitempty"`
	VolumeUp   string   `json:"volumeUp,omitempty"`
	VolumeDown string   `json:"volumeDown,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	BPM         int        `json:"bpm"`
	MixVolume   float64    `json:"mix_volume"`
	Steps       int        `json:"steps"`
	Instruments int        `json:"instruments"`
	SampleRate  int        `json:"sample_rate"`
	BufferSize  int        `json:"buffer_size,omitempty"` // frames; 0 keeps the device default
	HiHatDecay  float64    `json:"hihat_decay,omitempty"` // seconds
	MIDIOut     string     `json:"midi_out,omitempty"`    // MIDI output port name
	SerialPort  string     `json:"serial_port,omitempty"`
	SerialBaud  int        `json:"serial_baud,omitempty"`
	PatternFile string     `json:"pattern_file,omitempty"`
	LogLevel    string     `json:"log_level,omitempty"`
	Keys        KeysConfig `json:"keys"`
}

// DefaultConfig returns the machine's factory settings.
func DefaultConfig() *Config {
	return &Config{
		BPM:         240,
		MixVolume:   0.2,
		Steps:       8,
		Instruments: 3,
		SampleRate:  24000,
		HiHatDecay:  0.115,
		SerialBaud:  115200,
		LogLevel:    "info",
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "drumgrid"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config at path. A missing file yields the defaults; keys
// absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fault.Wrap(err, fmsg.With("read config"))
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fault.Wrap(err,
			fmsg.With(fmt.Sprintf("parse config %s", path)),
			ftag.With(ftag.InvalidArgument),
		)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create config dir"))
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode config"))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Wrap(err, fmsg.With("write config"))
	}
	return nil
}

// Validate checks the settings the machine cannot start without.
func (c *Config) Validate() error {
	var problems []string
	if c.BPM <= 0 {
		problems = append(problems, fmt.Sprintf("bpm must be positive, got %d", c.BPM))
	}
	if c.MixVolume < 0 || c.MixVolume > 1 {
		problems = append(problems, fmt.Sprintf("mix_volume must be in [0,1], got %g", c.MixVolume))
	}
	if c.Steps < 0 {
		problems = append(problems, fmt.Sprintf("steps must not be negative, got %d", c.Steps))
	}
	if c.Instruments <= 0 {
		problems = append(problems, fmt.Sprintf("instruments must be positive, got %d", c.Instruments))
	}
	if c.SampleRate <= 0 {
		problems = append(problems, fmt.Sprintf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.BufferSize < 0 {
		problems = append(problems, fmt.Sprintf("buffer_size must not be negative, got %d", c.BufferSize))
	}
	if c.HiHatDecay < 0 {
		problems = append(problems, fmt.Sprintf("hihat_decay must not be negative, got %g", c.HiHatDecay))
	}
	if len(c.Keys.Rows) > 0 && len(c.Keys.Rows) != c.Instruments {
		problems = append(problems, fmt.Sprintf("keys.rows has %d rows for %d instruments", len(c.Keys.Rows), c.Instruments))
	}
	if len(problems) == 0 {
		return nil
	}
	return fault.Wrap(ErrInvalid,
		fmsg.With(problems[0]),
		ftag.With(ftag.InvalidArgument),
	)
}
