// Package config loads the YAML file that sets up the driver's parts for a
// playback session.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valerio/go-townsmidi/townsmidi/fm"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// midiChannels is the number of channels addressable by a packed message.
const midiChannels = 16

// Config is the top level of the YAML file.
//
//	log_level: debug
//	clock: 8000000
//	parts:
//	  - channel: 0
//	    priority: 10
//	    transpose: -12
//	    sustain: false
//	    volume: 64
//	    instrument: "61 1A 2F 13 40 C2 05 4B 2C 60 0B 83 01 02 03 04 05 06 07 08 00 00 00 00 00 00 00 00 00 03"
type Config struct {
	LogLevel string `yaml:"log_level"`
	Clock    uint32 `yaml:"clock"`
	Parts    []Part `yaml:"parts"`
}

// Part configures one driver channel.
type Part struct {
	Channel    int    `yaml:"channel"`
	Priority   uint8  `yaml:"priority"`
	Transpose  int8   `yaml:"transpose"`
	Sustain    bool   `yaml:"sustain"`
	Volume     uint8  `yaml:"volume"`
	Instrument string `yaml:"instrument"`

	instrument *fm.Instrument
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{LogLevel: "info"}
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML. Missing fields keep their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	seen := map[int]bool{}
	for i := range c.Parts {
		p := &c.Parts[i]
		if p.Channel < 0 || p.Channel >= midiChannels {
			return fmt.Errorf("%w: part %d: channel %d out of range 0-%d", ErrInvalid, i, p.Channel, midiChannels-1)
		}
		if seen[p.Channel] {
			return fmt.Errorf("%w: part %d: channel %d configured twice", ErrInvalid, i, p.Channel)
		}
		seen[p.Channel] = true

		if p.Instrument == "" {
			continue
		}
		in, err := ParseInstrument(p.Instrument)
		if err != nil {
			return fmt.Errorf("%w: part %d: %w", ErrInvalid, i, err)
		}
		p.instrument = &in
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	return l, nil
}

// ParseInstrument decodes a hex instrument block, 60 digits with optional
// whitespace between bytes.
func ParseInstrument(s string) (fm.Instrument, error) {
	var in fm.Instrument
	raw, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return in, fmt.Errorf("instrument: %w", err)
	}
	if len(raw) != fm.InstrumentSize {
		return in, fmt.Errorf("instrument: got %d bytes, want %d", len(raw), fm.InstrumentSize)
	}
	copy(in[:], raw)
	return in, nil
}

// Apply claims and sets up the configured channels of d.
func (c *Config) Apply(d *fm.Driver) error {
	if err := c.validate(); err != nil {
		return err
	}
	for _, p := range c.Parts {
		ch := d.Channel(p.Channel)
		if ch == nil {
			return fmt.Errorf("%w: no channel %d", ErrInvalid, p.Channel)
		}
		if !ch.Allocate() {
			return fmt.Errorf("%w: channel %d already claimed", ErrInvalid, p.Channel)
		}
		ch.Priority(p.Priority)
		ch.SetTranspose(p.Transpose)
		ch.SetSustain(p.Sustain)
		ch.SetVolume(p.Volume)
		if p.instrument != nil {
			ch.SysExCustomInstrument(0, p.instrument[:])
		}
	}
	return nil
}
