// Package config loads engine settings from a TOML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cbegin/audial-go/internal/audio"
	"github.com/cbegin/audial-go/internal/effects"
)

// Environment variables that override the file.
const (
	EnvSampleRate   = "AUDIAL_SAMPLE_RATE"
	EnvBackend      = "AUDIAL_BACKEND"
	EnvBPM          = "AUDIAL_BPM"
	EnvBufferFrames = "AUDIAL_BUFFER_FRAMES"
)

type Config struct {
	SampleRate   int     `toml:"sample_rate"`
	BufferFrames int     `toml:"buffer_frames"`
	Backend      string  `toml:"backend"`
	BPM          float64 `toml:"bpm"`
	Channels     int     `toml:"channels"`
	EventBuffer  int     `toml:"event_buffer"`
	// PatchBank is a TOML bank file; Patches names one entry per channel.
	PatchBank string         `toml:"patch_bank"`
	Patches   []string       `toml:"patches"`
	Sounds    []Sound        `toml:"sound"`
	Effects   []effects.Spec `toml:"effect"`
}

// Sound is a WAV file to preload. Group 0 means no exclusive group.
type Sound struct {
	Name  string `toml:"name"`
	Path  string `toml:"path"`
	Group int    `toml:"group"`
}

func Default() Config {
	return Config{
		SampleRate:   48000,
		BufferFrames: audio.DefaultBufferFrames,
		Backend:      audio.Ebiten,
		BPM:          120,
		Channels:     1,
		EventBuffer:  1024,
	}
}

// Load reads path (if not empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes TOML text over the defaults without consulting the
// environment.
func Parse(text string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from lookup. Malformed values are reported
// together.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	if v, ok := lookup(EnvSampleRate); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvSampleRate, err))
		} else {
			c.SampleRate = n
		}
	}
	if v, ok := lookup(EnvBufferFrames); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvBufferFrames, err))
		} else {
			c.BufferFrames = n
		}
	}
	if v, ok := lookup(EnvBPM); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvBPM, err))
		} else {
			c.BPM = f
		}
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Backend = strings.ToLower(v)
	}
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, errors.New("sample_rate must be positive"))
	}
	if c.BufferFrames <= 0 {
		errs = append(errs, errors.New("buffer_frames must be positive"))
	}
	if c.BPM <= 0 {
		errs = append(errs, errors.New("bpm must be positive"))
	}
	if c.Channels < 1 {
		errs = append(errs, errors.New("channels must be at least 1"))
	}
	switch c.Backend {
	case audio.Ebiten, audio.Oto, audio.Headless:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", audio.ErrUnknownBackend, c.Backend))
	}
	for i, s := range c.Sounds {
		if s.Name == "" || s.Path == "" {
			errs = append(errs, fmt.Errorf("sound %d: name and path are required", i))
		}
	}
	return errors.Join(errs...)
}

// SoundGroup maps the file's 1-based group onto the bank's convention.
func (s Sound) SoundGroup() int {
	if s.Group <= 0 {
		return -1
	}
	return s.Group
}
