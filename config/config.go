package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds everything sub000 needs to come up: where notes go, how
// they are voiced, and how fast the transport runs.
type Config struct {
	// OutputPort is matched as a case-insensitive substring against the
	// available MIDI output ports; empty means the first port found.
	OutputPort string `json:"outputPort,omitempty"`

	// Channel is the MIDI channel (0-15) for notes and CCs.
	Channel uint8 `json:"channel"`

	// RootNote is the MIDI pitch the note lane offsets from.
	RootNote uint8 `json:"rootNote"`

	// ModCCs assigns a CC controller number to each mod lane.
	ModCCs [4]uint8 `json:"modCCs"`

	Tempo      float64 `json:"tempo,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Debug      bool    `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Channel:    0,
		RootNote:   48, // C3
		ModCCs:     [4]uint8{1, 11, 74, 71},
		Tempo:      120,
		SampleRate: 44100,
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sub000"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.clamp()

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// clamp pulls hand-edited values back into range rather than failing the
// load.
func (c *Config) clamp() {
	if c.Channel > 15 {
		c.Channel = 0
	}
	if c.RootNote > 127 {
		c.RootNote = 48
	}
	for i, cc := range c.ModCCs {
		if cc > 127 {
			c.ModCCs[i] = 0
		}
	}
	if c.Tempo == 0 {
		c.Tempo = 120
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
}
