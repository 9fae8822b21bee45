// Package config loads and persists user settings for the captioning
// pipeline. Settings live in a TOML file; the popup-equivalent surface is
// the file plus command-line flag overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"livecap/lang"
)

// APIMode selects how chunks are processed.
type APIMode string

const (
	ModeProxied APIMode = "proxied" // operator-run backend, shared secret
	ModeGroq    APIMode = "groq"    // direct provider A
	ModeOpenAI  APIMode = "openai"  // direct provider B
)

type Config struct {
	SourceLang   string  `toml:"source_lang"` // language code or "auto"
	TargetLang   string  `toml:"target_lang"`
	ShowOriginal bool    `toml:"show_original"`
	APIMode      APIMode `toml:"api_mode"`

	GroqAPIKey   string `toml:"groq_api_key"`
	OpenAIAPIKey string `toml:"openai_api_key"`

	BackendEndpoint string `toml:"backend_endpoint"`
	BackendSecret   string `toml:"backend_secret"`

	SyncEndpoint    string `toml:"sync_endpoint"`
	SyncKey         string `toml:"sync_key"`
	DataSyncConsent bool   `toml:"data_sync_consent"` // opt-in, default false

	DataDir string `toml:"data_dir"` // cache database + device id
}

// Default returns the baseline configuration before file and flag
// overrides.
func Default() *Config {
	return &Config{
		SourceLang:   "auto",
		TargetLang:   "vi",
		ShowOriginal: true,
		APIMode:      ModeGroq,
	}
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "livecap", "config.toml"), nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.APIMode {
	case ModeProxied, ModeGroq, ModeOpenAI:
	default:
		return fmt.Errorf("unknown api_mode %q (use proxied, groq, or openai)", c.APIMode)
	}
	if c.SourceLang != "auto" && c.SourceLang != "" && !lang.IsSupported(c.SourceLang) {
		return fmt.Errorf("unsupported source_lang %q", c.SourceLang)
	}
	if c.TargetLang != "" && !lang.IsSupported(c.TargetLang) {
		return fmt.Errorf("unsupported target_lang %q", c.TargetLang)
	}
	return nil
}

// EnsureDataDir resolves and creates the data directory used for the
// segment cache and device identity.
func (c *Config) EnsureDataDir() (string, error) {
	dir := c.DataDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "livecap")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}
