package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.SourceLang != "auto" {
		t.Errorf("SourceLang = %q, want auto", cfg.SourceLang)
	}
	if cfg.DataSyncConsent {
		t.Error("DataSyncConsent must default to false")
	}
	if cfg.APIMode != ModeGroq {
		t.Errorf("APIMode = %q, want groq", cfg.APIMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SourceLang != "auto" {
		t.Errorf("SourceLang = %q, want auto", cfg.SourceLang)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.TargetLang = "en"
	cfg.APIMode = ModeProxied
	cfg.BackendEndpoint = "https://backend.example/process"
	cfg.BackendSecret = "shh"
	cfg.DataSyncConsent = true
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.TargetLang != "en" || got.APIMode != ModeProxied || !got.DataSyncConsent {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.BackendSecret != "shh" {
		t.Errorf("BackendSecret = %q", got.BackendSecret)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("target_lang = \"ja\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TargetLang != "ja" {
		t.Errorf("TargetLang = %q, want ja", cfg.TargetLang)
	}
	if cfg.SourceLang != "auto" {
		t.Errorf("SourceLang default lost: %q", cfg.SourceLang)
	}
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"bad mode", func(c *Config) { c.APIMode = "local" }, true},
		{"bad target", func(c *Config) { c.TargetLang = "xx" }, true},
		{"bad source", func(c *Config) { c.SourceLang = "klingon" }, true},
		{"auto source ok", func(c *Config) { c.SourceLang = "auto" }, false},
		{"empty target ok", func(c *Config) { c.TargetLang = "" }, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
