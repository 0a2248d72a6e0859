package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, GlobalConfigDir)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, ConfigFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()

	cfg, err := NewLoaderWithDirs(home, work).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("environment = %q", cfg.Environment)
	}
	if cfg.Plugins.Dir != filepath.Join(home, GlobalConfigDir, "extensions") {
		t.Errorf("plugins.dir = %q", cfg.Plugins.Dir)
	}
	if cfg.Plugins.HookTimeout != 5*time.Second {
		t.Errorf("hook_timeout = %v", cfg.Plugins.HookTimeout)
	}
	if cfg.AI.MaxTokens != 1024 {
		t.Errorf("ai.max_tokens = %d", cfg.AI.MaxTokens)
	}
}

func TestLoadGlobalFile(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	writeConfig(t, home, `
environment = "development"
debug = true

[plugins]
allow_unsigned = true
hook_timeout = "2s"

[ai]
provider = "anthropic"
`)

	cfg, err := NewLoaderWithDirs(home, work).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != "development" || !cfg.Debug {
		t.Errorf("global file not applied: %+v", cfg)
	}
	if !cfg.Plugins.AllowUnsigned {
		t.Error("plugins.allow_unsigned not applied")
	}
	if cfg.Plugins.HookTimeout != 2*time.Second {
		t.Errorf("hook_timeout = %v", cfg.Plugins.HookTimeout)
	}
	if cfg.AI.Provider != "anthropic" {
		t.Errorf("ai.provider = %q", cfg.AI.Provider)
	}
}

func TestProjectOverridesGlobal(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	writeConfig(t, home, `environment = "production"`)
	writeConfig(t, work, `environment = "development"`)

	cfg, err := NewLoaderWithDirs(home, work).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Environment != "development" {
		t.Errorf("environment = %q, project file should win", cfg.Environment)
	}
}

func TestEnvOverridesFiles(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	writeConfig(t, home, `[ai]
provider = "anthropic"`)

	t.Setenv("EXTEND_AI_PROVIDER", "openai")
	t.Setenv("EXTEND_AI_API_KEY", "sk-test")
	t.Setenv("EXTEND_DEBUG", "true")

	cfg, err := NewLoaderWithDirs(home, work).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AI.Provider != "openai" {
		t.Errorf("ai.provider = %q, env should win", cfg.AI.Provider)
	}
	if cfg.AI.APIKey != "sk-test" {
		t.Errorf("ai.api_key = %q", cfg.AI.APIKey)
	}
	if !cfg.Debug {
		t.Error("debug env not applied")
	}
}
