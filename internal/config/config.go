// Package config loads host configuration for the plugin system.
// Precedence, highest last: defaults, global file (~/.coda/extend.toml),
// project file (.coda/extend.toml), environment variables (EXTEND_*).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// GlobalConfigDir is the per-user configuration directory.
	GlobalConfigDir = ".coda"

	// ConfigFile is the configuration file name in both locations.
	ConfigFile = "extend.toml"

	// envPrefix namespaces host environment variables.
	envPrefix = "EXTEND_"
)

// Config is the host configuration for the plugin system.
type Config struct {
	// Environment is the runtime environment tag: development or production.
	Environment string `koanf:"environment"`

	// Debug enables debug logging.
	Debug bool `koanf:"debug"`

	// Workspace is the workspace root exposed to plugins.
	Workspace string `koanf:"workspace"`

	Plugins PluginsConfig `koanf:"plugins"`
	AI      AIConfig      `koanf:"ai"`
}

// PluginsConfig configures plugin storage and execution.
type PluginsConfig struct {
	// Dir is the managed bundle directory installs commit into.
	Dir string `koanf:"dir"`

	// SearchDirs are extra directories scanned during discovery.
	SearchDirs []string `koanf:"search_dirs"`

	// AllowUnsigned disables bundle signature verification.
	AllowUnsigned bool `koanf:"allow_unsigned"`

	// TrustedKeys are base64 ed25519 public keys accepted for signatures.
	TrustedKeys []string `koanf:"trusted_keys"`

	// HookTimeout bounds plugin lifecycle hooks and command dispatch.
	HookTimeout time.Duration `koanf:"hook_timeout"`
}

// AIConfig selects the AI completion provider plugins reach through the
// host API.
type AIConfig struct {
	// Provider is "anthropic" or "openai". Empty disables AI operations.
	Provider string `koanf:"provider"`

	// Model overrides the provider's default model.
	Model string `koanf:"model"`

	// APIKey authenticates with the provider. Usually set via
	// EXTEND_AI_API_KEY rather than a file on disk.
	APIKey string `koanf:"api_key"`

	// MaxTokens bounds completion length.
	MaxTokens int `koanf:"max_tokens"`
}

// Loader loads configuration from layered sources.
type Loader struct {
	k       *koanf.Koanf
	homeDir string
	workDir string
}

// NewLoader creates a Loader using the user's home and working directories.
func NewLoader() (*Loader, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	return NewLoaderWithDirs(homeDir, workDir), nil
}

// NewLoaderWithDirs creates a Loader with explicit directories (for tests).
func NewLoaderWithDirs(homeDir, workDir string) *Loader {
	return &Loader{
		k:       koanf.New("."),
		homeDir: homeDir,
		workDir: workDir,
	}
}

// Load merges every configuration source and unmarshals the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(l.defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	globalPath := filepath.Join(l.homeDir, GlobalConfigDir, ConfigFile)
	if err := l.loadTOML(globalPath); err != nil {
		return nil, fmt.Errorf("loading global config: %w", err)
	}

	projectPath := filepath.Join(l.workDir, GlobalConfigDir, ConfigFile)
	if err := l.loadTOML(projectPath); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	envOpt := env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envTransform,
	}
	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// loadTOML merges one TOML file; a missing file is not an error.
func (l *Loader) loadTOML(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return l.k.Load(file.Provider(path), tomlparser.Parser())
}

// defaults are the lowest-precedence configuration values.
func (l *Loader) defaults() map[string]any {
	return map[string]any{
		"environment":          "production",
		"debug":                false,
		"workspace":            l.workDir,
		"plugins.dir":          filepath.Join(l.homeDir, GlobalConfigDir, "extensions"),
		"plugins.hook_timeout": "5s",
		"ai.max_tokens":        1024,
	}
}

// envTransform maps EXTEND_PLUGINS_ALLOW_UNSIGNED to plugins.allow_unsigned.
func envTransform(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(key)

	// ai.api_key and friends contain underscores inside the leaf name;
	// translate only the section separator.
	switch {
	case strings.HasPrefix(key, "plugins_"):
		key = "plugins." + strings.TrimPrefix(key, "plugins_")
	case strings.HasPrefix(key, "ai_"):
		key = "ai." + strings.TrimPrefix(key, "ai_")
	}
	return key, value
}
