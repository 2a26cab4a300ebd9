// Package config loads plugsmith.yaml: platform location, install defaults,
// manifest naming and the optional journal, event and metrics outputs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/logfields"
)

// DefaultFileName is the configuration file looked up in the working directory.
const DefaultFileName = "plugsmith.yaml"

// CurrentVersion is the only accepted value of the version field.
const CurrentVersion = "1"

// Config is the plugsmith configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Platform PlatformConfig `yaml:"platform"`
	Install  InstallConfig  `yaml:"install"`
	Manifest ManifestConfig `yaml:"manifest"`
	Registry RegistryConfig `yaml:"registry"`
	Journal  JournalConfig  `yaml:"journal"`
	Backups  BackupsConfig  `yaml:"backups"`
	Events   EventsConfig   `yaml:"events"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`

	// BaseDir anchors relative paths; the directory holding the config file.
	BaseDir string `yaml:"-"`
}

// PlatformConfig locates the platform project being installed into.
type PlatformConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Root    string `yaml:"root"`
}

// InstallConfig holds defaults applied to every add/remove.
type InstallConfig struct {
	UsePlatformWww bool              `yaml:"use_platform_www"`
	Variables      map[string]string `yaml:"variables,omitempty"`
}

// ManifestConfig names the generated module manifest.
type ManifestConfig struct {
	FileName   string `yaml:"file_name"`
	ModuleName string `yaml:"module_name"`
}

// RegistryConfig controls persistence of the module registry.
type RegistryConfig struct {
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig is the raw retry policy for registry writes.
type RetryConfig struct {
	Mode       string `yaml:"mode"`
	Initial    string `yaml:"initial"`
	Max        string `yaml:"max"`
	MaxRetries *int   `yaml:"max_retries,omitempty"`
}

// JournalConfig controls the sqlite transaction journal.
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path"`
}

// BackupsConfig locates the store holding files that installs overwrote.
type BackupsConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig configures the optional NATS event sink.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig configures the prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// FetchConfig configures cloning plugins from git.
type FetchConfig struct {
	CacheDir     string `yaml:"cache_dir"`
	ShallowDepth int    `yaml:"shallow_depth"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// AppConfig describes the app for the generated web manifest.
type AppConfig struct {
	Name            string `yaml:"name,omitempty"`
	ShortName       string `yaml:"short_name,omitempty"`
	Description     string `yaml:"description,omitempty"`
	Author          string `yaml:"author,omitempty"`
	StartURL        string `yaml:"start_url,omitempty"`
	Orientation     string `yaml:"orientation,omitempty"`
	BackgroundColor string `yaml:"background_color,omitempty"`
	StatusBarColor  string `yaml:"status_bar_color,omitempty"`
}

// Load reads, normalizes and validates the configuration at path.
// .env and .env.local next to the file are loaded first; variables already
// present in the environment win. ${VAR} references in the file are expanded.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve config path").Build()
	}
	loadEnvFiles(filepath.Dir(abs))

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
				WithContext("path", path).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read config file").
			WithContext("path", path).
			Build()
	}
	return Parse([]byte(os.ExpandEnv(string(data))), filepath.Dir(abs))
}

// LoadOrDefault loads path when it exists and otherwise returns the defaults
// anchored at the directory path would live in.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve config path").Build()
		}
		dir := filepath.Dir(abs)
		loadEnvFiles(dir)
		slog.Debug("No configuration file, using defaults", logfields.Path(path))
		cfg := Default()
		cfg.BaseDir = dir
		return cfg, nil
	}
	return Load(path)
}

// Parse decodes YAML content; relative paths resolve against baseDir.
func Parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Build()
	}
	if cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported configuration version: %q (expected %q)", cfg.Version, CurrentVersion)).
			WithContext("version", cfg.Version).
			Build()
	}
	cfg.BaseDir = baseDir
	for _, w := range cfg.Normalize() {
		slog.Warn("Config normalization", slog.String("detail", w))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve anchors a configured path at BaseDir. Empty stays empty.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// PlatformRoot is the resolved platform project directory.
func (c *Config) PlatformRoot() string { return c.Resolve(c.Platform.Root) }

// JournalEnabled reports whether transactions are journaled.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled == nil || *c.Journal.Enabled
}

// Init writes a starter configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).
			WithContext("path", path).
			UserAction().
			Build()
	}

	example := Default()
	example.Install.Variables = map[string]string{"API_KEY": "${PLUGSMITH_API_KEY}"}
	example.App = AppConfig{
		Name:        "HelloPlugsmith",
		Description: "A sample app",
		StartURL:    "index.html",
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create config directory").Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", path).
			Build()
	}
	return nil
}

func loadEnvFiles(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Failed to load env file", logfields.Path(p), logfields.Error(err))
			continue
		}
		slog.Debug("Loaded environment variables", logfields.Path(p))
	}
}
