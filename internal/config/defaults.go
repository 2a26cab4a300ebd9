package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/plugsmith/internal/events"
	"git.home.luguber.info/inful/plugsmith/internal/pluginlist"
	"git.home.luguber.info/inful/plugsmith/internal/retry"
)

const (
	DefaultPlatformName    = "electron"
	DefaultPlatformVersion = "1.0.0"
	DefaultStateDir        = ".plugsmith"
	DefaultShallowDepth    = 1
)

// Default returns a fully populated configuration.
func Default() *Config {
	enabled := true
	maxRetries := retry.DefaultPolicy().MaxRetries
	return &Config{
		Version: CurrentVersion,
		Platform: PlatformConfig{
			Name:    DefaultPlatformName,
			Version: DefaultPlatformVersion,
			Root:    filepath.Join("platforms", DefaultPlatformName),
		},
		Manifest: ManifestConfig{
			FileName:   pluginlist.DefaultFileName,
			ModuleName: pluginlist.DefaultModuleName,
		},
		Registry: RegistryConfig{Retry: RetryConfig{
			Mode:       string(retry.ModeLinear),
			Initial:    retry.DefaultPolicy().Initial.String(),
			Max:        retry.DefaultPolicy().Max.String(),
			MaxRetries: &maxRetries,
		}},
		Journal: JournalConfig{Enabled: &enabled, Path: filepath.Join(DefaultStateDir, "journal.db")},
		Backups: BackupsConfig{Path: filepath.Join(DefaultStateDir, "backups")},
		Events:  EventsConfig{Subject: events.DefaultSubject},
		Fetch:   FetchConfig{CacheDir: filepath.Join(DefaultStateDir, "cache"), ShallowDepth: DefaultShallowDepth},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}
}

// Normalize case-folds enumerations and fills omitted fields from Default.
// It returns human readable notes about values it changed.
func (c *Config) Normalize() []string {
	var warnings []string
	d := Default()

	c.Platform.Name = strings.ToLower(strings.TrimSpace(c.Platform.Name))
	if c.Platform.Name == "" {
		c.Platform.Name = d.Platform.Name
	}
	if c.Platform.Version == "" {
		c.Platform.Version = d.Platform.Version
	}
	if c.Platform.Root == "" {
		c.Platform.Root = filepath.Join("platforms", c.Platform.Name)
	}

	if c.Manifest.FileName == "" {
		c.Manifest.FileName = d.Manifest.FileName
	}
	if c.Manifest.ModuleName == "" {
		c.Manifest.ModuleName = d.Manifest.ModuleName
	}

	r := &c.Registry.Retry
	if r.Mode == "" {
		r.Mode = d.Registry.Retry.Mode
	} else if m := retry.ParseMode(r.Mode); m != "" && string(m) != r.Mode {
		warnings = append(warnings, fmt.Sprintf("normalized registry.retry.mode from %q to %q", r.Mode, m))
		r.Mode = string(m)
	}
	if r.Initial == "" {
		r.Initial = d.Registry.Retry.Initial
	}
	if r.Max == "" {
		r.Max = d.Registry.Retry.Max
	}
	if r.MaxRetries == nil {
		r.MaxRetries = d.Registry.Retry.MaxRetries
	}

	if c.Journal.Enabled == nil {
		c.Journal.Enabled = d.Journal.Enabled
	}
	if c.Journal.Path == "" {
		c.Journal.Path = d.Journal.Path
	}
	if c.Backups.Path == "" {
		c.Backups.Path = d.Backups.Path
	}
	if c.Events.Subject == "" {
		c.Events.Subject = d.Events.Subject
	}
	if c.Fetch.CacheDir == "" {
		c.Fetch.CacheDir = d.Fetch.CacheDir
	}
	if c.Fetch.ShallowDepth < 0 {
		warnings = append(warnings, fmt.Sprintf("fetch.shallow_depth %d coerced to 0", c.Fetch.ShallowDepth))
		c.Fetch.ShallowDepth = 0
	}

	if lvl := NormalizeLogLevel(string(c.Logging.Level)); c.Logging.Level != "" && lvl != c.Logging.Level {
		warnings = append(warnings, fmt.Sprintf("normalized logging.level from %q to %q", c.Logging.Level, lvl))
		c.Logging.Level = lvl
	} else if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if f := NormalizeLogFormat(string(c.Logging.Format)); c.Logging.Format != "" && f != c.Logging.Format {
		warnings = append(warnings, fmt.Sprintf("normalized logging.format from %q to %q", c.Logging.Format, f))
		c.Logging.Format = f
	} else if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}

	c.App.Orientation = strings.ToLower(strings.TrimSpace(c.App.Orientation))
	return warnings
}
