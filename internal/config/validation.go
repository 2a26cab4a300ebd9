package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/retry"
)

var platformNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var validOrientations = map[string]bool{"": true, "any": true, "landscape": true, "portrait": true}

var natsSchemes = map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}

// Validate checks the configuration after Normalize and returns a classified
// config error naming the first offending field.
func (c *Config) Validate() error {
	checks := []struct {
		field string
		check func() error
	}{
		{"platform.name", c.validatePlatformName},
		{"manifest.file_name", c.validateManifest},
		{"registry.retry", func() error { _, err := c.RetryPolicy(); return err }},
		{"events.nats_url", c.validateEvents},
		{"fetch.shallow_depth", c.validateFetch},
		{"app.orientation", c.validateApp},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "configuration validation failed").
				WithContext("field", ch.field).
				UserAction().
				Build()
		}
	}
	return nil
}

func (c *Config) validatePlatformName() error {
	if !platformNamePattern.MatchString(c.Platform.Name) {
		return fmt.Errorf("invalid platform name %q", c.Platform.Name)
	}
	if c.Platform.Root == "" {
		return errors.New("platform root cannot be empty")
	}
	return nil
}

func (c *Config) validateManifest() error {
	name := c.Manifest.FileName
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("manifest file name must be a plain file name, got %q", name)
	}
	if strings.TrimSpace(c.Manifest.ModuleName) == "" {
		return errors.New("manifest module name cannot be empty")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.NATSURL == "" {
		return nil
	}
	for _, raw := range strings.Split(c.Events.NATSURL, ",") {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid NATS URL: %w", err)
		}
		if !natsSchemes[u.Scheme] || u.Host == "" {
			return fmt.Errorf("invalid NATS URL %q", raw)
		}
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.ShallowDepth < 0 {
		return fmt.Errorf("shallow depth cannot be negative: %d", c.Fetch.ShallowDepth)
	}
	return nil
}

func (c *Config) validateApp() error {
	if !validOrientations[c.App.Orientation] {
		return fmt.Errorf("orientation must be any, landscape or portrait, got %q", c.App.Orientation)
	}
	return nil
}

// RetryPolicy parses the registry retry settings.
func (c *Config) RetryPolicy() (retry.Policy, error) {
	r := c.Registry.Retry
	mode := retry.ParseMode(r.Mode)
	if mode == "" {
		return retry.Policy{}, fmt.Errorf("unknown retry mode %q", r.Mode)
	}
	initial, err := time.ParseDuration(r.Initial)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("invalid retry initial delay: %w", err)
	}
	maxDelay, err := time.ParseDuration(r.Max)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("invalid retry max delay: %w", err)
	}
	maxRetries := 0
	if r.MaxRetries != nil {
		maxRetries = *r.MaxRetries
	}
	p := retry.NewPolicy(mode, initial, maxDelay, maxRetries)
	if maxRetries < 0 {
		return retry.Policy{}, fmt.Errorf("max retries cannot be negative: %d", maxRetries)
	}
	return p, p.Validate()
}
