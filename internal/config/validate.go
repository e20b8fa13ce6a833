package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable. A missing server URL or token is
// not an error here: the URL can be discovered from plex.tv and the token can
// come from the link flow.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateShare(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePlex() error {
	if c.Plex.URL != "" {
		if err := validateHTTPURL(c.Plex.URL); err != nil {
			return fmt.Errorf("plex.url: %w", err)
		}
	}
	if err := validateHTTPURL(c.Plex.PlexTVURL); err != nil {
		return fmt.Errorf("plex.plextv_url: %w", err)
	}
	if c.Plex.TimeoutSeconds < 0 {
		return errors.New("plex.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateShare() error {
	if c.Share.KillGraceSeconds < 0 {
		return errors.New("share.kill_grace_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
