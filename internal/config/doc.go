// Package config loads, normalizes, and validates plexadmin configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files from --config, ~/.config/plexadmin, or the
// working directory. The Config type centralizes the Plex connection settings,
// backup and state directories, and logging knobs both tools need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
