// Package config loads, normalizes, and validates the TOML configuration
// for the transcription pipeline. Load resolves the config path, merges the
// file over repository defaults, expands home-relative paths, and applies
// environment variable fallbacks for credentials.
package config
