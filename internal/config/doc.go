// Package config loads, normalizes, and validates wmclean configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and resolves provider API
// keys from the environment. The Config type centralizes every knob the
// pipeline, CLI, and daemon need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical names, and clear validation errors.
package config
