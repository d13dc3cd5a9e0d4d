// Package config loads, normalizes, and validates handscope configuration.
//
// It supplies the default scoring tables and detector thresholds, expands
// user paths (including tilde shortcuts), and reads TOML files. Converters
// hand each pipeline package its own Config value so those packages never
// depend on this one.
package config
