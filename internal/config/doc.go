// Package config loads, normalizes, and validates tilegrind configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. Per-run knobs such as target shard count,
// worker pool size, and the per-item timeout can be overridden by CLI flags
// after loading.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths and clear validation errors.
package config
