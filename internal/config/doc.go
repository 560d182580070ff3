// Package config loads, normalizes, and validates jukebox configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for provider
// secrets such as SPOTIFY_CLIENT_ID. The Config type centralizes every knob
// the pipeline and CLI need, so cache directories, rate limits, and external
// tool settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
