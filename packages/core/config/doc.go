// Package config handles configuration loading and management for srt.
//
// It provides functionality for:
//   - Loading configuration from srt.yaml, srt.config.json or .srtrc
//   - Default configuration values
//   - Merging command line overrides over file settings
package config
