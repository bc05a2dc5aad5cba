// Package config handles configuration loading and management for multisync.
//
// It provides functionality for:
//   - Loading configuration from .multisync.json or .multisync.yaml files
//   - Default configuration values
//   - Merging file configuration with command-line overrides
package config
