// Package cmd implements the multisync CLI commands using Cobra.
//
// Available commands:
//   - request: Send one blocking HTTP/1.1 request, optionally with a file upload
//   - echo: Run a server that describes every request it receives
//   - version: Show multisync version information
//   - completion: Generate shell completion scripts
//
// Flags override values from a .multisync.json or .multisync.yaml config
// file. The exit code tells apart failed checks, attachment errors,
// network errors and malformed responses.
package cmd
