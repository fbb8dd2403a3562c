// Package cmd implements the srt CLI commands using Cobra.
//
// Available commands:
//   - run: Execute a collection of test documents
//   - validate: Load and plan documents without sending requests
//   - list: Show the planned order and prerequisites
//   - expand: Print documents after macro substitution
//   - generate: Create test documents from an OpenAPI description
//   - init: Create an example configuration and documents
//   - version: Show srt version information
//
// Flags of run default from SRT_* environment variables and from the
// optional config file; explicit flags win.
package cmd
