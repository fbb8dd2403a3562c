// Package env gathers user-defined macros and environment variables.
//
// It provides functionality for:
//   - Loading .env files and exporting them for ${env}.NAME macros
//   - Parsing name=value macro definitions from the command line
//   - Seeding macros from SRT_MACRO_ prefixed environment variables
package env
