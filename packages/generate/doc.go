// Package generate writes test documents from OpenAPI 3 specifications.
//
// Only responses carrying an x-srt extension produce a test. The extension
// may override the description, expectation, responseRegexp, scheme, host,
// port and headers, supply a payload, set saveResponse, rewrite the path
// (path-subst, path-suffix) or exclude the response (skip-test).
//
// Existing files are kept, overwritten or renamed according to the Writer's
// policy; the interactive prompt is only offered on a terminal.
package generate
