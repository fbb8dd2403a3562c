// Package http sends the requests described by test documents.
//
// It wraps the standard library's http package with additional features:
//   - Configurable timeouts, per client and per request
//   - Redirect handling
//   - Proxy and TLS verification settings
//   - Request building from substituted test documents
//   - Response handling and body reading
package http
