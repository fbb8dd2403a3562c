// Package assertions checks responses against the expectations of a test
// document.
//
// Supported assertions:
//   - Status code equality (status)
//   - Response body pattern (responseRegexp), a Go regular expression
//     searched anywhere in the body
package assertions
