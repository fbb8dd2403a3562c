// Package capture turns response fields into macros for later requests.
//
// After a test whose document sets saveResponse succeeds, every top-level
// key k of its JSON response is registered as ${testname}.k. Local macro
// definitions add derived values under the same prefix: preRequest ones are
// evaluated against the outgoing request before it is sent, postResponse
// ones against the parsed response.
package capture
