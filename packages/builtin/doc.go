// Package builtin provides the derivations a test document may name in its
// macroDef entries.
//
// A definition is a registered name, optionally followed by arguments:
//   - path(data.id): value at a gjson path of the input
//   - length(items): length of an array, object or string
//   - default(data.id, none): value at a path, or the fallback
//   - uuid(): random UUID v4
//   - timestamp(), timestampMs(), now(), date(format)
//   - random(min, max), randomString(length), randomEmail()
//   - base64(value), base64Decode(value), md5(value), sha256(value)
//   - urlEncode(value), urlDecode(value)
//
// Definitions are looked up by name and never evaluated as code.
package builtin
