// Package document models srt test documents.
//
// A test document is a JSON file describing one HTTP request and the
// response expected from it. Documents are parsed into a tagged value tree
// (Null, Bool, Number, String, Sequence, Mapping) that keeps key order and
// exact number text, so macro substitution and prerequisite scanning can
// walk every field structurally. The decoded TestCase view carries the
// fields the runner needs.
package document
