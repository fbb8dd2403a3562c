// Package output renders run results as console text, JSON, JUnit XML or
// TAP. Formats that need the whole run before writing implement Flushable.
//
// A blocked document never ran because a prerequisite is missing; every
// format reports it as an error rather than a skip.
package output
