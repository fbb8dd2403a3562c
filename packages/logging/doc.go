// Package logging provides the diagnostics logger used across srt.
//
// Lines go to the console with a severity marker (DBG, INF, WRN, ERR).
// An optional log file receives the same events as JSON and is rotated by
// size.
package logging
