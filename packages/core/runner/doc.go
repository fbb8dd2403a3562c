// Package runner plans and executes collections of srt test documents.
//
// It provides functionality for:
//   - Ordering documents so prerequisites run first
//   - Detecting circular dependencies before anything runs
//   - Deferring destructive requests to a final sweep
//   - Substituting macros and capturing responses
//   - Skipping documents whose prerequisites failed
//
// Documents run strictly one at a time; captures of one document are in the
// macro store before the next one is substituted.
package runner
