// Package macro holds the macro store and the substitution engine.
//
// A macro token is "${name}" or "${name}.field". Tokens of the form
// "${env}.NAME" read the process environment; every other token is looked up
// in a Store that is seeded with user-defined macros and grows as responses
// are captured. Unresolved tokens are left in place and reported once per
// substitution call.
package macro
