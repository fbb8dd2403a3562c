// Package deps derives the prerequisites of test documents.
//
// A document depends on test X when any of its string values references
// ${X}.field, or when X is listed in its prerequisites. References to ${env}
// never create a dependency.
package deps
