package deps

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/core/macro"
)

// ErrUnknownPrerequisite marks a reference to a testname no document declares.
var ErrUnknownPrerequisite = errors.New("unknown prerequisite")

// referencePattern matches ${name}.field; bare ${name} tokens carry no
// dependency.
var referencePattern = regexp.MustCompile(`\$\{([^}]*)\}\.[A-Za-z_][0-9A-Za-z_]*`)

// UnknownPrerequisiteError reports the dependent and the missing name.
type UnknownPrerequisiteError struct {
	Dependent string
	Reference string
}

func (e *UnknownPrerequisiteError) Error() string {
	return fmt.Sprintf("test %q requires %q, but no test declares that testname", e.Dependent, e.Reference)
}

func (e *UnknownPrerequisiteError) Is(target error) bool {
	return target == ErrUnknownPrerequisite
}

// References returns the names of the ${name}.field tokens in the string
// values of doc, in first seen order. ${env} and the document's own name are
// left out; a document may read fields it defines itself.
func References(doc *document.Document) []string {
	var names []string
	seen := map[string]bool{
		macro.EnvName: true,
		doc.Name():    true,
	}
	document.Walk(doc.Root, func(s document.String) {
		for _, m := range referencePattern.FindAllStringSubmatch(string(s), -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	})
	return names
}

// PrerequisitesOf returns the testnames doc depends on: its References
// followed by its explicit prerequisites, without duplicates. An explicit
// entry naming doc itself is kept so planning reports it as a cycle.
func PrerequisitesOf(doc *document.Document) []string {
	return merge(References(doc), doc.Test.Prerequisites)
}

func merge(refs, explicit []string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, list := range [][]string{refs, explicit} {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// Resolver maps prerequisite names onto the documents of a collection.
type Resolver struct {
	collection *document.Collection
	cache      map[string][]string
	isMacro    func(name string) bool
}

type ResolverOption func(*Resolver)

// WithMacros tells the resolver which bare macros are defined. A reference
// such as ${tag}.json whose name no document declares but which is a
// defined macro is substituted as ${tag} followed by literal text, so it
// carries no dependency.
func WithMacros(isMacro func(name string) bool) ResolverOption {
	return func(r *Resolver) {
		r.isMacro = isMacro
	}
}

func NewResolver(c *document.Collection, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		collection: c,
		cache:      make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prerequisites returns PrerequisitesOf(doc) without the references that
// resolve as bare macros, computed once per testname.
func (r *Resolver) Prerequisites(doc *document.Document) []string {
	if names, ok := r.cache[doc.Name()]; ok {
		return names
	}

	refs := References(doc)
	if r.isMacro != nil {
		kept := refs[:0:0]
		for _, name := range refs {
			if _, declared := r.collection.Lookup(name); declared || !r.isMacro(name) {
				kept = append(kept, name)
			}
		}
		refs = kept
	}

	names := merge(refs, doc.Test.Prerequisites)
	r.cache[doc.Name()] = names
	return names
}

// FileFor returns the document declaring testname name. dependent names the
// document holding the reference and is only used in the error.
func (r *Resolver) FileFor(dependent, name string) (*document.Document, error) {
	doc, ok := r.collection.Lookup(name)
	if !ok {
		return nil, &UnknownPrerequisiteError{Dependent: dependent, Reference: name}
	}
	return doc, nil
}

// Graph returns every document's prerequisite names keyed by testname.
func (r *Resolver) Graph() map[string][]string {
	g := make(map[string][]string, r.collection.Len())
	for _, doc := range r.collection.Documents {
		g[doc.Name()] = r.Prerequisites(doc)
	}
	return g
}
