package runner

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/srt/packages/core/deps"
	"github.com/abdul-hamid-achik/srt/packages/core/document"
)

// DefaultDestructiveMethods are the methods deferred to the final sweep.
var DefaultDestructiveMethods = []string{"DELETE"}

// CycleError reports a circular dependency. The whole run is aborted.
type CycleError struct {
	Entry string
	Path  []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected starting in test %q (%s)", e.Entry, strings.Join(e.Path, " -> "))
}

// Step is one document of a plan, in execution order.
type Step struct {
	Doc      *document.Document
	Requires []string
	// Deferred is set for destructive documents run in the final sweep.
	Deferred bool
}

// Blocked is a document that cannot run because a prerequisite is missing,
// directly or further down its chain.
type Blocked struct {
	Doc *document.Document
	Err error
}

// Plan is the complete execution order of a collection, computed before any
// request is sent.
type Plan struct {
	Steps   []*Step
	Blocked []*Blocked
}

// Names returns the testnames of the steps in order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Doc.Name()
	}
	return names
}

type PlanOptions struct {
	// DestructiveMethods defaults to DefaultDestructiveMethods when nil.
	DestructiveMethods []string
	// NameFilter selects the top-level documents. Their prerequisites are
	// always planned.
	NameFilter string
	// Macros reports whether a bare macro is defined. References to such
	// macros are not prerequisites unless a document declares the name.
	Macros func(name string) bool
}

type visitState int

const (
	unvisited visitState = iota
	expanding
	planned
	blocked
)

type planner struct {
	resolver *deps.Resolver
	state    map[string]visitState
	reasons  map[string]error
	stack    []string
	plan     *Plan
}

// BuildPlan orders c so that every document runs after its prerequisites.
// Top-level documents are taken in discovery order; destructive ones are held
// back and run last unless another document needs them first. A cycle fails
// the whole plan. A missing prerequisite only blocks the documents that need
// it.
func BuildPlan(c *document.Collection, opts PlanOptions) (*Plan, error) {
	destructive := opts.DestructiveMethods
	if destructive == nil {
		destructive = DefaultDestructiveMethods
	}

	p := &planner{
		resolver: deps.NewResolver(c, deps.WithMacros(opts.Macros)),
		state:    make(map[string]visitState),
		reasons:  make(map[string]error),
		plan:     &Plan{},
	}

	var sweep []*document.Document
	for _, doc := range c.Documents {
		if !matchesPattern(doc.Name(), opts.NameFilter) {
			continue
		}
		if isDestructive(doc.Method(), destructive) {
			sweep = append(sweep, doc)
			continue
		}
		if err := p.visit(doc, false); err != nil {
			return nil, err
		}
	}

	for _, doc := range sweep {
		if err := p.visit(doc, true); err != nil {
			return nil, err
		}
	}

	return p.plan, nil
}

func (p *planner) visit(doc *document.Document, deferred bool) error {
	name := doc.Name()

	switch p.state[name] {
	case planned, blocked:
		return nil
	case expanding:
		return p.cycle(name)
	}

	p.state[name] = expanding
	p.stack = append(p.stack, name)

	requires := p.resolver.Prerequisites(doc)
	var reason error
	for _, req := range requires {
		dep, err := p.resolver.FileFor(name, req)
		if err != nil {
			if reason == nil {
				reason = err
			}
			continue
		}
		if err := p.visit(dep, false); err != nil {
			return err
		}
		if p.state[req] == blocked && reason == nil {
			reason = fmt.Errorf("prerequisite %q cannot run: %w", req, p.reasons[req])
		}
	}

	p.stack = p.stack[:len(p.stack)-1]

	if reason != nil {
		p.state[name] = blocked
		p.reasons[name] = reason
		p.plan.Blocked = append(p.plan.Blocked, &Blocked{Doc: doc, Err: reason})
		return nil
	}

	p.state[name] = planned
	p.plan.Steps = append(p.plan.Steps, &Step{Doc: doc, Requires: requires, Deferred: deferred})
	return nil
}

func (p *planner) cycle(entry string) error {
	start := 0
	for i, name := range p.stack {
		if name == entry {
			start = i
			break
		}
	}
	path := append([]string{}, p.stack[start:]...)
	path = append(path, entry)
	return &CycleError{Entry: entry, Path: path}
}

func isDestructive(method string, destructive []string) bool {
	for _, m := range destructive {
		if strings.EqualFold(method, m) {
			return true
		}
	}
	return false
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' && len(pattern) > 1 {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}

	if pattern[0] == '*' {
		return strings.HasSuffix(name, pattern[1:])
	}

	if pattern[len(pattern)-1] == '*' {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}

	return name == pattern
}
