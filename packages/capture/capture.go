package capture

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/srt/packages/builtin"
	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/core/macro"
)

// ParseError reports a response body that is not JSON. Capture is skipped
// for that response; the test outcome is unaffected.
type ParseError struct {
	Test string
	Body string
}

func (e *ParseError) Error() string {
	body := e.Body
	if len(body) > 64 {
		body = body[:64] + "..."
	}
	return fmt.Sprintf("response of %s is not valid JSON: %q", e.Test, body)
}

// Capturer registers values from requests and responses as macros.
type Capturer struct {
	store *macro.Store
	funcs *builtin.Registry
	warn  macro.WarnFunc
}

type Option func(*Capturer)

// WithWarnFunc receives failed derivations.
func WithWarnFunc(fn macro.WarnFunc) Option {
	return func(c *Capturer) {
		c.warn = fn
	}
}

func New(store *macro.Store, funcs *builtin.Registry, opts ...Option) *Capturer {
	if funcs == nil {
		funcs = builtin.NewRegistry()
	}
	c := &Capturer{
		store: store,
		funcs: funcs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Capturer) warnf(format string, args ...any) {
	if c.warn != nil {
		c.warn(format, args...)
	}
}

// Response registers ${prefix}.key for every top-level key of body, then
// evaluates the postResponse definitions of defs against the parsed body.
// It returns the registered tokens and their values.
func (c *Capturer) Response(prefix string, body []byte, defs []document.MacroDef) (map[string]any, error) {
	if !gjson.ValidBytes(body) {
		return nil, &ParseError{Test: prefix, Body: string(body)}
	}

	parsed := gjson.ParseBytes(body)
	captured := make(map[string]any)

	if parsed.IsObject() {
		parsed.ForEach(func(key, value gjson.Result) bool {
			token := c.store.Add(macro.Token(prefix, key.String()), builtin.FromJSON(value))
			captured[token] = builtin.FromJSON(value)
			return true
		})
	}

	c.derive(prefix, parsed, defs, document.PhasePostResponse, captured)
	return captured, nil
}

// Request evaluates the preRequest definitions of defs against the outgoing
// request document and registers each result as ${prefix}.name.
func (c *Capturer) Request(prefix string, request []byte, defs []document.MacroDef) map[string]any {
	captured := make(map[string]any)
	c.derive(prefix, gjson.ParseBytes(request), defs, document.PhasePreRequest, captured)
	return captured
}

func (c *Capturer) derive(prefix string, input gjson.Result, defs []document.MacroDef, phase document.Phase, captured map[string]any) {
	for _, def := range defs {
		if def.Phase != phase {
			continue
		}
		v, err := c.funcs.Eval(def.Definition, input)
		if err != nil {
			c.warnf("macro %s of %s: %v", def.Name, prefix, err)
			continue
		}
		token := c.store.Add(macro.Token(prefix, def.Name), v)
		captured[token] = v
	}
}
