package macro

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/abdul-hamid-achik/srt/packages/core/document"
)

// EnvName is the reserved macro name whose fields read process environment
// variables.
const EnvName = "env"

var (
	envPattern   = regexp.MustCompile(`\$\{env\}\.([A-Za-z_][0-9A-Za-z_]*)`)
	macroPattern = regexp.MustCompile(`\$\{([^}]*)\}(\.[A-Za-z_][0-9A-Za-z_]*)?`)
	wholeToken   = regexp.MustCompile(`^\$\{([^}]*)\}(\.[A-Za-z_][0-9A-Za-z_]*)?$`)
)

// ErrInvalidPayload is returned when substitution leaves a payload that no
// longer parses as JSON.
var ErrInvalidPayload = errors.New("payload is not valid JSON after substitution")

// WarnFunc receives diagnostics about unresolved macros.
type WarnFunc func(format string, args ...any)

// Engine rewrites macro tokens in strings and documents using a Store and
// the process environment.
type Engine struct {
	store     *Store
	warn      WarnFunc
	lookupEnv func(string) (string, bool)
}

type Option func(*Engine)

// WithWarnFunc sets the diagnostic hook. Without one, unresolved tokens are
// kept silently.
func WithWarnFunc(fn WarnFunc) Option {
	return func(e *Engine) {
		e.warn = fn
	}
}

// WithLookupEnv replaces os.LookupEnv for ${env}.NAME tokens.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(e *Engine) {
		e.lookupEnv = fn
	}
}

func NewEngine(store *Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine reads from.
func (e *Engine) Store() *Store {
	return e.store
}

// Silent returns a copy of the engine that reports nothing.
func (e *Engine) Silent() *Engine {
	c := *e
	c.warn = nil
	return &c
}

// String substitutes every macro token in s.
func (e *Engine) String(s string) string {
	return e.newPass().text(s, false)
}

// Value substitutes every string reachable from v. Keys, numbers, booleans
// and nulls are left as they are.
func (e *Engine) Value(v document.Value) document.Value {
	return e.newPass().value(v)
}

// JSON substitutes tokens inside JSON text. A string holding exactly one
// resolvable token is replaced by the macro's value with its JSON type.
func (e *Engine) JSON(data []byte) ([]byte, error) {
	return e.newPass().json(data)
}

// Unresolved returns the tokens of s that substitution would leave in place,
// in order of first appearance.
func (e *Engine) Unresolved(s string) []string {
	p := e.Silent().newPass()
	p.text(s, false)
	return p.missing
}

// Document returns a copy of doc with every field substituted. The payload
// goes through JSON so macro values land with their types.
func (e *Engine) Document(doc *document.Document) (*document.Document, error) {
	p := e.newPass()

	root := document.NewMapping()
	for _, key := range doc.Root.Keys() {
		v, _ := doc.Root.Get(key)
		if key != document.PayloadKey {
			root.Set(key, p.value(v))
			continue
		}

		data, err := v.MarshalJSON()
		if err != nil {
			return nil, err
		}
		out, err := p.json(data)
		if err != nil {
			return nil, fmt.Errorf("test %s: %w", doc.Name(), err)
		}
		payload, err := document.ParseValue(out)
		if err != nil {
			return nil, fmt.Errorf("test %s: %w", doc.Name(), err)
		}
		root.Set(key, payload)
	}

	return doc.WithRoot(root)
}

// pass is one substitution call. Each unresolved token is reported once per
// pass.
type pass struct {
	*Engine
	reported map[string]bool
	missing  []string
}

func (e *Engine) newPass() *pass {
	return &pass{Engine: e, reported: make(map[string]bool)}
}

func (p *pass) unresolved(token string) {
	if p.reported[token] {
		return
	}
	p.reported[token] = true
	p.missing = append(p.missing, token)
	if p.warn != nil {
		p.warn("macro %s is not defined", token)
	}
}

func (p *pass) value(v document.Value) document.Value {
	return document.Rewrite(v, func(s document.String) document.String {
		return document.String(p.text(string(s), false))
	})
}

// text runs the environment pass and then the store pass over s. With
// escape set, replacements are JSON-escaped for use inside JSON strings.
func (p *pass) text(s string, escape bool) string {
	if !strings.Contains(s, "${") {
		return s
	}

	quote := func(r string) string {
		if escape {
			return escapeJSON(r)
		}
		return r
	}

	s = envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[len("${env}."):]
		if val, ok := p.lookupEnv(name); ok {
			return quote(val)
		}
		p.unresolved(match)
		return match
	})

	return macroPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := macroPattern.FindStringSubmatch(match)
		name, field := m[1], m[2]

		if name == EnvName && field != "" {
			return match
		}
		if val, ok := p.store.Lookup(match); ok {
			return quote(Render(val))
		}
		if field != "" {
			if val, ok := p.store.Lookup("${" + name + "}"); ok {
				return quote(Render(val)) + field
			}
		}
		p.unresolved(match)
		return match
	})
}

func (p *pass) json(data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidPayload
	}

	masked, typed, err := p.maskTyped(data)
	if err != nil {
		return nil, err
	}
	if len(typed) == 1 && bytes.Equal(masked, typed[0].placeholder) {
		return typed[0].raw, nil
	}

	out := []byte(p.text(string(masked), true))
	for _, t := range typed {
		out = bytes.Replace(out, t.placeholder, t.raw, 1)
	}
	if !gjson.ValidBytes(out) {
		return nil, ErrInvalidPayload
	}
	return out, nil
}

type typedLeaf struct {
	placeholder []byte
	raw         []byte
}

// maskTyped swaps string leaves that hold exactly one stored token for
// placeholders. The caller lands the raw JSON of the stored values after the
// text pass, so tokens inside landed values are never substituted again.
func (p *pass) maskTyped(data []byte) ([]byte, []typedLeaf, error) {
	prefix := "srt-typed"
	for bytes.Contains(data, []byte(prefix)) {
		prefix += "~"
	}

	root := gjson.ParseBytes(data)
	if root.Type == gjson.String {
		raw, ok := p.typedToken(root.Str)
		if !ok {
			return data, nil, nil
		}
		ph := []byte(strconv.Quote(prefix + "-0"))
		return ph, []typedLeaf{{placeholder: ph, raw: raw}}, nil
	}

	var leaves []leaf
	collectLeaves(root, "", &leaves)

	var typed []typedLeaf
	for _, l := range leaves {
		raw, ok := p.typedToken(l.value)
		if !ok {
			continue
		}
		ph := []byte(strconv.Quote(fmt.Sprintf("%s-%d", prefix, len(typed))))
		var err error
		data, err = sjson.SetRawBytes(data, l.path, ph)
		if err != nil {
			return nil, nil, fmt.Errorf("setting %s: %w", l.path, err)
		}
		typed = append(typed, typedLeaf{placeholder: ph, raw: raw})
	}
	return data, typed, nil
}

func (p *pass) typedToken(s string) ([]byte, bool) {
	m := wholeToken.FindStringSubmatch(s)
	if m == nil || (m[1] == EnvName && m[2] != "") {
		return nil, false
	}
	val, ok := p.store.Lookup(s)
	if !ok {
		return nil, false
	}
	raw, err := MarshalValue(val)
	if err != nil {
		return nil, false
	}
	return raw, true
}

type leaf struct {
	path  string
	value string
}

// collectLeaves gathers string values that may contain tokens together with
// their sjson paths. Empty and numeric object keys are skipped; the path
// syntax cannot address them unambiguously and the text pass still covers
// them.
func collectLeaves(r gjson.Result, path string, out *[]leaf) {
	switch {
	case r.IsObject():
		r.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			if k == "" || isIndex(k) {
				return true
			}
			collectLeaves(value, joinPath(path, escapePathKey(k)), out)
			return true
		})
	case r.IsArray():
		i := 0
		r.ForEach(func(_, value gjson.Result) bool {
			collectLeaves(value, joinPath(path, strconv.Itoa(i)), out)
			i++
			return true
		})
	case r.Type == gjson.String:
		if strings.Contains(r.Str, "${") {
			*out = append(*out, leaf{path: path, value: r.Str})
		}
	}
}

func joinPath(base, part string) string {
	if base == "" {
		return part
	}
	return base + "." + part
}

func escapePathKey(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', ':':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isIndex(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func escapeJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	out := strings.TrimSuffix(buf.String(), "\n")
	return out[1 : len(out)-1]
}
