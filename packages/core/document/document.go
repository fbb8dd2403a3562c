package document

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// PayloadKey is the document field whose content is substituted as JSON text.
const PayloadKey = "payload"

const (
	// DefaultScheme is used when a document has no scheme.
	DefaultScheme = "http"
	// DefaultHost is used when a document's options carry no host.
	DefaultHost = "localhost"
	// DefaultMethod is used when a document's options carry no method.
	DefaultMethod = "GET"
	// DefaultTimeoutMs is the per-test timeout when a document sets none.
	DefaultTimeoutMs = 2000
)

// Phase says when a local macro definition is evaluated.
type Phase string

const (
	PhasePreRequest   Phase = "preRequest"
	PhasePostResponse Phase = "postResponse"
)

// MacroDef is a locally scoped macro definition. Definition names a
// derivation from the host's registry, e.g. "path(data.id)".
type MacroDef struct {
	Name       string `json:"name"`
	Phase      Phase  `json:"definitionPhase"`
	Definition string `json:"definition"`
}

// Text is a scalar that may be written as a JSON string, number or boolean.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.(type) {
	case float64, bool:
		*t = Text(strings.TrimSpace(string(data)))
		return nil
	case nil:
		*t = ""
		return nil
	}
	return fmt.Errorf("expected a scalar, got %s", string(data))
}

// StatusCode accepts a number or a numeric string.
type StatusCode int

func (s *StatusCode) UnmarshalJSON(data []byte) error {
	var text Text
	if err := text.UnmarshalJSON(data); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(text)))
	if err != nil {
		// resolved once macros are substituted
		if strings.Contains(string(text), "${") {
			*s = 0
			return nil
		}
		return fmt.Errorf("invalid status %q", string(text))
	}
	*s = StatusCode(n)
	return nil
}

// Options are the request parameters of a test.
type Options struct {
	Host    string          `json:"host,omitempty"`
	Port    Text            `json:"port,omitempty"`
	Path    string          `json:"path"`
	Method  string          `json:"method,omitempty"`
	Headers map[string]Text `json:"headers,omitempty"`
}

// TestCase is the decoded view of a document's root mapping.
type TestCase struct {
	TestName       string     `json:"testname"`
	Description    string     `json:"description,omitempty"`
	Expectation    string     `json:"expectation,omitempty"`
	Scheme         string     `json:"scheme,omitempty"`
	Options        Options    `json:"options"`
	Status         StatusCode `json:"status"`
	ResponseRegexp string     `json:"responseRegexp,omitempty"`
	LegacyRegexp   string     `json:"returnRegEx,omitempty"`
	SaveResponse   bool       `json:"saveResponse,omitempty"`
	MacroDefs      []MacroDef `json:"macroDef,omitempty"`
	Prerequisites  []string   `json:"prerequisites,omitempty"`
	TimeoutMs      int        `json:"timeout,omitempty"`

	// Payload is the raw payload value, nil when the document has none.
	Payload Value `json:"-"`
}

// HasPayload reports whether the document carries a request body.
func (tc *TestCase) HasPayload() bool {
	return tc.Payload != nil
}

// MacroDefsFor returns the local definitions evaluated in the given phase.
func (tc *TestCase) MacroDefsFor(phase Phase) []MacroDef {
	var defs []MacroDef
	for _, d := range tc.MacroDefs {
		if d.Phase == phase {
			defs = append(defs, d)
		}
	}
	return defs
}

// Document is one test description loaded from disk.
type Document struct {
	Path     string
	Root     *Mapping
	Test     *TestCase
	Warnings []string
}

// Name returns the document's testname.
func (d *Document) Name() string {
	return d.Test.TestName
}

// Method returns the upper-cased request method.
func (d *Document) Method() string {
	return d.Test.Options.Method
}

// WithRoot returns a copy of d decoded from a new root mapping.
func (d *Document) WithRoot(root *Mapping) (*Document, error) {
	return New(d.Path, root)
}

// New decodes root into a document. path is used for the default testname
// and error messages.
func New(path string, root *Mapping) (*Document, error) {
	data, err := root.MarshalJSON()
	if err != nil {
		return nil, err
	}

	tc := &TestCase{}
	if err := json.Unmarshal(data, tc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	doc := &Document{
		Path: path,
		Root: root,
		Test: tc,
	}

	if tc.TestName == "" && path != "" {
		tc.TestName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if tc.TestName == "" {
		return nil, fmt.Errorf("%w: missing testname", ErrInvalidDocument)
	}
	if tc.Scheme == "" {
		tc.Scheme = DefaultScheme
	}
	if tc.Options.Host == "" {
		tc.Options.Host = DefaultHost
	}
	if tc.Options.Method == "" {
		tc.Options.Method = DefaultMethod
	}
	tc.Options.Method = strings.ToUpper(tc.Options.Method)
	if tc.TimeoutMs <= 0 {
		tc.TimeoutMs = DefaultTimeoutMs
	}

	if tc.ResponseRegexp == "" && tc.LegacyRegexp != "" {
		tc.ResponseRegexp = tc.LegacyRegexp
		doc.Warnings = append(doc.Warnings, "returnRegEx is deprecated, use responseRegexp")
	}

	for _, def := range tc.MacroDefs {
		if def.Phase != PhasePreRequest && def.Phase != PhasePostResponse {
			return nil, fmt.Errorf("%w: macro %q has unknown definitionPhase %q", ErrInvalidDocument, def.Name, def.Phase)
		}
	}

	if payload, ok := root.Get(PayloadKey); ok {
		tc.Payload = payload
	}

	return doc, nil
}
