package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/abdul-hamid-achik/srt/packages/core/macro"
)

// ExtensionKey is the response extension that turns an OpenAPI response
// into a test. Responses without it are ignored.
const ExtensionKey = "x-srt"

const jsonContentType = "application/json"

// Test is a generated test document. Field order is the order written.
type Test struct {
	TestName       string      `json:"testname"`
	Description    string      `json:"description"`
	Expectation    string      `json:"expectation"`
	Status         int         `json:"status"`
	ResponseRegexp string      `json:"responseRegexp"`
	Scheme         string      `json:"scheme"`
	Options        TestOptions `json:"options"`
	Payload        any         `json:"payload,omitempty"`
	SaveResponse   *bool       `json:"saveResponse,omitempty"`
}

type TestOptions struct {
	Host    string            `json:"host"`
	Port    string            `json:"port,omitempty"`
	Path    string            `json:"path"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Filename is the file the test is written to.
func (t *Test) Filename() string {
	return t.TestName + ".json"
}

// Marshal renders the test as indented JSON.
func (t *Test) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// extension is the content of an x-srt object.
type extension struct {
	SkipTest       bool              `json:"skip-test"`
	Description    *string           `json:"description"`
	Expectation    *string           `json:"expectation"`
	ResponseRegexp *string           `json:"responseRegexp"`
	Scheme         *string           `json:"scheme"`
	Options        *extensionOptions `json:"options"`
	Payload        json.RawMessage   `json:"payload"`
	SaveResponse   *bool             `json:"saveResponse"`
	PathSubst      map[string]string `json:"path-subst"`
	PathSuffix     string            `json:"path-suffix"`
}

type extensionOptions struct {
	Host    *string           `json:"host"`
	Port    json.RawMessage   `json:"port"`
	Headers map[string]string `json:"headers"`
}

type server struct {
	scheme string
	host   string
	port   string
	prefix string
}

// Converter turns OpenAPI 3 operations into test documents.
type Converter struct {
	serverIndex int
	warn        macro.WarnFunc
}

type Option func(*Converter)

// WithServer selects the entry of the servers array that supplies scheme,
// host, port and path prefix.
func WithServer(index int) Option {
	return func(c *Converter) {
		c.serverIndex = index
	}
}

func WithWarnFunc(fn macro.WarnFunc) Option {
	return func(c *Converter) {
		c.warn = fn
	}
}

func NewConverter(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Converter) warnf(format string, args ...any) {
	if c.warn != nil {
		c.warn(format, args...)
	}
}

// ConvertFile loads an OpenAPI file or URL and converts it.
func (c *Converter) ConvertFile(path string) ([]*Test, error) {
	doc, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	return c.Convert(doc)
}

// LoadSpec loads an OpenAPI 3 description from a file or an http(s) URL.
func LoadSpec(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	var doc *openapi3.T
	var err error
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		var u *url.URL
		u, err = url.Parse(path)
		if err == nil {
			doc, err = loader.LoadFromURI(u)
		}
	} else {
		doc, err = loader.LoadFromFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return doc, nil
}

// Convert generates one test per response carrying an x-srt extension, and
// per request example for 200 and 204 responses. Tests come out sorted by
// path, method and status.
func (c *Converter) Convert(doc *openapi3.T) ([]*Test, error) {
	if err := doc.Validate(context.Background()); err != nil {
		// some specs have minor validation issues
		c.warnf("OpenAPI spec validation: %v", err)
	}

	srv, err := c.server(doc)
	if err != nil {
		return nil, err
	}

	var tests []*Test
	if doc.Paths == nil {
		return tests, nil
	}

	paths := make([]string, 0, doc.Paths.Len())
	for path := range doc.Paths.Map() {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		item := doc.Paths.Value(path)
		if item == nil {
			continue
		}

		operations := item.Operations()
		methods := make([]string, 0, len(operations))
		for method := range operations {
			methods = append(methods, method)
		}
		sort.Strings(methods)

		for _, method := range methods {
			generated, err := c.convertOperation(srv, path, strings.ToUpper(method), operations[method])
			if err != nil {
				return nil, err
			}
			tests = append(tests, generated...)
		}
	}

	return tests, nil
}

func (c *Converter) server(doc *openapi3.T) (server, error) {
	raw := "http://localhost:3000"
	if len(doc.Servers) > 0 {
		if c.serverIndex < 0 || c.serverIndex >= len(doc.Servers) {
			return server{}, fmt.Errorf("server index %d out of range, spec has %d servers", c.serverIndex, len(doc.Servers))
		}
		raw = doc.Servers[c.serverIndex].URL
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return server{}, fmt.Errorf("server URL %q is not an absolute http(s) URL", raw)
	}

	return server{
		scheme: u.Scheme,
		host:   u.Hostname(),
		port:   u.Port(),
		prefix: strings.TrimSuffix(u.Path, "/"),
	}, nil
}

func (c *Converter) convertOperation(srv server, path, method string, op *openapi3.Operation) ([]*Test, error) {
	if op.Responses == nil {
		return nil, nil
	}

	responses := op.Responses.Map()
	codes := make([]string, 0, len(responses))
	for code := range responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	examples := requestExamples(op)

	var tests []*Test
	for _, code := range codes {
		ref := responses[code]
		if ref == nil || ref.Value == nil {
			continue
		}

		ext, ok, err := readExtension(ref.Value.Extensions)
		if err != nil {
			return nil, fmt.Errorf("%s %s %s: %w", method, path, code, err)
		}
		if !ok || ext.SkipTest {
			continue
		}

		status, err := strconv.Atoi(code)
		if err != nil {
			c.warnf("%s %s: response %q is not a status code, skipped", method, path, code)
			continue
		}

		for _, ex := range examples {
			tests = append(tests, c.createTest(srv, path, method, status, ref.Value, ext, ex))

			// a non-success response needs only one test
			if status != 200 && status != 204 {
				break
			}
		}
	}

	return tests, nil
}

type example struct {
	name  string
	value any
}

// requestExamples returns the named JSON request examples of op, sorted by
// name. Without named examples it returns a single unnamed one, built from
// the inline example or the schema, or without payload when op has no body.
func requestExamples(op *openapi3.Operation) []example {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return []example{{}}
	}

	media := op.RequestBody.Value.Content.Get(jsonContentType)
	if media == nil {
		return []example{{}}
	}

	if len(media.Examples) > 0 {
		names := make([]string, 0, len(media.Examples))
		for name := range media.Examples {
			names = append(names, name)
		}
		sort.Strings(names)

		out := make([]example, 0, len(names))
		for _, name := range names {
			ex := example{name: name}
			if ref := media.Examples[name]; ref != nil && ref.Value != nil {
				ex.value = ref.Value.Value
			}
			out = append(out, ex)
		}
		return out
	}

	if media.Example != nil {
		return []example{{value: media.Example}}
	}
	if media.Schema != nil && media.Schema.Value != nil {
		return []example{{value: exampleFromSchema(media.Schema.Value, 0)}}
	}
	return []example{{}}
}

func readExtension(extensions map[string]any) (*extension, bool, error) {
	raw, ok := extensions[ExtensionKey]
	if !ok || raw == nil {
		return nil, false, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("invalid %s extension: %w", ExtensionKey, err)
	}
	ext := &extension{}
	if err := json.Unmarshal(data, ext); err != nil {
		return nil, false, fmt.Errorf("invalid %s extension: %w", ExtensionKey, err)
	}
	return ext, true, nil
}

func (c *Converter) createTest(srv server, path, method string, status int, resp *openapi3.Response, ext *extension, ex example) *Test {
	success := status == 200 || status == 204

	name := method + "_" + firstSegment(path) + "_" + strconv.Itoa(status)
	if ex.name != "" && success {
		name += "_" + ex.name
	}

	t := &Test{
		TestName:       name,
		Description:    orDefault(ext.Description, method+" "+srv.prefix+path),
		Expectation:    orDefault(ext.Expectation, "tbd"),
		Status:         status,
		ResponseRegexp: orDefault(ext.ResponseRegexp, ".*"),
		Scheme:         orDefault(ext.Scheme, srv.scheme),
		Options: TestOptions{
			Host:   srv.host,
			Port:   srv.port,
			Path:   testPath(srv.prefix, path, ext),
			Method: method,
		},
	}

	if opts := ext.Options; opts != nil {
		if opts.Host != nil {
			t.Options.Host = *opts.Host
		}
		if port := rawText(opts.Port); port != "" {
			t.Options.Port = port
		}
	}

	headers := make(map[string]string)
	switch {
	case len(ext.Payload) > 0:
		t.Payload = ext.Payload
		headers["Content-Type"] = jsonContentType
	case ex.value != nil:
		t.Payload = ex.value
		headers["Content-Type"] = jsonContentType
	}

	if status == 200 {
		headers["accept"] = jsonContentType
		switch {
		case ext.SaveResponse != nil:
			t.SaveResponse = ext.SaveResponse
		case len(resp.Links) > 0:
			save := true
			t.SaveResponse = &save
		}
	}

	if ext.Options != nil {
		for k, v := range ext.Options.Headers {
			headers[k] = v
		}
	}
	if len(headers) > 0 {
		t.Options.Headers = headers
	}

	return t
}

// testPath applies the path-subst replacements, in key order, and appends
// path-suffix.
func testPath(prefix, path string, ext *extension) string {
	keys := make([]string, 0, len(ext.PathSubst))
	for k := range ext.PathSubst {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path = strings.Replace(path, k, ext.PathSubst[k], 1)
	}
	return prefix + path + ext.PathSuffix
}

func firstSegment(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func orDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

// rawText returns a JSON string's content, or any other JSON value as is.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
