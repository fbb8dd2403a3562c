// Package coverage reports which operations of an OpenAPI description were
// exercised by a run.
package coverage

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/abdul-hamid-achik/srt/packages/core/runner"
	"github.com/abdul-hamid-achik/srt/packages/generate"
)

// Report is the coverage of one run.
type Report struct {
	TotalEndpoints   int                   `json:"totalEndpoints"`
	CoveredEndpoints int                   `json:"coveredEndpoints"`
	CoveragePercent  float64               `json:"coveragePercent"`
	ByTag            map[string]*TagReport `json:"byTag,omitempty"`
	Endpoints        []EndpointStatus      `json:"endpoints"`
	// Unmatched lists executed requests no operation describes.
	Unmatched []Request `json:"unmatched,omitempty"`
}

type TagReport struct {
	Tag              string  `json:"tag"`
	TotalEndpoints   int     `json:"totalEndpoints"`
	CoveredEndpoints int     `json:"coveredEndpoints"`
	CoveragePercent  float64 `json:"coveragePercent"`
}

type EndpointStatus struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	OperationID string   `json:"operationId,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Covered     bool     `json:"covered"`
	TestCount   int      `json:"testCount"`
}

// Endpoint is one operation of the description.
type Endpoint struct {
	Method      string
	Path        string
	OperationID string
	Tags        []string

	pattern *regexp.Regexp
}

// Request is a request that received a response during the run.
type Request struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

type Analyzer struct {
	endpoints []Endpoint
	basePath  string
}

func NewAnalyzer(endpoints ...Endpoint) *Analyzer {
	a := &Analyzer{}
	for _, e := range endpoints {
		a.add(e)
	}
	return a
}

var paramPattern = regexp.MustCompile(`\{[^}]+\}`)

func (a *Analyzer) add(e Endpoint) {
	// /users/{id} matches /users/<anything but a slash>
	parts := paramPattern.Split(e.Path, -1)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	e.Method = strings.ToUpper(e.Method)
	e.pattern = regexp.MustCompile("^" + strings.Join(parts, "[^/]+") + "/?$")
	a.endpoints = append(a.endpoints, e)
}

// LoadOpenAPI reads the operations of the description at path, a file or an
// http(s) URL. The path of the first server is stripped from requests.
func LoadOpenAPI(path string) (*Analyzer, error) {
	doc, err := generate.LoadSpec(path)
	if err != nil {
		return nil, err
	}
	return FromSpec(doc), nil
}

func FromSpec(doc *openapi3.T) *Analyzer {
	a := NewAnalyzer()
	if len(doc.Servers) > 0 {
		if u, err := url.Parse(doc.Servers[0].URL); err == nil {
			a.basePath = strings.TrimSuffix(u.Path, "/")
		}
	}
	if doc.Paths == nil {
		return a
	}

	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			a.add(Endpoint{
				Method:      method,
				Path:        path,
				OperationID: op.OperationID,
				Tags:        op.Tags,
			})
		}
	}
	return a
}

// RequestsOf returns the requests of result that got a response.
func RequestsOf(result *runner.RunResult) []Request {
	var reqs []Request
	for _, res := range result.Results {
		if res.Request == nil || res.Response == nil {
			continue
		}
		u, err := url.Parse(res.Request.URL)
		if err != nil {
			continue
		}
		reqs = append(reqs, Request{Method: res.Request.Method, Path: u.Path})
	}
	return reqs
}

// Analyze matches requests against the endpoints. A request counts for the
// first endpoint it matches; literal paths win over templated ones.
func (a *Analyzer) Analyze(requests []Request) *Report {
	endpoints := make([]Endpoint, len(a.endpoints))
	copy(endpoints, a.endpoints)
	sort.SliceStable(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}
		return endpoints[i].Method < endpoints[j].Method
	})

	counts := make([]int, len(endpoints))
	report := &Report{
		TotalEndpoints: len(endpoints),
		ByTag:          make(map[string]*TagReport),
	}

	for _, req := range requests {
		if i := a.match(endpoints, req); i >= 0 {
			counts[i]++
		} else {
			report.Unmatched = append(report.Unmatched, req)
		}
	}

	for i, e := range endpoints {
		covered := counts[i] > 0
		report.Endpoints = append(report.Endpoints, EndpointStatus{
			Method:      e.Method,
			Path:        e.Path,
			OperationID: e.OperationID,
			Tags:        e.Tags,
			Covered:     covered,
			TestCount:   counts[i],
		})
		if covered {
			report.CoveredEndpoints++
		}

		for _, tag := range e.Tags {
			tr, ok := report.ByTag[tag]
			if !ok {
				tr = &TagReport{Tag: tag}
				report.ByTag[tag] = tr
			}
			tr.TotalEndpoints++
			if covered {
				tr.CoveredEndpoints++
			}
		}
	}

	report.CoveragePercent = percent(report.CoveredEndpoints, report.TotalEndpoints)
	for _, tr := range report.ByTag {
		tr.CoveragePercent = percent(tr.CoveredEndpoints, tr.TotalEndpoints)
	}

	return report
}

func (a *Analyzer) match(endpoints []Endpoint, req Request) int {
	path := req.Path
	if a.basePath != "" && strings.HasPrefix(path, a.basePath) {
		path = strings.TrimPrefix(path, a.basePath)
		if path == "" {
			path = "/"
		}
	}
	method := strings.ToUpper(req.Method)

	templated := -1
	for i, e := range endpoints {
		if e.Method != method || !e.pattern.MatchString(path) {
			continue
		}
		if !strings.Contains(e.Path, "{") {
			return i
		}
		if templated < 0 {
			templated = i
		}
	}
	return templated
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// WriteConsole prints the report for humans.
func (r *Report) WriteConsole(w io.Writer, noColor bool) {
	if noColor {
		color.NoColor = true
	}

	fmt.Fprintf(w, "\nAPI Coverage: %d/%d operations (%.1f%%)\n",
		r.CoveredEndpoints, r.TotalEndpoints, r.CoveragePercent)

	if len(r.ByTag) > 0 {
		tags := make([]string, 0, len(r.ByTag))
		for tag := range r.ByTag {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			tr := r.ByTag[tag]
			fmt.Fprintf(w, "  %s: %d/%d (%.1f%%)\n", tag, tr.CoveredEndpoints, tr.TotalEndpoints, tr.CoveragePercent)
		}
	}

	for _, e := range r.Endpoints {
		mark := color.RedString("[ ]")
		if e.Covered {
			mark = color.GreenString("[x]")
		}
		fmt.Fprintf(w, "  %s %-6s %s", mark, e.Method, e.Path)
		if e.TestCount > 1 {
			fmt.Fprintf(w, " (x%d)", e.TestCount)
		}
		fmt.Fprintln(w)
	}

	for _, req := range r.Unmatched {
		fmt.Fprintf(w, "  %s %-6s %s\n", color.YellowString("[?]"), req.Method, req.Path)
	}
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
