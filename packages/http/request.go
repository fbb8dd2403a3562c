package http

import (
	"net"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/srt/packages/core/document"
)

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// HasHeader reports whether key is set, ignoring case.
func (r *Request) HasHeader(key string) bool {
	for k := range r.Headers {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

// BuildURL joins the request parameters of a document into a URL.
func BuildURL(scheme, host, port, path string) string {
	if port != "" {
		host = net.JoinHostPort(host, port)
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + host + path
}

// FromDocument builds the request described by an already substituted
// document. A payload is sent as JSON.
func FromDocument(doc *document.Document) (*Request, error) {
	tc := doc.Test
	r := NewRequest(doc.Method(), BuildURL(tc.Scheme, tc.Options.Host, string(tc.Options.Port), tc.Options.Path))

	for k, v := range tc.Options.Headers {
		r.SetHeader(k, string(v))
	}

	if tc.HasPayload() {
		body, err := tc.Payload.MarshalJSON()
		if err != nil {
			return nil, err
		}
		r.SetBody(body)
		if !r.HasHeader("Content-Type") {
			r.SetHeader("Content-Type", "application/json")
		}
	}

	if tc.TimeoutMs > 0 {
		r.SetTimeout(time.Duration(tc.TimeoutMs) * time.Millisecond)
	}

	return r, nil
}
