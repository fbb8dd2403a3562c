package http

import (
	"mime"
	"strings"
	"time"
)

// Response is a fully read HTTP response. Headers hold the first value of
// each header under its canonical name.
type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// Snippet returns at most n bytes of the body, marked when cut.
func (r *Response) Snippet(n int) string {
	if len(r.Body) <= n {
		return string(r.Body)
	}
	return string(r.Body[:n]) + "..."
}

// Header looks key up ignoring case.
func (r *Response) Header(key string) string {
	if v, ok := r.Headers[key]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// IsJSON reports whether the body is declared as JSON, including
// structured suffixes such as application/problem+json.
func (r *Response) IsJSON() bool {
	mediaType, _, err := mime.ParseMediaType(r.Header("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// IsSuccess reports a 2xx status. Only successful responses are captured.
func (r *Response) IsSuccess() bool {
	return r.StatusCode/100 == 2
}
