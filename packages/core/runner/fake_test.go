package runner

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/http"
)

type reply struct {
	status int
	body   string
}

// fakeExecutor answers by request path and records every call.
type fakeExecutor struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []*http.Request
}

func newFakeExecutor(replies map[string]reply) *fakeExecutor {
	return &fakeExecutor{replies: replies}
}

func (f *fakeExecutor) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	rep, ok := f.replies[req.Method+" "+u.Path]
	if !ok {
		rep = reply{status: 404, body: `{"error":"not found"}`}
	}
	return &http.Response{
		StatusCode: rep.status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(rep.body),
		Duration:   time.Millisecond,
	}, nil
}

func (f *fakeExecutor) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		u, _ := url.Parse(c.URL)
		out[i] = c.Method + " " + u.Path
	}
	return out
}

func doc(t *testing.T, name, data string) *document.Document {
	t.Helper()
	d, err := document.Parse(name+".json", []byte(strings.TrimSpace(data)))
	require.NoError(t, err)
	return d
}

func collection(docs ...*document.Document) *document.Collection {
	return document.NewCollection(docs...)
}
