package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/core/env"
	"github.com/abdul-hamid-achik/srt/packages/core/runner"
	"github.com/abdul-hamid-achik/srt/packages/http"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"explicit", withExitCode(ExitParseError, nil), ExitParseError},
		{"wrapped explicit", fmt.Errorf("run: %w", withExitCode(ExitNetworkError, errors.New("down"))), ExitNetworkError},
		{"cycle", &runner.CycleError{Entry: "a", Path: []string{"a", "b", "a"}}, ExitConfigError},
		{"load", &document.LoadError{Path: "x.json", Err: errors.New("bad")}, ExitParseError},
		{"invalid document", fmt.Errorf("%w: not an object", document.ErrInvalidDocument), ExitParseError},
		{"bad define", fmt.Errorf("%w: %q", env.ErrInvalidDefinition, "x"), ExitUsageError},
		{"network", &http.NetworkError{URL: "http://localhost:1", Err: errors.New("refused")}, ExitNetworkError},
		{"other", errors.New("boom"), ExitTestFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestResultError(t *testing.T) {
	netErr := &http.NetworkError{URL: "http://localhost:1", Err: errors.New("refused")}

	tests := []struct {
		name        string
		result      *runner.RunResult
		failedLoads int
		want        int
	}{
		{"all passed", &runner.RunResult{Passed: 2}, 0, ExitSuccess},
		{"passed with broken documents", &runner.RunResult{Passed: 2}, 1, ExitParseError},
		{"blocked", &runner.RunResult{Passed: 1, Blocked: 1}, 0, ExitTestFailure},
		{
			"assertion failure",
			&runner.RunResult{Failed: 1, Results: []*runner.RequestResult{{Name: "a"}}},
			0, ExitTestFailure,
		},
		{
			"unreachable",
			&runner.RunResult{Failed: 1, Skipped: 1, Results: []*runner.RequestResult{
				{Name: "a", Error: netErr},
				{Name: "b", Skipped: true},
			}},
			0, ExitNetworkError,
		},
		{
			"mixed failures",
			&runner.RunResult{Failed: 2, Results: []*runner.RequestResult{
				{Name: "a", Error: netErr},
				{Name: "b"},
			}},
			0, ExitTestFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(resultError(tt.result, tt.failedLoads)))
		})
	}
}

func TestUpper(t *testing.T) {
	assert.Equal(t, []string{"DELETE", "PURGE"}, upper([]string{"delete", " purge ", ""}))
	assert.Empty(t, upper(nil))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SRT_TEST_STRING", "value")
	t.Setenv("SRT_TEST_BOOL", "yes")
	t.Setenv("SRT_TEST_INT", "7")
	t.Setenv("SRT_TEST_FLOAT", "2.5")
	t.Setenv("SRT_TEST_BAD", "nope")

	assert.Equal(t, "value", getEnvString("SRT_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnvString("SRT_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("SRT_TEST_BOOL", false))
	assert.False(t, getEnvBool("SRT_TEST_BAD", true))
	assert.Equal(t, 7, getEnvInt("SRT_TEST_INT", 0))
	assert.Equal(t, 3, getEnvInt("SRT_TEST_BAD", 3))
	assert.Equal(t, 2.5, getEnvFloat("SRT_TEST_FLOAT", 0))
	assert.Equal(t, 1.0, getEnvFloat("SRT_TEST_BAD", 1))
}

func TestNewFormatter(t *testing.T) {
	for _, format := range []string{"", "console", "JSON", "junit", "tap"} {
		f, err := newFormatter(format, &bytes.Buffer{}, false, true)
		require.NoError(t, err, format)
		assert.NotNil(t, f)
	}

	_, err := newFormatter("html", &bytes.Buffer{}, false, true)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestWatchDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "users"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "x"), 0755))
	file := filepath.Join(root, "users", "login.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0644))

	assert.Equal(t, []string{root, filepath.Join(root, "users")}, watchDirs([]string{root}))
	assert.Equal(t, []string{filepath.Join(root, "users")}, watchDirs([]string{file, file}))
	assert.Empty(t, watchDirs([]string{filepath.Join(root, "missing")}))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitThenValidate(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "srt project initialized!")
	assert.FileExists(t, filepath.Join(dir, "srt.yaml"))

	_, err = execute(t, "init", dir)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))

	out, err = execute(t, "validate", filepath.Join(dir, "tests"))
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+filepath.Join(dir, "tests", "login.json")+" (login)")
	assert.Contains(t, out, "(get_profile)")
	assert.Contains(t, out, "(delete_session)")
}

func TestRun_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/login":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"token":"abc"}`)
		case "/profile":
			if r.Header.Get("Authorization") != "Bearer abc" {
				w.WriteHeader(nethttp.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"user":"alice"}`)
		default:
			w.WriteHeader(nethttp.StatusNotFound)
		}
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	// profile sorts before login, so the order comes from the reference.
	write("a_profile.json", `{
  "testname": "profile",
  "options": {"host": "${host}", "port": "${port}", "path": "/profile",
              "headers": {"Authorization": "Bearer ${login}.token"}},
  "status": 200,
  "responseRegexp": "alice"
}`)
	write("b_login.json", `{
  "testname": "login",
  "options": {"host": "${host}", "port": "${port}", "path": "/login", "method": "POST"},
  "status": 200,
  "saveResponse": true
}`)

	out, err := execute(t, "run", dir, "-o", "json",
		"-D", "host="+u.Hostname(),
		"-D", "port="+u.Port(),
	)
	require.NoError(t, err, out)

	var report struct {
		Summary struct {
			Total  int `json:"total"`
			Passed int `json:"passed"`
		} `json:"summary"`
		Tests []struct {
			Name string `json:"name"`
		} `json:"tests"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Passed)
	require.Len(t, report.Tests, 2)
	assert.Equal(t, "login", report.Tests[0].Name)
	assert.Equal(t, "profile", report.Tests[1].Name)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
	versionShort = false

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "srt "+version+" (built "+buildTime)
}

func TestValidate_DefinedMacroWithSuffix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.json"), []byte(`{
  "testname": "report",
  "options": {"host": "localhost", "path": "/files/${tag}.json"},
  "status": 200
}`), 0644))

	out, err := execute(t, "validate", dir, "-D", "tag=v1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Valid: "+filepath.Join(dir, "report.json")+" (report)")
}
