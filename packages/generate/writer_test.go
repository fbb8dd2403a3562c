package generate

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPrompter struct {
	decisions []Decision
	asked     []string
}

func (p *scriptedPrompter) Ask(path string) (Decision, error) {
	p.asked = append(p.asked, path)
	if len(p.decisions) == 0 {
		return Decision{}, errors.New("unexpected prompt")
	}
	d := p.decisions[0]
	p.decisions = p.decisions[1:]
	return d, nil
}

func sampleTest(name string) *Test {
	return &Test{
		TestName: name,
		Status:   200,
		Scheme:   "http",
		Options:  TestOptions{Host: "localhost", Path: "/" + name, Method: "GET"},
	}
}

func TestWriter_NewFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer
	w := NewWriter(dir, WithOutput(&out))

	ok, err := w.Write(sampleTest("GET_a_200"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, "GET_a_200.json"))
	assert.Contains(t, out.String(), "GET_a_200.json")
}

func TestWriter_ExistingFile(t *testing.T) {
	tests := []struct {
		name      string
		decision  Decision
		written   bool
		err       error
		renamedTo string
	}{
		{name: "overwrite", decision: Decision{Action: ActionOverwrite}, written: true},
		{name: "skip", decision: Decision{Action: ActionSkip}},
		{name: "quit", decision: Decision{Action: ActionQuit}, err: ErrQuit},
		{name: "rename", decision: Decision{Action: ActionRename, NewName: "old.json"}, written: true, renamedTo: "old.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "GET_a_200.json")
			require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

			p := &scriptedPrompter{decisions: []Decision{tt.decision}}
			w := NewWriter(dir, WithPrompter(p), WithQuiet(true))

			ok, err := w.Write(sampleTest("GET_a_200"))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.written, ok)
			assert.Equal(t, []string{path}, p.asked)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, !tt.written, string(data) == "original")

			if tt.renamedTo != "" {
				old, err := os.ReadFile(filepath.Join(dir, tt.renamedTo))
				require.NoError(t, err)
				assert.Equal(t, "original", string(old))
			}
		})
	}
}

func TestWriter_OverwriteAll(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte("x"), 0644))
	}

	p := &scriptedPrompter{decisions: []Decision{{Action: ActionOverwriteAll}}}
	w := NewWriter(dir, WithPrompter(p), WithQuiet(true))

	n, err := w.WriteAll([]*Test{sampleTest("a"), sampleTest("b"), sampleTest("c")})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, p.asked, 1)
}

func TestWriter_OverwriteFlagAndDefaultSkip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("x"), 0644))

	n, err := NewWriter(dir, WithQuiet(true)).WriteAll([]*Test{sampleTest("a")})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = NewWriter(dir, WithQuiet(true), WithOverwrite(true)).WriteAll([]*Test{sampleTest("a")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTerminalPrompter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Decision
		err   error
	}{
		{name: "default overwrite", input: "\n", want: Decision{Action: ActionOverwrite}},
		{name: "overwrite all", input: "O\n", want: Decision{Action: ActionOverwriteAll}},
		{name: "skip", input: "s\n", want: Decision{Action: ActionSkip}},
		{name: "quit", input: "q\n", want: Decision{Action: ActionQuit}},
		{name: "unknown answer asks again", input: "x\ns\n", want: Decision{Action: ActionSkip}},
		{name: "rename", input: "r\nold.json\n", want: Decision{Action: ActionRename, NewName: "old.json"}},
		{name: "end of input", input: "", err: ErrQuit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewTerminalPrompter(strings.NewReader(tt.input), &out)

			got, err := p.Ask("a.json")
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "a.json already exists.")
		})
	}
}

func TestNewPrompter_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, SkipPrompter{}, NewPrompter(f, &bytes.Buffer{}))
}
