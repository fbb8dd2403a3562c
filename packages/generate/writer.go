package generate

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// ErrQuit is returned when the user chooses to stop generating.
var ErrQuit = errors.New("generation stopped by user")

type Action int

const (
	ActionOverwrite Action = iota
	ActionOverwriteAll
	ActionRename
	ActionSkip
	ActionQuit
)

// Decision is the answer to an existing-file prompt. NewName is set for
// ActionRename and receives the existing file.
type Decision struct {
	Action  Action
	NewName string
}

// Prompter decides what happens to a file that already exists.
type Prompter interface {
	Ask(path string) (Decision, error)
}

// SkipPrompter never overwrites. It is used when no terminal is attached.
type SkipPrompter struct{}

func (SkipPrompter) Ask(string) (Decision, error) {
	return Decision{Action: ActionSkip}, nil
}

// TerminalPrompter asks on out and reads the answer from in.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// NewPrompter returns a TerminalPrompter when in is a terminal and a
// SkipPrompter otherwise.
func NewPrompter(in *os.File, out io.Writer) Prompter {
	if in != nil && term.IsTerminal(int(in.Fd())) {
		return NewTerminalPrompter(in, out)
	}
	return SkipPrompter{}
}

func (p *TerminalPrompter) Ask(path string) (Decision, error) {
	for {
		fmt.Fprintf(p.out, "%s already exists. overwrite / Overwrite all / rename / skip / quit? (oOrsq => o) > ", path)
		answer, err := p.readLine()
		if err != nil {
			return Decision{}, err
		}

		switch answer {
		case "", "o":
			return Decision{Action: ActionOverwrite}, nil
		case "O":
			return Decision{Action: ActionOverwriteAll}, nil
		case "s":
			return Decision{Action: ActionSkip}, nil
		case "q":
			return Decision{Action: ActionQuit}, nil
		case "r":
			fmt.Fprintf(p.out, "Enter new name for original file %s (If there is a file with the new name, it will be deleted) > ", path)
			name, err := p.readLine()
			if err != nil {
				return Decision{}, err
			}
			if name == "" {
				continue
			}
			return Decision{Action: ActionRename, NewName: name}, nil
		}
	}
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err == io.EOF && line == "" {
		return "", ErrQuit
	}
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Writer writes generated tests into a directory, applying the overwrite
// policy to files that already exist.
type Writer struct {
	dir          string
	overwriteAll bool
	quiet        bool
	prompter     Prompter
	out          io.Writer
}

type WriterOption func(*Writer)

// WithOverwrite replaces existing files without asking.
func WithOverwrite(overwrite bool) WriterOption {
	return func(w *Writer) {
		w.overwriteAll = overwrite
	}
}

func WithQuiet(quiet bool) WriterOption {
	return func(w *Writer) {
		w.quiet = quiet
	}
}

func WithPrompter(p Prompter) WriterOption {
	return func(w *Writer) {
		w.prompter = p
	}
}

func WithOutput(out io.Writer) WriterOption {
	return func(w *Writer) {
		w.out = out
	}
}

func NewWriter(dir string, opts ...WriterOption) *Writer {
	w := &Writer{
		dir:      dir,
		prompter: SkipPrompter{},
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) infof(format string, args ...any) {
	if !w.quiet {
		fmt.Fprintf(w.out, format+"\n", args...)
	}
}

// Write stores test and reports whether the file was written. ErrQuit stops
// the whole generation.
func (w *Writer) Write(test *Test) (bool, error) {
	data, err := test.Marshal()
	if err != nil {
		return false, err
	}

	path := filepath.Join(w.dir, test.Filename())
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if exists && !w.overwriteAll {
		decision, err := w.prompter.Ask(path)
		if err != nil {
			return false, err
		}

		switch decision.Action {
		case ActionQuit:
			return false, ErrQuit
		case ActionSkip:
			w.infof("%s existing file %s", color.YellowString("Not over-writing"), path)
			return false, nil
		case ActionOverwriteAll:
			w.overwriteAll = true
		case ActionRename:
			target := decision.NewName
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(path), target)
			}
			w.infof("renaming existing %s to %s", path, target)
			if err := os.Rename(path, target); err != nil {
				return false, fmt.Errorf("cannot rename %s: %w", path, err)
			}
			exists = false
		}
	}

	if exists {
		w.infof("%s existing file %s", color.CyanString("Over-writing"), path)
	} else {
		w.infof("%s %s", color.GreenString("Created"), path)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, err
	}
	return true, nil
}

// WriteAll writes every test and returns how many files were written.
func (w *Writer) WriteAll(tests []*Test) (int, error) {
	written := 0
	for _, t := range tests {
		ok, err := w.Write(t)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}
