package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidDocument marks a file that is not a valid test document.
	ErrInvalidDocument = errors.New("invalid test document")
	// ErrDuplicateTestName marks a document whose testname is already taken.
	ErrDuplicateTestName = errors.New("duplicate testname")
)

// LoadError reports a document that could not be loaded. It never stops the
// other documents of a collection from loading.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ignoredFiles are JSON files that live next to test documents but are not tests.
var ignoredFiles = map[string]bool{
	"package.json":      true,
	"package-lock.json": true,
	"srt.config.json":   true,
	".srt.config.json":  true,
	".srtrc.json":       true,
	"tsconfig.json":     true,
}

// Load reads and decodes a single document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	doc, err := Parse(path, data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return doc, nil
}

// Parse validates and decodes raw JSON. path only names the document.
func Parse(path string, data []byte) (*Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	v, err := ParseValue(data)
	if err != nil {
		return nil, err
	}

	root, ok := v.(*Mapping)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is a %s", ErrInvalidDocument, v.Kind())
	}
	return New(path, root)
}

// Discover expands files and directories into the list of candidate test
// documents, in lexical order. Hidden directories and node_modules are skipped.
func Discover(args []string, exclude []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	add := func(path string) {
		if seen[path] || !IsDocumentFile(path) || excluded(path, exclude) {
			return
		}
		seen[path] = true
		files = append(files, path)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			add(arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != arg && (strings.HasPrefix(name, ".") || name == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// IsDocumentFile reports whether path looks like a test document.
func IsDocumentFile(path string) bool {
	if filepath.Ext(path) != ".json" {
		return false
	}
	return !ignoredFiles[filepath.Base(path)]
}

func excluded(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
