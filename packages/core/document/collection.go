package document

import (
	"errors"
	"fmt"
)

// Collection is the ordered set of documents taking part in one run. The
// order is discovery order.
type Collection struct {
	Documents []*Document
	Errors    []*LoadError

	byName map[string]*Document
}

// NewCollection indexes docs by testname. The first document to claim a
// name keeps it; later duplicates are recorded in Errors and left out.
func NewCollection(docs ...*Document) *Collection {
	c := &Collection{
		byName: make(map[string]*Document),
	}
	for _, doc := range docs {
		c.add(doc)
	}
	return c
}

// LoadCollection loads every path. Failures are recorded per document and
// never abort the remaining loads.
func LoadCollection(paths []string) *Collection {
	c := NewCollection()
	for _, path := range paths {
		doc, err := Load(path)
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) {
				c.Errors = append(c.Errors, le)
			} else {
				c.Errors = append(c.Errors, &LoadError{Path: path, Err: err})
			}
			continue
		}
		c.add(doc)
	}
	return c
}

func (c *Collection) add(doc *Document) {
	if first, ok := c.byName[doc.Name()]; ok {
		c.Errors = append(c.Errors, &LoadError{
			Path: doc.Path,
			Err:  fmt.Errorf("%w %q, already declared in %s", ErrDuplicateTestName, doc.Name(), first.Path),
		})
		return
	}
	c.byName[doc.Name()] = doc
	c.Documents = append(c.Documents, doc)
}

// Lookup returns the document declaring testname name.
func (c *Collection) Lookup(name string) (*Document, bool) {
	doc, ok := c.byName[name]
	return doc, ok
}

// Len returns the number of loaded documents.
func (c *Collection) Len() int {
	return len(c.Documents)
}
