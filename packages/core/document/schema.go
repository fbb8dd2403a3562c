package document

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// schemaJSON describes the accepted shape of a test document.
const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["options", "status"],
  "properties": {
    "testname": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "expectation": {"type": "string"},
    "scheme": {"type": "string"},
    "options": {
      "type": "object",
      "required": ["path"],
      "properties": {
        "host": {"type": "string"},
        "port": {"type": ["string", "integer"]},
        "path": {"type": "string"},
        "method": {"type": "string"},
        "headers": {
          "type": "object",
          "additionalProperties": {"type": ["string", "number", "boolean"]}
        }
      }
    },
    "status": {"type": ["integer", "string"]},
    "responseRegexp": {"type": "string"},
    "returnRegEx": {"type": "string"},
    "saveResponse": {"type": "boolean"},
    "macroDef": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "definitionPhase", "definition"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "definitionPhase": {"enum": ["preRequest", "postResponse"]},
          "definition": {"type": "string", "minLength": 1}
        }
      }
    },
    "prerequisites": {"type": "array", "items": {"type": "string"}},
    "timeout": {"type": "integer", "minimum": 1}
  }
}`

var (
	schemaOnce     sync.Once
	documentSchema *gojsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		documentSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	})
	return documentSchema, schemaErr
}

// Validate checks raw JSON against the test document schema.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling document schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
}
