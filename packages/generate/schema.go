package generate

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

const maxExampleDepth = 5

// exampleFromSchema builds a sample JSON value for schema. Declared examples
// win over generated ones.
func exampleFromSchema(schema *openapi3.Schema, depth int) any {
	if schema == nil || depth > maxExampleDepth {
		return nil
	}
	if schema.Example != nil {
		return schema.Example
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	types := schema.Type.Slice()
	if len(types) == 0 {
		if len(schema.Properties) > 0 {
			return objectExample(schema, depth)
		}
		return nil
	}

	switch types[0] {
	case openapi3.TypeObject:
		return objectExample(schema, depth)
	case openapi3.TypeArray:
		if schema.Items != nil && schema.Items.Value != nil {
			return []any{exampleFromSchema(schema.Items.Value, depth+1)}
		}
		return []any{}
	case openapi3.TypeString:
		switch schema.Format {
		case "date":
			return "2024-01-01"
		case "date-time":
			return "2024-01-01T00:00:00Z"
		case "email":
			return "user@example.com"
		case "uuid":
			return "00000000-0000-0000-0000-000000000000"
		}
		return "example"
	case openapi3.TypeInteger:
		if schema.Min != nil {
			return int64(*schema.Min)
		}
		return 1
	case openapi3.TypeNumber:
		if schema.Min != nil {
			return *schema.Min
		}
		return 1.5
	case openapi3.TypeBoolean:
		return true
	}
	return nil
}

func objectExample(schema *openapi3.Schema, depth int) map[string]any {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	obj := make(map[string]any, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		if prop == nil || prop.Value == nil {
			obj[name] = nil
			continue
		}
		obj[name] = exampleFromSchema(prop.Value, depth+1)
	}
	return obj
}
