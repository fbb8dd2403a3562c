package env

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// MacroPrefix marks environment variables that seed the macro store:
// SRT_MACRO_user=alice defines ${user}.
const MacroPrefix = "SRT_MACRO_"

// ErrInvalidDefinition is returned for a macro definition without a name.
var ErrInvalidDefinition = errors.New("invalid macro definition")

// ParseDefinitions turns name=value pairs, as given to -D, into macros.
// The value may itself contain '='. A later definition of a name wins.
func ParseDefinitions(defs []string) (map[string]string, error) {
	result := make(map[string]string, len(defs))
	for _, def := range defs {
		name, value, found := strings.Cut(def, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("%w %q: expected name=value", ErrInvalidDefinition, def)
		}
		result[name] = value
	}
	return result, nil
}

// MacrosFromEnv returns the variables whose name starts with prefix, keyed
// by the rest of the name.
func MacrosFromEnv(prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, value, found := strings.Cut(e, "=")
		if !found || prefix == "" {
			continue
		}
		if name, ok := strings.CutPrefix(key, prefix); ok && name != "" {
			result[name] = value
		}
	}
	return result
}

// MergeVariables merges sources left to right; later sources win.
func MergeVariables(sources ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}
