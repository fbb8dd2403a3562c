package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

var (
	// ErrUnknownDerivation is returned for a definition naming no registered function.
	ErrUnknownDerivation = errors.New("unknown derivation")
	// ErrInvalidDefinition is returned for a definition that is not name or name(args).
	ErrInvalidDefinition = errors.New("invalid derivation")
)

// Func derives a macro value. input is the parsed response for postResponse
// definitions and the outgoing request document for preRequest ones.
type Func func(input gjson.Result, args []string) (any, error)

// Registry is the closed table of derivations a document may name.
type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["path"] = funcPath
	r.funcs["length"] = funcLength
	r.funcs["default"] = funcDefault
	r.funcs["now"] = funcNow
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["base64"] = funcBase64
	r.funcs["base64Decode"] = funcBase64Decode
	r.funcs["md5"] = funcMD5
	r.funcs["sha256"] = funcSHA256
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["urlDecode"] = funcURLDecode
	r.funcs["date"] = funcDate
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered derivation names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var callPattern = regexp.MustCompile(`^(\w+)(?:\((.*)\))?$`)

// Check reports whether definition is well formed and names a registered
// derivation, without running it.
func (r *Registry) Check(definition string) error {
	name, _, err := parseCall(definition)
	if err != nil {
		return err
	}
	if !r.Has(name) {
		return fmt.Errorf("%w %q", ErrUnknownDerivation, name)
	}
	return nil
}

// Eval runs definition against input. A bare name is the same as name().
func (r *Registry) Eval(definition string, input gjson.Result) (any, error) {
	name, args, err := parseCall(definition)
	if err != nil {
		return nil, err
	}

	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDerivation, name)
	}

	v, err := fn(input, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func parseCall(definition string) (string, []string, error) {
	matches := callPattern.FindStringSubmatch(strings.TrimSpace(definition))
	if matches == nil {
		return "", nil, fmt.Errorf("%w %q", ErrInvalidDefinition, definition)
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}
	return matches[1], args, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

// FromJSON converts a gjson result into a macro value. Numbers keep their
// exact text and containers stay raw JSON.
func FromJSON(r gjson.Result) any {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Null:
		return nil
	case gjson.JSON:
		return json.RawMessage(r.Raw)
	}
	return nil
}

func requireArgs(args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func intArg(args []string, i int, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %q is not a valid integer", args[i])
	}
	return v, nil
}

func funcPath(input gjson.Result, args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	v := input.Get(args[0])
	if !v.Exists() {
		return nil, fmt.Errorf("path %q not found", args[0])
	}
	return FromJSON(v), nil
}

func funcLength(input gjson.Result, args []string) (any, error) {
	v := input
	if len(args) > 0 {
		v = input.Get(args[0])
		if !v.Exists() {
			return nil, fmt.Errorf("path %q not found", args[0])
		}
	}
	switch {
	case v.IsArray():
		return len(v.Array()), nil
	case v.IsObject():
		return len(v.Map()), nil
	case v.Type == gjson.String:
		return len([]rune(v.Str)), nil
	}
	return nil, fmt.Errorf("value of type %s has no length", v.Type)
}

func funcDefault(input gjson.Result, args []string) (any, error) {
	if err := requireArgs(args, 2); err != nil {
		return nil, err
	}
	if v := input.Get(args[0]); v.Exists() && v.Type != gjson.Null {
		return FromJSON(v), nil
	}
	return args[1], nil
}

func funcNow(_ gjson.Result, _ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcTimestamp(_ gjson.Result, _ []string) (any, error) {
	return time.Now().Unix(), nil
}

func funcTimestampMs(_ gjson.Result, _ []string) (any, error) {
	return time.Now().UnixMilli(), nil
}

func funcUUID(_ gjson.Result, _ []string) (any, error) {
	return uuid.New().String(), nil
}

func funcRandom(_ gjson.Result, args []string) (any, error) {
	min, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, 100)
	if err != nil {
		return nil, err
	}
	if max < min {
		return nil, fmt.Errorf("max %d is less than min %d", max, min)
	}
	return rand.Intn(max-min+1) + min, nil
}

func funcRandomString(_ gjson.Result, args []string) (any, error) {
	length, err := intArg(args, 0, 16)
	if err != nil {
		return nil, err
	}
	return randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"), nil
}

func funcRandomEmail(_ gjson.Result, _ []string) (any, error) {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@%s.com", user, domain), nil
}

func funcBase64(_ gjson.Result, args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func funcBase64Decode(_ gjson.Result, args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	decoded, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return nil, err
	}
	return string(decoded), nil
}

func funcMD5(_ gjson.Result, args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	hash := md5.Sum([]byte(args[0]))
	return hex.EncodeToString(hash[:]), nil
}

func funcSHA256(_ gjson.Result, args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	hash := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(hash[:]), nil
}

func funcURLEncode(_ gjson.Result, args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	return url.QueryEscape(args[0]), nil
}

func funcURLDecode(_ gjson.Result, args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	return url.QueryUnescape(args[0])
}

func funcDate(_ gjson.Result, args []string) (any, error) {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format), nil
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
