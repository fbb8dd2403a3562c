package macro

import (
	"sort"
	"strings"
	"sync"
)

// Store maps full macro tokens, such as "${login}.token", to their values.
// It is seeded once and then grows as responses are captured. Entries are
// never removed.
type Store struct {
	mu     sync.RWMutex
	macros map[string]any
}

func NewStore() *Store {
	return &Store{
		macros: make(map[string]any),
	}
}

// Canonical wraps name in ${...} unless it is already wrapped.
func Canonical(name string) string {
	if strings.HasPrefix(name, "${") && strings.Contains(name, "}") {
		return name
	}
	return "${" + name + "}"
}

// Token returns the canonical token for field of the macro named prefix.
func Token(prefix, field string) string {
	return Canonical(prefix) + "." + field
}

// Add registers value under the canonical form of name and returns the key
// used.
func (s *Store) Add(name string, value any) string {
	key := Canonical(name)
	s.mu.Lock()
	s.macros[key] = value
	s.mu.Unlock()
	return key
}

// Seed adds every entry of macros.
func (s *Store) Seed(macros map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, value := range macros {
		s.macros[Canonical(name)] = value
	}
}

// Lookup returns the value registered for token. Unwrapped names are
// canonicalized first.
func (s *Store) Lookup(token string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.macros[Canonical(token)]
	return v, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.macros)
}

// Keys returns the registered tokens in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.macros))
	for k := range s.macros {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the store contents rendered as text.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.macros))
	for k, v := range s.macros {
		out[k] = Render(v)
	}
	return out
}
